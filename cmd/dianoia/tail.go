package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/auditmos/dianoia/logging"
	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"
)

func tailCommand() *cli.Command {
	return &cli.Command{
		Name:  "tail",
		Usage: "follow the live debug log of a running server",
		Flags: []cli.Flag{
			addrFlag(),
			&cli.StringFlag{
				Name:  "level",
				Usage: "only show entries at or above this level",
			},
			&cli.BoolFlag{
				Name:  "backlog",
				Usage: "print the buffered entries first",
			},
			&cli.BoolFlag{
				Name:  "details",
				Value: true,
				Usage: "print data, error and context blocks under each line",
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			opts := tailOptions{
				Addr:    c.String("addr"),
				Level:   c.String("level"),
				Backlog: c.Bool("backlog"),
				Details: c.Bool("details"),
			}
			return runTail(ctx, opts, os.Stdout)
		},
	}
}

type tailOptions struct {
	Addr    string
	Level   string
	Backlog bool
	Details bool
}

func streamURL(opts tailOptions) (string, error) {
	q := url.Values{}
	if opts.Level != "" {
		if _, ok := logging.LookupLevel(opts.Level); !ok {
			return "", fmt.Errorf("invalid level %q", opts.Level)
		}
		q.Set("level", opts.Level)
	}
	if opts.Backlog {
		q.Set("backlog", "1")
	}
	u := url.URL{Scheme: "ws", Host: opts.Addr, Path: "/api/debug/stream", RawQuery: q.Encode()}
	return u.String(), nil
}

// runTail prints streamed entries until the server closes the stream or ctx
// is cancelled.
func runTail(ctx context.Context, opts tailOptions, out io.Writer) error {
	target, err := streamURL(opts)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	formatter := logging.NewConsoleFormatter(out, opts.Details)
	display := logging.DefaultConfig()

	for {
		var entry logging.LogEntry
		if err := conn.ReadJSON(&entry); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read stream: %w", err)
		}
		line, err := formatter.Format(entry, display)
		if err != nil {
			continue
		}
		out.Write(line)
	}
}
