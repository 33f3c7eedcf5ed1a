package main

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "download the debug log buffer of a running server",
		Flags: []cli.Flag{
			addrFlag(),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Value:   ".",
				Usage:   "directory to write the export into",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "also keep the export in the server database",
			},
		},
		Action: func(c *cli.Context) error {
			path, id, err := runExport(c.String("addr"), c.String("out"), c.Bool("save"))
			if err != nil {
				return err
			}
			fmt.Printf("Exported to %s\n", path)
			if id != "" {
				fmt.Printf("Saved on server as %s\n", id)
			}
			return nil
		},
	}
}

func runExport(addr, outDir string, save bool) (string, string, error) {
	target := fmt.Sprintf("http://%s/api/debug/export", addr)
	if save {
		target += "?save=1"
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	resp, err := httpClient.Get(target)
	if err != nil {
		return "", "", fmt.Errorf("fetch export: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("export failed: %s", body)
	}

	name := exportFileName(resp.Header.Get("Content-Disposition"))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(outDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", "", fmt.Errorf("write export: %w", err)
	}
	return path, resp.Header.Get("X-Export-ID"), nil
}

func exportFileName(disposition string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := filepath.Base(params["filename"]); name != "." && name != "/" && name != "" {
			return name
		}
	}
	return "dianoia-logs-" + time.Now().UTC().Format("2006-01-02T15-04-05Z") + ".json"
}
