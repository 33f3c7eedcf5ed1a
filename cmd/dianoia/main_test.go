package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/auditmos/dianoia/logging"
	"github.com/auditmos/dianoia/storage"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(app *cli.App, name string) *cli.Command {
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := NewApp()
	app.Writer = &out
	err := app.Run(append([]string{"dianoia"}, args...))
	return out.String(), err
}

func TestNewApp(t *testing.T) {
	app := NewApp()
	assert.Equal(t, "dianoia", app.Name)
	assert.Len(t, app.Commands, 5)

	for _, name := range []string{"serve", "tail", "export", "config", "rules"} {
		assert.NotNil(t, findCommand(app, name), "%s command not found", name)
	}
}

func TestHelpOutput(t *testing.T) {
	_, err := runApp(t, "--help")
	require.NoError(t, err)
}

func TestVersionOutput(t *testing.T) {
	_, err := runApp(t, "--version")
	require.NoError(t, err)
}

func TestServeFlags(t *testing.T) {
	cmd := serveCommand()
	assert.Equal(t, "serve", cmd.Name)
	assert.NotNil(t, cmd.Action)

	names := make(map[string]bool)
	for _, f := range cmd.Flags {
		names[f.Names()[0]] = true
	}
	for _, key := range serveKeys {
		assert.True(t, names[key], "flag %s missing", key)
	}
	assert.True(t, names["config"])
}

func TestAddrFlagDefault(t *testing.T) {
	for _, cmd := range []*cli.Command{serveCommand(), tailCommand(), exportCommand()} {
		var found bool
		for _, f := range cmd.Flags {
			if sf, ok := f.(*cli.StringFlag); ok && sf.Name == "addr" {
				found = true
				assert.Equal(t, "127.0.0.1:4040", sf.Value)
			}
		}
		assert.True(t, found, "addr flag not found on %s", cmd.Name)
	}
}

func serveContext(t *testing.T, args ...string) *serveConfig {
	t.Helper()
	var cfg *serveConfig
	app := &cli.App{
		Commands: []*cli.Command{{
			Name:  "serve",
			Flags: serveCommand().Flags,
			Action: func(c *cli.Context) error {
				var err error
				cfg, err = loadServeConfig(c)
				return err
			},
		}},
	}
	require.NoError(t, app.Run(append([]string{"dianoia", "serve"}, args...)))
	return cfg
}

func TestLoadServeConfig_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	cfg := serveContext(t, "--db", filepath.Join(t.TempDir(), "d.db"))

	assert.Equal(t, "127.0.0.1:4040", cfg.Addr)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "sk-env", cfg.APIKey)
	assert.False(t, cfg.JSON)
	assert.Equal(t, 20, cfg.GenerateRate)
	assert.Equal(t, 4, cfg.MaxStreams)
	assert.Equal(t, 30*24*time.Hour, cfg.ExportRetention)
}

func TestLoadServeConfig_Layers(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "dianoia.yaml")
	require.NoError(t, os.WriteFile(file, []byte("addr: 0.0.0.0:9000\nprovider: openrouter\nmodel: from-file\njson: true\nmax-streams: 2\n"), 0o644))

	t.Setenv("DIANOIA_MODEL", "from-env")
	t.Setenv("OPENROUTER_API_KEY", "sk-or")

	t.Setenv("DIANOIA_GENERATE_RATE", "5")

	cfg := serveContext(t, "--config", file, "--db", filepath.Join(dir, "d.db"), "--addr", "127.0.0.1:5000", "--export-retention", "48h")

	assert.Equal(t, "127.0.0.1:5000", cfg.Addr)
	assert.Equal(t, "openrouter", cfg.Provider)
	assert.Equal(t, "from-env", cfg.Model)
	assert.True(t, cfg.JSON)
	assert.Equal(t, "sk-or", cfg.APIKey)
	assert.Equal(t, "openrouter", cfg.openAIConfig().Provider)
	assert.Equal(t, 5, cfg.GenerateRate)
	assert.Equal(t, 2, cfg.MaxStreams)
	assert.Equal(t, 48*time.Hour, cfg.ExportRetention)
}

func TestLoadServeConfig_UnknownProvider(t *testing.T) {
	app := &cli.App{
		Commands: []*cli.Command{{
			Name:   "serve",
			Flags:  serveCommand().Flags,
			Action: func(c *cli.Context) error { _, err := loadServeConfig(c); return err },
		}},
	}
	err := app.Run([]string{"dianoia", "serve", "--provider", "ollama", "--db", filepath.Join(t.TempDir(), "d.db")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestInitLogger(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.OpenMemoryDB()
	require.NoError(t, err)
	defer db.Close()

	settings := storage.NewSQLiteSettingsRepo(db)
	require.NoError(t, settings.Set(logging.StoreKeyDebugLevel, "warn"))

	logger, cleanup, err := initLogger(&serveConfig{LogFile: filepath.Join(dir, "logs", "dianoia.jsonl")}, settings, nil)
	require.NoError(t, err)

	assert.Equal(t, logging.WARN, logger.GetConfig().Level)
	assert.True(t, logger.GetConfig().LogToFile)

	logger.Error("test", "action", "written to file")
	cleanup()

	data, err := os.ReadFile(filepath.Join(dir, "logs", "dianoia.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestInitLogger_JSONConsole(t *testing.T) {
	logger, cleanup, err := initLogger(&serveConfig{JSON: true}, nil, nil)
	require.NoError(t, err)
	defer cleanup()
	assert.NotNil(t, logger)
	assert.False(t, logger.GetConfig().LogToFile)
}

func TestConfigCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "settings.db")

	_, err := runApp(t, "config", "--db", dbPath, "set", "level", "WARNING")
	require.NoError(t, err)
	_, err = runApp(t, "config", "--db", dbPath, "set", "debug", "0")
	require.NoError(t, err)

	out, err := runApp(t, "config", "--db", dbPath, "get", "level")
	require.NoError(t, err)
	assert.Equal(t, "warn\n", out)

	out, err = runApp(t, "config", "--db", dbPath, "get")
	require.NoError(t, err)
	assert.Equal(t, "dianoia_debug=false\ndianoia_debug_level=warn\n", out)

	_, err = runApp(t, "config", "--db", dbPath, "unset", "debug")
	require.NoError(t, err)

	_, err = runApp(t, "config", "--db", dbPath, "get", "debug")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not set")
}

func TestConfigSet_Validation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "settings.db")

	_, err := runApp(t, "config", "--db", dbPath, "set", "level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid level")

	_, err = runApp(t, "config", "--db", dbPath, "set", "debug", "maybe")
	require.Error(t, err)

	_, err = runApp(t, "config", "--db", dbPath, "set", "colour", "red")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown setting")

	_, err = runApp(t, "config", "--db", dbPath, "set", "level")
	require.Error(t, err)
}

func TestRulesCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "settings.db")

	out, err := runApp(t, "rules", "--db", dbPath, "add", "claimSecret")
	require.NoError(t, err)
	id := strings.Fields(out)[0]

	out, err = runApp(t, "rules", "--db", dbPath, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "claimSecret")
	assert.Contains(t, out, "authorization")

	_, err = runApp(t, "rules", "--db", dbPath, "remove", id)
	require.NoError(t, err)

	out, err = runApp(t, "rules", "--db", dbPath, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "claimSecret")
}

func TestRunExport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/debug/export", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("save"))
		w.Header().Set("Content-Disposition", `attachment; filename="dianoia-logs-2024-01-15T10-30-00Z.json"`)
		w.Header().Set("X-Export-ID", "01HEXPORT")
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	path, id, err := runExport(strings.TrimPrefix(srv.URL, "http://"), dir, true)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "dianoia-logs-2024-01-15T10-30-00Z.json"), path)
	assert.Equal(t, "01HEXPORT", id)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestRunExport_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"export logs: boom"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, _, err := runExport(strings.TrimPrefix(srv.URL, "http://"), t.TempDir(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export logs: boom")
}

func TestExportFileName(t *testing.T) {
	assert.Equal(t, "a.json", exportFileName(`attachment; filename="a.json"`))
	assert.Equal(t, "x.json", exportFileName(`attachment; filename="../../x.json"`))
	assert.True(t, strings.HasPrefix(exportFileName(""), "dianoia-logs-"))
}

func TestStreamURL(t *testing.T) {
	u, err := streamURL(tailOptions{Addr: "127.0.0.1:4040", Level: "warn", Backlog: true})
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:4040/api/debug/stream?backlog=1&level=warn", u)

	_, err = streamURL(tailOptions{Addr: "x", Level: "loud"})
	require.Error(t, err)
}

func TestRunTail(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.WriteJSON(logging.LogEntry{
			Timestamp: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			Level:     logging.INFO,
			Component: "claims",
			Action:    "generate",
			Message:   "Generated support claim",
		})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(20 * time.Millisecond)
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := runTail(context.Background(), tailOptions{Addr: strings.TrimPrefix(srv.URL, "http://")}, &out)
	require.NoError(t, err)
	assert.Equal(t, "[2024-01-15T10:30:00.000Z] [INFO] [claims] generate: Generated support claim\n", out.String())
}

func TestRunTail_ConnectError(t *testing.T) {
	err := runTail(context.Background(), tailOptions{Addr: "127.0.0.1:1"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect")
}
