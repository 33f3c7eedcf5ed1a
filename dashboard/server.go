package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/auditmos/dianoia/claims"
	"github.com/auditmos/dianoia/logging"
	"github.com/auditmos/dianoia/storage"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// DebugLog is the logger surface the host reads and controls.
type DebugLog interface {
	logging.Logger
	GetLogs() []logging.LogEntry
	ClearLogs()
	ExportLogs() ([]byte, error)
	GetConfig() logging.DebugConfig
	UpdateConfig(patch logging.ConfigPatch) logging.DebugConfig
	Subscribe(fn func(logging.LogEntry)) (cancel func())
}

type ClaimGenerator interface {
	Generate(ctx context.Context, action claims.Action, claim string) (string, error)
}

type Server struct {
	addr       string
	logger     DebugLog
	settings   storage.SettingsRepo
	exports    storage.ExportRepo
	redactor   *storage.Redactor
	claims     ClaimGenerator
	limiter    *RateLimiter
	retention  time.Duration
	now        func() time.Time
	httpServer *http.Server
	templates  *template.Template

	mu       sync.Mutex
	listener net.Listener
	onReady  func()
}

type ServerConfig struct {
	Addr         string
	Logger       DebugLog
	Settings     storage.SettingsRepo
	Exports      storage.ExportRepo
	Redactor     *storage.Redactor
	Claims       ClaimGenerator
	OverridesDir string
	Clock        func() time.Time

	// GeneratePerMin caps claim generations per client per minute.
	GeneratePerMin int
	// MaxStreams caps concurrent websocket streams per client.
	MaxStreams int
	// ExportRetention drops saved exports older than this after each save.
	// Zero keeps them forever.
	ExportRetention time.Duration
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	redactor := cfg.Redactor
	if redactor == nil {
		redactor = storage.NewRedactor(nil)
	}

	s := &Server{
		addr:      cfg.Addr,
		logger:    cfg.Logger,
		settings:  cfg.Settings,
		exports:   cfg.Exports,
		redactor:  redactor,
		claims:    cfg.Claims,
		retention: cfg.ExportRetention,
		now:       clock,
	}
	if cfg.GeneratePerMin > 0 || cfg.MaxStreams > 0 {
		s.limiter = NewRateLimiter(cfg.GeneratePerMin, cfg.MaxStreams, clock)
	}

	tmpl, err := loadTemplates(cfg.OverridesDir)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}
	s.templates = tmpl

	return s, nil
}

func loadTemplates(overridesDir string) (*template.Template, error) {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
	}

	tmpl := template.New("").Funcs(funcMap)

	useOverrides := false
	if overridesDir != "" {
		if info, err := os.Stat(overridesDir); err == nil && info.IsDir() {
			useOverrides = true
		}
	}

	if useOverrides {
		err := filepath.WalkDir(overridesDir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() || !strings.HasSuffix(path, ".html") {
				return err
			}
			content, readErr := os.ReadFile(path)
			if readErr != nil {
				return readErr
			}
			relPath, _ := filepath.Rel(overridesDir, path)
			name := strings.TrimSuffix(relPath, ".html")
			_, parseErr := tmpl.New(name).Parse(string(content))
			return parseErr
		})
		if err != nil {
			return nil, err
		}
		return tmpl, nil
	}

	entries, err := fs.ReadDir(embeddedTemplates, "templates")
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".html") {
			continue
		}
		content, readErr := fs.ReadFile(embeddedTemplates, "templates/"+entry.Name())
		if readErr != nil {
			return nil, readErr
		}
		name := strings.TrimSuffix(entry.Name(), ".html")
		if _, parseErr := tmpl.New(name).Parse(string(content)); parseErr != nil {
			return nil, parseErr
		}
	}
	return tmpl, nil
}

func (s *Server) buildMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/debug/logs", s.handleLogs)
	mux.HandleFunc("/api/debug/export", s.handleExport)
	mux.HandleFunc("/api/debug/exports", s.handleExportList)
	mux.HandleFunc("/api/debug/exports/", s.handleSavedExport)
	mux.HandleFunc("/api/debug/config", s.handleConfig)
	mux.HandleFunc("/api/debug/stream", s.handleStream)
	mux.HandleFunc("/api/generate", s.handleGenerate)
	return mux
}

func (s *Server) handler() http.Handler {
	return s.withSession(s.buildMux())
}

// SetReadyCallback registers fn to run once the listener is bound.
func (s *Server) SetReadyCallback(fn func()) {
	s.mu.Lock()
	s.onReady = fn
	s.mu.Unlock()
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.listener = ln
	onReady := s.onReady
	s.mu.Unlock()

	s.logger.WithData(logging.Fields{"addr": ln.Addr().String()}).
		Info("dashboard", "start", "Dashboard started")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	if onReady != nil {
		onReady()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("dashboard", "stop", "Dashboard stopping")
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

type PanelData struct {
	Config       logging.DebugConfig
	Levels       []string
	PollInterval int
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	levels := make([]string, 0, len(logging.Levels()))
	for _, l := range logging.Levels() {
		levels = append(levels, l.String())
	}

	data := PanelData{
		Config:       s.logger.GetConfig(),
		Levels:       levels,
		PollInterval: 1000,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "panel", data); err != nil {
		s.logger.TrackError(err, "dashboard", "render", nil)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
