package dashboard

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/auditmos/dianoia/logging"
	"github.com/auditmos/dianoia/storage"
)

const exportNote = "Use GET /api/debug/export to download the full log buffer as JSON"

type LogsResponse struct {
	Logs   []logging.LogEntry  `json:"logs"`
	Config logging.DebugConfig `json:"config"`
	Count  int                 `json:"count"`
	Note   string              `json:"note"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listLogs(w, r)
	case http.MethodDelete:
		s.logger.ClearLogs()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var level *logging.LogLevel
	if raw := q.Get("level"); raw != "" {
		l, ok := logging.LookupLevel(raw)
		if !ok {
			writeJSONError(w, fmt.Sprintf("invalid level %q", raw), http.StatusBadRequest)
			return
		}
		level = &l
	}
	component := q.Get("component")

	logs := s.logger.GetLogs()
	filtered := make([]logging.LogEntry, 0, len(logs))
	for _, e := range logs {
		if level != nil && e.Level != *level {
			continue
		}
		if component != "" && e.Component != component {
			continue
		}
		filtered = append(filtered, e)
	}

	writeJSON(w, http.StatusOK, LogsResponse{
		Logs:   filtered,
		Config: s.logger.GetConfig(),
		Count:  len(filtered),
		Note:   exportNote,
	})
}

func (s *Server) exportFilename() string {
	return "dianoia-logs-" + s.now().UTC().Format("2006-01-02T15-04-05Z") + ".json"
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	payload, err := s.logger.ExportLogs()
	if err != nil {
		s.logger.TrackError(err, "dashboard", "export", nil)
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save {
		exp, err := s.saveExport(payload)
		if err != nil {
			s.logger.TrackError(err, "dashboard", "export_save", nil)
			writeJSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("X-Export-ID", exp.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.exportFilename()))
	w.Write(payload)
}

func (s *Server) saveExport(payload []byte) (*storage.LogExport, error) {
	if s.exports == nil {
		return nil, fmt.Errorf("export storage not configured")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	exp := &storage.LogExport{
		CreatedAt:  s.now().UnixMilli(),
		EntryCount: len(entries),
		Payload:    payload,
	}
	if err := s.exports.Save(exp); err != nil {
		return nil, err
	}
	s.logger.WithData(logging.Fields{"exportId": exp.ID, "entryCount": exp.EntryCount}).
		Info("dashboard", "export_save", "Saved log export")
	s.pruneExports()
	return exp, nil
}

func (s *Server) pruneExports() {
	if s.retention <= 0 {
		return
	}
	removed, err := s.exports.Prune(s.now().Add(-s.retention))
	if err != nil {
		s.logger.TrackError(err, "dashboard", "export_prune", nil)
		return
	}
	if removed > 0 {
		s.logger.WithData(logging.Fields{"removed": removed, "retention": s.retention.String()}).
			Info("dashboard", "export_prune", "Pruned old log exports")
	}
}

func (s *Server) handleExportList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.exports == nil {
		writeJSONError(w, "export storage not configured", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := s.exports.List(limit)
	if err != nil {
		writeJSONError(w, fmt.Sprintf("list exports: %v", err), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []*storage.LogExport{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"exports": list, "count": len(list)})
}

func (s *Server) handleSavedExport(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		writeJSONError(w, "export storage not configured", http.StatusServiceUnavailable)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/debug/exports/")
	if id == "" {
		writeJSONError(w, "missing export id", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		exp, err := s.exports.Get(id)
		if err != nil {
			writeJSONError(w, fmt.Sprintf("fetch export: %v", err), http.StatusInternalServerError)
			return
		}
		if exp == nil {
			writeJSONError(w, "export not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(exp.Payload)
	case http.MethodDelete:
		if err := s.exports.Delete(id); err != nil {
			writeJSONError(w, fmt.Sprintf("delete export: %v", err), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.logger.GetConfig())
	case http.MethodPut, http.MethodPatch:
		s.updateConfig(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var patch logging.ConfigPatch
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		writeJSONError(w, fmt.Sprintf("invalid config: %v", err), http.StatusBadRequest)
		return
	}
	if patch.Empty() {
		writeJSONError(w, "config patch is empty", http.StatusBadRequest)
		return
	}

	cfg := s.logger.UpdateConfig(patch)
	s.persistConfig(patch)
	writeJSON(w, http.StatusOK, cfg)
}

// persistConfig stores the enable and level flags so the next start picks
// them up. Failures are logged and otherwise ignored.
func (s *Server) persistConfig(patch logging.ConfigPatch) {
	if s.settings == nil {
		return
	}
	if patch.Enabled != nil {
		if err := s.settings.Set(logging.StoreKeyDebug, strconv.FormatBool(*patch.Enabled)); err != nil {
			s.logger.TrackError(err, "dashboard", "persist_config", logging.Fields{"key": logging.StoreKeyDebug})
		}
	}
	if patch.Level != nil && patch.Level.Valid() {
		if err := s.settings.Set(logging.StoreKeyDebugLevel, patch.Level.String()); err != nil {
			s.logger.TrackError(err, "dashboard", "persist_config", logging.Fields{"key": logging.StoreKeyDebugLevel})
		}
	}
}
