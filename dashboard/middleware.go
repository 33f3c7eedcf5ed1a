package dashboard

import (
	"net"
	"net/http"
	"strings"

	"github.com/auditmos/dianoia/logging"
	"github.com/google/uuid"
)

const sessionHeader = "X-Session-ID"

// clientKey identifies the remote peer for rate limiting. The session
// header is client supplied and can be dropped or rotated, so it is not used.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// tracked reports whether requests to path are recorded as api
// request/response pairs. The panel and its polling endpoints are skipped so
// reading the buffer does not fill it.
func tracked(path string) bool {
	return path != "/" && !strings.HasPrefix(path, "/api/debug/")
}

// withSession tags every request with a session id and puts a logger
// carrying it into the request context.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(sessionHeader)
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		w.Header().Set(sessionHeader, sessionID)

		logger := s.logger.WithContext(logging.Fields{"sessionId": sessionID})
		r = r.WithContext(logging.NewContext(r.Context(), logger))

		if !tracked(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		requestID := logger.TrackAPIRequest(r.Method, r.URL.RequestURI(),
			logging.Fields{"headers": s.redactor.Headers(r.Header)})
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := s.now()
		next.ServeHTTP(rec, r)
		logger.TrackAPIResponse(requestID, rec.status, nil, s.now().Sub(start))
	})
}
