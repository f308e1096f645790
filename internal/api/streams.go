package api

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"partsdash/internal/supervisor"
)

// GET /events
func (s *Server) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		http.Error(w, "event bus not available", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventCh := s.bus.Subscribe()
	defer s.bus.Unsubscribe(eventCh)

	_, _ = w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			data, err := supervisor.FormatSSEEvent(event)
			if err != nil {
				s.logger.Debug("skipping unencodable event", "type", event.Type, "err", err)
				continue
			}
			if _, err := w.Write([]byte(data)); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// GET /metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		http.Error(w, "metrics not enabled", http.StatusServiceUnavailable)
		return
	}
	promhttp.Handler().ServeHTTP(w, r)
}

// GET /healthz
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil && !s.health.Healthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("backend unhealthy"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// GET /healthz/backend
func (s *Server) handleHealthzBackend(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"healthy":    true,
			"checked":    false,
			"last_check": time.Now().Format(time.RFC3339),
		})
		return
	}

	healthy := s.health.Healthy()
	resp := map[string]any{
		"healthy":    healthy,
		"checked":    true,
		"last_check": s.health.LastCheck().Format(time.RFC3339),
	}
	if lastErr := s.health.LastError(); lastErr != "" {
		resp["last_error"] = lastErr
	}

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, resp)
}

// handlePage serves the embedded single-page dashboard. Unknown paths fall
// back to index.html.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		http.Error(w, "dashboard assets not available", http.StatusServiceUnavailable)
		return
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}

	file, err := s.assets.Open(name)
	if err == nil {
		if st, statErr := file.Stat(); statErr != nil || st.IsDir() {
			file.Close()
			err = errNotFile
		}
	}
	if err != nil {
		name = "index.html"
		file, err = s.assets.Open(name)
		if err != nil {
			http.Error(w, "dashboard not found", http.StatusNotFound)
			return
		}
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		http.Error(w, "failed to read dashboard", http.StatusInternalServerError)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	// index.html is never cached so a redeploy is picked up.
	if !strings.HasSuffix(name, ".html") {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}

	if seeker, ok := file.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, stat.ModTime(), seeker)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))
	_, _ = io.Copy(w, file)
}
