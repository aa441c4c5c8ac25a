// Package preview serves an exported website together with the progress of the export
// that writes it.
package preview

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/tstromberg/distiller/pkg/distill"
)

// StatusIdle is reported while no export is tracked.
const StatusIdle = "idle"

// Server serves a website directory.
type Server struct {
	dir string

	mu      sync.RWMutex
	tracker *distill.Tracker
}

// New creates a new server for the website in dir.
func New(dir string) *Server {
	return &Server{dir: dir}
}

// Track makes t the export reported by the progress API.
func (s *Server) Track(t *distill.Tracker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracker = t
}

func (s *Server) current() *distill.Tracker {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracker
}

// Progress is the JSON body of the progress API.
type Progress struct {
	Status string   `json:"status"`
	Done   int      `json:"done"`
	Total  int      `json:"total"`
	Errors []string `json:"errors,omitempty"`
}

// Router returns the HTTP routes of the server.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logRequests)

	r.Get("/api/progress", s.ProgressHandler())
	r.Post("/api/interrupt", s.InterruptHandler())
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/*", http.FileServer(http.Dir(s.dir)))
	return r
}

// ProgressHandler reports the state of the tracked export.
func (s *Server) ProgressHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		p := Progress{Status: StatusIdle}
		if t := s.current(); t != nil {
			p = Progress{Status: t.Status(), Done: t.Done(), Total: t.Total()}
			for _, err := range t.Errors() {
				p.Errors = append(p.Errors, err.Error())
			}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(p); err != nil {
			klog.Errorf("encode progress: %v", err)
		}
	}
}

// InterruptHandler asks the tracked export to stop.
func (s *Server) InterruptHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		t := s.current()
		if t == nil || t.Status() != distill.StatusRunning {
			http.Error(w, "no export running", http.StatusConflict)
			return
		}
		t.Interrupt()
		w.WriteHeader(http.StatusAccepted)
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		klog.V(1).Infof("%s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		klog.Infof("Listening on %s...", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
