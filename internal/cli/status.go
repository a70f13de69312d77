package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sadiqj/opamsnap/pkg/pipeline"
)

// statusServer exposes the live counters of a run over HTTP so external
// tooling can watch long harvests.
//
//	GET /healthz  -> 200 ok
//	GET /progress -> counters as JSON
type statusServer struct {
	srv    *http.Server
	logger *log.Logger
}

func newStatusServer(addr string, runner *pipeline.Runner, logger *log.Logger) *statusServer {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Get("/progress", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(runner.Progress()); err != nil {
			logger.Debug("progress encode failed", "error", err)
		}
	})

	return &statusServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

func (s *statusServer) start() {
	s.logger.Info("status server listening", "addr", s.srv.Addr)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("status server stopped", "error", err)
		}
	}()
}

func (s *statusServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}
