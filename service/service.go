package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/runflo/runflo/metrics"
)

// Service exposes health and metrics endpoints while a continuous run is
// active.
type Service struct {
	Addr   string
	server *http.Server
}

func New(addr string) *Service {
	return &Service{Addr: addr}
}

// Start serves /healthz and /metrics in the background until Shutdown.
func (s *Service) Start(ctx context.Context) {
	if s.Addr == "" {
		return
	}

	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", handleHealthz)
	hdlr.Handle("/metrics", promhttp.Handler())
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	s.server = &http.Server{
		Handler: c.Handler(hdlr),
		Addr:    s.Addr,
	}

	go func() {
		log.Info("starting health/metrics server", "addr", s.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("error starting health/metrics server", "err", err)
			metrics.RecordErrorDetails("error starting health/metrics server", err)
		}
	}()
}

func (s *Service) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK")) //nolint:errcheck
}
