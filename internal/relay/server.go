package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	handler *Handler
	metrics *Metrics
	logger  *zap.Logger
}

func NewServer(upstream string, httpClient *http.Client, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := NewMetrics()
	return &Server{
		handler: NewHandler(upstream, httpClient, logger, metrics),
		metrics: metrics,
		logger:  logger,
	}
}

// Routes returns the relay mux: the books route, a health check and the
// metrics endpoint.
func (server *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/books", server.handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", server.metrics.Handler())
	return mux
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests.
func (server *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return server.Serve(ctx, listener)
}

func (server *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	server.logger.Info("relay listening",
		zap.String("address", listener.Addr().String()),
		zap.String("upstream", server.handler.upstream),
	)

	errs := make(chan error, 1)
	go func() {
		errs <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	server.logger.Info("relay shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errs; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
