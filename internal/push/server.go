package push

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxMessageBytes = 64 << 10

// Handler returns the relay routes:
//
//	POST /v1/push/{token}  deliver a message
//	GET  /healthz          liveness
//	GET  /metrics          Prometheus metrics
func (r *Relay) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Post("/v1/push/{token}", r.handlePush)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "subscribers": r.Subscribers()})
	})
	router.Method(http.MethodGet, "/metrics", r.metrics.Handler())
	return router
}

func (r *Relay) handlePush(w http.ResponseWriter, req *http.Request) {
	token := chi.URLParam(req, "token")

	var m Message
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxMessageBytes)).Decode(&m); err != nil {
		r.metrics.CountRejected("bad_request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message: " + err.Error()})
		return
	}
	if m.Notification.Title == "" && m.Notification.Body == "" {
		r.metrics.CountRejected("bad_request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "notification title or body is required"})
		return
	}

	channel, err := r.Deliver(req.Context(), token, m)
	switch {
	case errors.Is(err, ErrUnknownToken):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrNoReceiver):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"channel": string(channel)})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Serve listens on addr until ctx is cancelled.
func (r *Relay) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return r.serve(ctx, ln)
}

func (r *Relay) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		r.log.Info("push relay listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
