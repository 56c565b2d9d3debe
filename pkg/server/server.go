// Package server exposes the incubator over HTTP: live status, the text
// command protocol, the temperature history and Prometheus metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/itohio/goincubator/pkg/incubator"
	"github.com/itohio/goincubator/pkg/meter"
	"github.com/itohio/goincubator/pkg/sample"
)

const (
	maxCommandBytes = 1024
	commandTimeout  = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Controller is the part of the incubator loop the server talks to.
type Controller interface {
	Status() incubator.Status
	Submit(ctx context.Context, line string) (string, error)
}

// History is the read side of the temperature history.
type History interface {
	Samples() []sample.Sample
	Rates() []float64
	Excursions() []meter.Excursion
	Alarm() bool
}

// HistoryResponse is the body of GET /history.
type HistoryResponse struct {
	Samples    []sample.Sample   `json:"samples"`
	Rate       float64           `json:"rate"` // Latest heating rate in °C/min
	Excursions []meter.Excursion `json:"excursions"`
	Alarm      bool              `json:"alarm"`
}

// Server serves the incubator HTTP API.
type Server struct {
	listen    string
	ctrl      Controller
	history   History
	metrics   http.Handler
	maxPoints int
}

// New creates a server. history and metrics may be nil, which disables the
// corresponding endpoints.
func New(listen string, ctrl Controller, history History, metrics http.Handler, maxPoints int) *Server {
	return &Server{
		listen:    listen,
		ctrl:      ctrl,
		history:   history,
		metrics:   metrics,
		maxPoints: maxPoints,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", s.status).Methods(http.MethodGet)
	r.HandleFunc("/command", s.command).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	if s.history != nil {
		r.HandleFunc("/history", s.historyHandler).Methods(http.MethodGet)
	}
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", slog.String("addr", s.listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("HTTP server stopped")
	return nil
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.ctrl.Status())
}

// command runs one protocol line. The response is the protocol's reply as
// plain text.
func (s *Server) command(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	line := strings.TrimSpace(string(body))
	if line == "" {
		http.Error(w, "empty command", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
	defer cancel()

	resp, err := s.ctrl.Submit(ctx, line)
	if err != nil {
		slog.Warn("Command failed", slog.String("command", line), slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	slog.Debug("Command", slog.String("command", line), slog.String("response", resp))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, resp+"\n")
}

func (s *Server) historyHandler(w http.ResponseWriter, _ *http.Request) {
	samples := s.history.Samples()
	rates := s.history.Rates()

	resp := HistoryResponse{
		Samples:    sample.Downsample(nil, samples, s.maxPoints),
		Excursions: s.history.Excursions(),
		Alarm:      s.history.Alarm(),
	}
	if len(rates) > 0 {
		resp.Rate = rates[len(rates)-1]
	}
	writeJSON(w, resp)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	if !s.ctrl.Status().Connected {
		http.Error(w, "device disconnected", http.StatusServiceUnavailable)
		return
	}
	_, _ = io.WriteString(w, "ok\n")
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(bytes)
}
