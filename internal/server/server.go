package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/forPelevin/placecut/internal/pipeline"
	"github.com/forPelevin/placecut/internal/types"
	"github.com/forPelevin/placecut/internal/usecase"
)

//go:embed web/index.html
var indexHTML []byte

const maxBodyBytes = 64 << 10

type Options struct {
	Bind           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MetricsEnabled bool
}

// Server exposes the pipeline over HTTP. One Server owns one listener.
type Server struct {
	bind   string
	runner pipeline.Runner
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

func New(opts Options, runner pipeline.Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		bind:   strings.TrimSpace(opts.Bind),
		runner: runner,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /api/process", s.handleProcess)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if opts.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler without a listener.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start listens on the configured address and serves in the background
// until ctx is done or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("http server listening", slog.String("address", listener.Addr().String()))
	return nil
}

// Addr is the bound address, available after Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req types.ProcessRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := s.runner.Run(r.Context(), strings.TrimSpace(req.Target()))
	if err != nil {
		s.writeError(w, StatusFor(usecase.KindOf(err)), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, types.NewProcessResponse(res))
}

// StatusFor maps a fatal error kind to its HTTP status.
func StatusFor(kind types.ErrorKind) int {
	switch kind {
	case types.ErrValidation:
		return http.StatusBadRequest
	case types.ErrTimeout:
		return http.StatusGatewayTimeout
	case types.ErrInfoFetch, types.ErrDownload:
		return http.StatusBadGateway
	case types.ErrDecode:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response", slog.String("error", err.Error()))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, types.NewErrorResponse(msg))
}
