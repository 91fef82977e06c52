package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/atomic"
)

// HTTPServerConfig holds the listener and lifecycle settings for the API
// server.
type HTTPServerConfig struct {
	ListenAddr  string
	EnablePprof bool
	Log         *slog.Logger

	DrainDuration            time.Duration
	GracefulShutdownDuration time.Duration
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
}

// Server wraps the trust API handler with the HTTP lifecycle: readiness,
// draining, and graceful shutdown.
type Server struct {
	cfg     *HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	srv     *http.Server
	handler *Handler
}

// New creates the server and its router. The server starts ready; Drain
// flips readiness off so load balancers stop routing to it.
func New(cfg *HTTPServerConfig, handler *Handler) (*Server, error) {
	srv := &Server{
		cfg:     cfg,
		log:     cfg.Log,
		handler: handler,
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.getRouter(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return srv, nil
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()

	mux.With(srv.httpLogger).Post("/api/trust/{namespace}/init", srv.handleInit)
	mux.With(srv.httpLogger).Post("/api/trust/{namespace}/operations", srv.handleCreateOperation)
	mux.With(srv.httpLogger).Post("/api/trust/{namespace}/operations/{operation_id}/signatures", srv.handleSignOperation)
	mux.With(srv.httpLogger).Post("/api/trust/{namespace}/operations/{operation_id}/apply", srv.handleApplyOperation)
	mux.With(srv.httpLogger).Get("/api/trust/{namespace}/state", srv.handleGetState)
	mux.With(srv.httpLogger).Get("/api/trust/{namespace}/roots/active", srv.handleActiveRoots)
	mux.With(srv.httpLogger).Get("/api/trust/{namespace}/trusted/{public_key}", srv.handleTrustedKey)
	mux.With(srv.httpLogger).Post("/api/trust/{namespace}/migrate", srv.handleMigrate)

	// Health and diagnostic endpoints
	mux.With(srv.httpLogger).Get("/livez", srv.handleLivenessCheck)
	mux.With(srv.httpLogger).Get("/readyz", srv.handleReadinessCheck)
	mux.With(srv.httpLogger).Get("/drain", srv.handleDrain)
	mux.With(srv.httpLogger).Get("/undrain", srv.handleUndrain)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

func (srv *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	srv.handler.HandleInit(w, r, chi.URLParam(r, "namespace"))
}

func (srv *Server) handleCreateOperation(w http.ResponseWriter, r *http.Request) {
	srv.handler.HandleCreateOperation(w, r, chi.URLParam(r, "namespace"))
}

func (srv *Server) handleSignOperation(w http.ResponseWriter, r *http.Request) {
	srv.handler.HandleSignOperation(w, r, chi.URLParam(r, "namespace"), chi.URLParam(r, "operation_id"))
}

func (srv *Server) handleApplyOperation(w http.ResponseWriter, r *http.Request) {
	srv.handler.HandleApplyOperation(w, r, chi.URLParam(r, "namespace"), chi.URLParam(r, "operation_id"))
}

func (srv *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	srv.handler.HandleGetState(w, r, chi.URLParam(r, "namespace"))
}

func (srv *Server) handleActiveRoots(w http.ResponseWriter, r *http.Request) {
	srv.handler.HandleActiveRoots(w, r, chi.URLParam(r, "namespace"))
}

func (srv *Server) handleTrustedKey(w http.ResponseWriter, r *http.Request) {
	srv.handler.HandleTrustedKey(w, r, chi.URLParam(r, "namespace"), chi.URLParam(r, "public_key"))
}

func (srv *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	srv.handler.HandleMigrate(w, r, chi.URLParam(r, "namespace"))
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if !srv.isReady.Swap(false) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already draining"}`))
		return
	}

	srv.log.Info("Server marked as not ready")

	go func() {
		// Wait for load balancers to notice the readiness change.
		time.Sleep(srv.cfg.DrainDuration)
		srv.log.Info("Drain period completed")
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"draining"}`))
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	if srv.isReady.Swap(true) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already ready"}`))
		return
	}

	srv.log.Info("Server marked as ready")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// RunInBackground starts serving without blocking the caller.
func (srv *Server) RunInBackground() {
	go func() {
		srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

// Shutdown stops the listener and waits for in-flight requests up to the
// configured graceful shutdown duration.
func (srv *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}
}
