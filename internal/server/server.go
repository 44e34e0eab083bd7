package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socialhub/aggregator/internal/server/api"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// apiKeyMiddleware checks for the X-API-Key header and validates it against the provided key.
// If key is empty, it allows all requests.
func apiKeyMiddleware(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			reqApiKey := r.Header.Get("X-API-Key")
			if reqApiKey == "" {
				http.Error(w, "API key required", http.StatusUnauthorized)
				return
			}

			if reqApiKey != apiKey {
				http.Error(w, "Invalid API key", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Routes builds the full route table for the aggregator API.
func Routes(handler *api.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/feed", handler.GetFeed)
	mux.HandleFunc("POST /v1/feed/{platform}/reset", handler.ResetFeed)
	mux.HandleFunc("POST /v1/interactions", handler.SubmitInteraction)
	mux.HandleFunc("GET /v1/interactions", handler.ListInteractions)
	mux.HandleFunc("GET /v1/interactions/{id}", handler.GetInteraction)
	mux.HandleFunc("POST /v1/posts", handler.CreatePost)
	mux.HandleFunc("GET /v1/bookmarks", handler.GetBookmarks)
	mux.HandleFunc("GET /v1/accounts", handler.ListAccounts)
	mux.HandleFunc("POST /v1/accounts", handler.LinkAccount)
	mux.HandleFunc("DELETE /v1/accounts/{id}", handler.UnlinkAccount)
	mux.HandleFunc("POST /v1/drafts", handler.SaveDraft)
	mux.HandleFunc("GET /v1/drafts", handler.ListDrafts)
	mux.HandleFunc("POST /v1/drafts/{id}/publish", handler.PublishDraft)
	mux.HandleFunc("DELETE /v1/drafts/{id}", handler.DeleteDraft)
	mux.HandleFunc("GET /v1/positions/{feed}", handler.GetPosition)
	mux.HandleFunc("PUT /v1/positions/{feed}", handler.SavePosition)
	mux.HandleFunc("GET /v1/profile", handler.GetProfile)
	mux.HandleFunc("PUT /v1/profile", handler.SaveProfile)
	mux.HandleFunc("GET /v1/tokens/{type}", handler.GetTokens)
	mux.HandleFunc("GET /health", healthCheckHandler)

	return mux
}

// RunServer starts the HTTP server with graceful shutdown support.
// It sets up routes, middleware, and handles OS signals for clean termination.
func RunServer(handler *api.Handler, listenAddr string, logger zerolog.Logger, apiKey string) error {
	// Add service identifier to the logger
	logger = logger.With().Str("service", "socialhub-api").Logger()

	mux := Routes(handler)

	// Set up middleware chain for logging and request tracking
	h := hlog.NewHandler(logger)(mux)
	h = hlog.MethodHandler("method")(h)
	h = hlog.URLHandler("url")(h)
	h = hlog.RemoteAddrHandler("remote_addr")(h)
	h = hlog.UserAgentHandler("user_agent")(h)
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		idReq, _ := hlog.IDFromRequest(r)

		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Str("req_id", idReq.String()).
			Msg("HTTP Request")
	})(h)

	// Add API key middleware if key is configured
	if apiKey != "" {
		h = apiKeyMiddleware(apiKey)(h)
		logger.Info().Msg("API key authentication enabled")
	} else {
		logger.Info().Msg("API key authentication disabled")
	}

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", listenAddr).Msg("API Server starting")
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logger.Fatal().Err(err).Msg("Server failed to start")

	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server shutdown error")
			if err := httpServer.Close(); err != nil {
				logger.Error().Err(err).Msg("HTTP server force close error")
			}
		} else {
			logger.Info().Msg("HTTP server shutdown complete.")
		}
		if err := <-serverErr; err != nil {
			logger.Error().Err(err).Msg("ListenAndServe error during shutdown")
		}
	}

	logger.Info().Msg("Server exiting.")
	return nil
}

// healthCheckHandler responds to health check requests with a simple 200 OK.
// This endpoint is used by monitoring systems to verify the service is operational.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	log.Debug().Msg("Health check request received")

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		log.Error().Err(err).Msg("Error writing health check response")
	}
}
