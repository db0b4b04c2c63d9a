// ABOUTME: Gateway orchestrator that wires the store, conversation service and Twilio client
// ABOUTME: Manages the HTTP server lifecycle including graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/machu87/whatsapp-support-backend/internal/config"
	"github.com/machu87/whatsapp-support-backend/internal/conversation"
	"github.com/machu87/whatsapp-support-backend/internal/dedupe"
	"github.com/machu87/whatsapp-support-backend/internal/store"
	"github.com/machu87/whatsapp-support-backend/internal/twilio"
)

// Webhook deliveries are retried by Twilio for up to a day on failure;
// an hour of SID memory covers the realistic replay window.
const (
	dedupeTTL     = time.Hour
	dedupeMaxSize = 10000
)

// Gateway orchestrates the support backend components.
// All dependencies are constructed once at startup and injected here;
// there is no process-global state.
type Gateway struct {
	config       *config.Config
	store        store.Store
	conversation *conversation.Service
	sender       twilio.MessageSender
	dedupe       *dedupe.Cache
	httpServer   *http.Server
	logger       *slog.Logger
}

// New creates a gateway from configuration: it opens the SQLite store,
// builds the Twilio client, and registers the HTTP routes.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	var clientOpts []twilio.Option
	if cfg.Twilio.BaseURL != "" {
		clientOpts = append(clientOpts, twilio.WithBaseURL(cfg.Twilio.BaseURL))
	}
	client, err := twilio.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, clientOpts...)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating twilio client: %w", err)
	}

	return newGateway(cfg, s, client, logger), nil
}

// newGateway wires a gateway from explicit dependencies. Tests use this
// directly to inject an in-memory store and a fake sender.
func newGateway(cfg *config.Config, s store.Store, sender twilio.MessageSender, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		config:       cfg,
		store:        s,
		conversation: conversation.New(s, logger),
		sender:       sender,
		dedupe:       dedupe.New(dedupeTTL, dedupeMaxSize),
		logger:       logger.With("component", "gateway"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/conversations", g.handleListConversations)
	mux.HandleFunc("/conversations/", g.handleConversationMessages)
	mux.HandleFunc("/messages/send", g.handleSendMessage)
	mux.HandleFunc("/webhooks/whatsapp", g.handleWebhook)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g
}

// corsMiddleware applies the wide-open CORS policy: all origins, methods
// and headers are permitted.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", g.httpServer.Addr)
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("shutting down")
	case err := <-errCh:
		g.shutdown()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := g.httpServer.Shutdown(shutdownCtx); err != nil {
		g.logger.Error("HTTP server shutdown failed", "error", err)
	}

	g.shutdown()
	return nil
}

// shutdown releases resources held by the gateway.
func (g *Gateway) shutdown() {
	g.dedupe.Close()
	if err := g.store.Close(); err != nil {
		g.logger.Error("closing store", "error", err)
	}
}

// handleHealth handles GET /health requests.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
