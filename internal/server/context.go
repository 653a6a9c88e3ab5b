package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/satwhiz/inboxtriage/internal/classify"
	"github.com/satwhiz/inboxtriage/internal/gmail"
	"github.com/satwhiz/inboxtriage/internal/google"
	"github.com/satwhiz/inboxtriage/internal/instrumentation"
	"github.com/satwhiz/inboxtriage/internal/triage"
)

// ServerContext holds the context for the MCP server
type ServerContext struct {
	ctx            context.Context
	cancel         context.CancelFunc
	classifier     *classify.Classifier
	tokenProvider  google.TokenProvider
	gmailClients   map[string]*gmail.Client   // Maps account name to Gmail client
	triageServices map[string]*triage.Service // Maps account name to triage service
	metrics        *instrumentation.Metrics
	auditLogger    *instrumentation.AuditLogger
	logger         *slog.Logger
	workers        int
	mu             sync.RWMutex
	shutdown       bool
}

// ServerContextConfig configures a new ServerContext.
type ServerContextConfig struct {
	// Classifier runs thread classification for all accounts.
	Classifier *classify.Classifier

	// TokenProvider supplies OAuth tokens for Gmail clients. Nil means the
	// file-based provider.
	TokenProvider google.TokenProvider

	// Workers bounds concurrent classifications per triage run.
	Workers int

	// Metrics receives triage and API metrics. Nil disables recording.
	Metrics *instrumentation.Metrics

	// AuditLogger records tool invocations for audit purposes. Optional.
	AuditLogger *instrumentation.AuditLogger

	// Logger receives structured logs. Nil discards them.
	Logger *slog.Logger
}

// NewServerContext creates a new server context
func NewServerContext(ctx context.Context, cfg ServerContextConfig) (*ServerContext, error) {
	if cfg.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &instrumentation.Metrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.TokenProvider == nil {
		cfg.TokenProvider = google.NewFileTokenProvider()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:            shutdownCtx,
		cancel:         cancel,
		classifier:     cfg.Classifier,
		tokenProvider:  cfg.TokenProvider,
		gmailClients:   make(map[string]*gmail.Client),
		triageServices: make(map[string]*triage.Service),
		metrics:        cfg.Metrics,
		auditLogger:    cfg.AuditLogger,
		logger:         cfg.Logger,
		workers:        cfg.Workers,
	}

	// Try to create the default Gmail client, but don't fail if the token
	// is missing. Clients are lazily initialized when first needed.
	if gmail.HasTokenForAccountWithProvider("default", sc.tokenProvider) {
		client, err := gmail.NewClientForAccountWithProvider(shutdownCtx, "default", sc.tokenProvider)
		if err != nil {
			cfg.Logger.Warn("failed to create Gmail client for default account", "error", err)
		} else {
			sc.gmailClients["default"] = client
		}
	}

	return sc, nil
}

// Context returns the server context
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Classifier returns the shared thread classifier.
func (sc *ServerContext) Classifier() *classify.Classifier {
	return sc.classifier
}

// Metrics returns the metrics recorder.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil if none is configured.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.auditLogger
}

// GmailClientForAccount returns the Gmail client for a specific account
// Creates and caches the client if it doesn't exist yet
// Returns nil if the account has no token
func (sc *ServerContext) GmailClientForAccount(account string) *gmail.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.gmailClientLocked(account)
}

func (sc *ServerContext) gmailClientLocked(account string) *gmail.Client {
	if client, ok := sc.gmailClients[account]; ok {
		return client
	}

	if !gmail.HasTokenForAccountWithProvider(account, sc.tokenProvider) {
		return nil
	}

	client, err := gmail.NewClientForAccountWithProvider(sc.ctx, account, sc.tokenProvider)
	if err != nil {
		sc.logger.Warn("failed to create Gmail client", "account", account, "error", err)
		return nil
	}

	sc.gmailClients[account] = client
	return client
}

// GmailClient returns the Gmail client for the default account
func (sc *ServerContext) GmailClient() *gmail.Client {
	return sc.GmailClientForAccount("default")
}

// SetGmailClientForAccount sets the Gmail client for a specific account
func (sc *ServerContext) SetGmailClientForAccount(account string, client *gmail.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.gmailClients[account] = client
	delete(sc.triageServices, account)
}

// SetGmailClient sets the Gmail client for the default account
func (sc *ServerContext) SetGmailClient(client *gmail.Client) {
	sc.SetGmailClientForAccount("default", client)
}

// SetTokenProvider replaces the token provider and drops all cached
// clients and services so they are recreated with tokens from the new
// provider. The HTTP transport uses this to switch from file-based tokens
// to the OAuth server's token store.
func (sc *ServerContext) SetTokenProvider(provider google.TokenProvider) {
	if provider == nil {
		return
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.tokenProvider = provider
	sc.gmailClients = make(map[string]*gmail.Client)
	sc.triageServices = make(map[string]*triage.Service)
}

// TriageServiceForAccount returns the triage service for a specific account.
// Creates and caches the service if it doesn't exist yet.
// Returns an error if the account has no Gmail token.
func (sc *ServerContext) TriageServiceForAccount(account string) (*triage.Service, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if svc, ok := sc.triageServices[account]; ok {
		return svc, nil
	}

	client := sc.gmailClientLocked(account)
	if client == nil {
		return nil, fmt.Errorf("no Gmail client available for account %s", account)
	}

	svc, err := triage.NewService(client, sc.classifier, triage.ServiceConfig{
		Workers: sc.workers,
		Metrics: sc.metrics,
		Logger:  sc.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create triage service for account %s: %w", account, err)
	}

	sc.triageServices[account] = svc
	return svc, nil
}

// TriageService returns the triage service for the default account.
func (sc *ServerContext) TriageService() (*triage.Service, error) {
	return sc.TriageServiceForAccount("default")
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
