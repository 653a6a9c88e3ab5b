package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/satwhiz/inboxtriage/internal/instrumentation"
	"github.com/satwhiz/inboxtriage/internal/mcp/oauth"
	"github.com/satwhiz/inboxtriage/internal/resources"
	"github.com/satwhiz/inboxtriage/internal/server"
	"github.com/satwhiz/inboxtriage/internal/tools/google_tools"
	"github.com/satwhiz/inboxtriage/internal/tools/triage_tools"
)

// serveConfig collects the settings for the MCP server.
type serveConfig struct {
	transport   string
	httpAddr    string
	debugMode   bool
	yolo        bool
	baseURL     string
	model       string
	historyDays int
	workers     int

	// OAuth security settings (HTTP transports)
	googleClientID                string
	googleClientSecret            string
	allowPublicClientRegistration bool
	registrationAccessToken       string
	allowInsecureAuthWithoutState bool
	maxClientsPerIP               int
	encryptionKey                 []byte
	allowedCustomSchemes          []string

	// Metrics server configuration
	metricsEnabled bool
	metricsAddr    string
}

func newServeCmd() *cobra.Command {
	var cfg serveConfig
	var encryptionKey string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server to provide Gmail triage
tools for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport
  - sse: Server-Sent Events transport

Safety Mode:
  By default, the server operates in read-only mode. Classifications are
  reported but labels are never applied. Use --yolo to enable write
  operations (label application, archiving).

Classification:
  Requires an OpenAI API key in the OPENAI_API_KEY environment variable.
  Use --model or INBOXTRIAGE_MODEL to select the model.

OAuth Configuration (HTTP transports):
  Base URL (required for deployed instances):
    --base-url https://your-domain.com OR MCP_BASE_URL env var
    Auto-detected for localhost (development only)

  Google OAuth credentials:
    --google-client-id and --google-client-secret flags
    OR INBOXTRIAGE_GOOGLE_CLIENT_ID and INBOXTRIAGE_GOOGLE_CLIENT_SECRET
    env vars. Required for the OAuth proxy flow to Google.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Parse encryption key from base64 if provided
			if encryptionKey == "" {
				encryptionKey = os.Getenv("MCP_OAUTH_ENCRYPTION_KEY")
			}
			if encryptionKey != "" {
				decoded, err := base64.StdEncoding.DecodeString(encryptionKey)
				if err != nil {
					return fmt.Errorf("invalid encryption key (must be base64 encoded): %w", err)
				}
				if len(decoded) != 32 {
					return fmt.Errorf("encryption key must be exactly 32 bytes (got %d bytes)", len(decoded))
				}
				cfg.encryptionKey = decoded
			}

			loadServeEnvVars(cmd, &cfg)
			return runServe(cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&cfg.transport, "transport", "stdio", "Transport type: stdio, sse or streamable-http")
	cmd.Flags().StringVar(&cfg.httpAddr, "http-addr", ":8080", "HTTP server address (for HTTP transports)")
	cmd.Flags().BoolVar(&cfg.yolo, "yolo", false, "Enable write operations (label application, archiving). Default is read-only mode.")
	cmd.Flags().StringVar(&cfg.baseURL, "base-url", "", "Public base URL for OAuth (HTTP transports only). Required for deployed instances. Can also use MCP_BASE_URL env var.")
	cmd.Flags().StringVar(&cfg.model, "model", "", "Model name for classification. Can also use INBOXTRIAGE_MODEL env var.")
	cmd.Flags().IntVar(&cfg.historyDays, "history-days", defaultHistoryDays, "Age in days after which threads are labeled history without a model call")
	cmd.Flags().IntVar(&cfg.workers, "workers", 4, "Number of threads classified concurrently")

	// OAuth security settings (HTTP transports only)
	cmd.Flags().StringVar(&cfg.googleClientID, "google-client-id", "", "Google OAuth Client ID for the OAuth proxy flow. Can also use INBOXTRIAGE_GOOGLE_CLIENT_ID env var.")
	cmd.Flags().StringVar(&cfg.googleClientSecret, "google-client-secret", "", "Google OAuth Client Secret for the OAuth proxy flow. Can also use INBOXTRIAGE_GOOGLE_CLIENT_SECRET env var.")
	cmd.Flags().BoolVar(&cfg.allowPublicClientRegistration, "oauth-allow-public-registration", false, "WARNING: Allow unauthenticated client registration (NOT recommended for production). Can also use MCP_OAUTH_ALLOW_PUBLIC_REGISTRATION env var.")
	cmd.Flags().StringVar(&cfg.registrationAccessToken, "oauth-registration-token", "", "Registration access token required for client registration when public registration is disabled. Can also use MCP_OAUTH_REGISTRATION_TOKEN env var.")
	cmd.Flags().StringVar(&encryptionKey, "oauth-encryption-key", "", "AES-256 encryption key for token storage at rest (32 bytes, base64 encoded). Can also use MCP_OAUTH_ENCRYPTION_KEY env var. Generate with: openssl rand -base64 32")
	cmd.Flags().BoolVar(&cfg.allowInsecureAuthWithoutState, "oauth-allow-no-state", false, "WARNING: Allow authorization without state parameter (weakens CSRF protection). Can also use MCP_OAUTH_ALLOW_NO_STATE env var.")
	cmd.Flags().IntVar(&cfg.maxClientsPerIP, "oauth-max-clients-per-ip", 10, "Maximum number of clients that can be registered per IP address. Can also use MCP_OAUTH_MAX_CLIENTS_PER_IP env var.")
	cmd.Flags().StringSliceVar(&cfg.allowedCustomSchemes, "oauth-custom-schemes", nil, "Custom redirect URI scheme patterns allowed during client registration (e.g. for Cursor/VSCode). Can also use MCP_OAUTH_CUSTOM_SCHEMES env var.")

	// Metrics server flags
	cmd.Flags().BoolVar(&cfg.metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&cfg.metricsAddr, "metrics-addr", ":9090", "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

// loadServeEnvVars applies environment variables for flags the user did
// not set explicitly.
func loadServeEnvVars(cmd *cobra.Command, cfg *serveConfig) {
	if cfg.googleClientID == "" {
		cfg.googleClientID = os.Getenv("INBOXTRIAGE_GOOGLE_CLIENT_ID")
	}
	if cfg.googleClientSecret == "" {
		cfg.googleClientSecret = os.Getenv("INBOXTRIAGE_GOOGLE_CLIENT_SECRET")
	}
	if cfg.baseURL == "" {
		cfg.baseURL = os.Getenv("MCP_BASE_URL")
	}
	if cfg.model == "" {
		cfg.model = os.Getenv("INBOXTRIAGE_MODEL")
	}
	if !cfg.allowPublicClientRegistration && os.Getenv("MCP_OAUTH_ALLOW_PUBLIC_REGISTRATION") == "true" {
		cfg.allowPublicClientRegistration = true
	}
	if cfg.registrationAccessToken == "" {
		cfg.registrationAccessToken = os.Getenv("MCP_OAUTH_REGISTRATION_TOKEN")
	}
	if !cfg.allowInsecureAuthWithoutState && os.Getenv("MCP_OAUTH_ALLOW_NO_STATE") == "true" {
		cfg.allowInsecureAuthWithoutState = true
	}
	if len(cfg.allowedCustomSchemes) == 0 {
		cfg.allowedCustomSchemes = parseCommaSeparatedList(os.Getenv("MCP_OAUTH_CUSTOM_SCHEMES"))
	}
	if !cmd.Flags().Changed("oauth-max-clients-per-ip") {
		if envMax := os.Getenv("MCP_OAUTH_MAX_CLIENTS_PER_IP"); envMax != "" {
			if maxClients, err := strconv.Atoi(envMax); err == nil && maxClients > 0 {
				cfg.maxClientsPerIP = maxClients
			}
		}
	}
	if !cmd.Flags().Changed("metrics-enabled") {
		if os.Getenv("METRICS_ENABLED") == "false" {
			cfg.metricsEnabled = false
		}
	}
	if !cmd.Flags().Changed("metrics-addr") {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			cfg.metricsAddr = addr
		}
	}
}

func runServe(cfg serveConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := newCLILogger(cfg.debugMode)

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if cfg.transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	var metrics *instrumentation.Metrics
	if provider.Enabled() {
		metrics = provider.Metrics()
	}

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if cfg.transport != "stdio" && cfg.metricsEnabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.metricsAddr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server stopped with error: %v", err)
			}
		}()
		log.Printf("Metrics server listening on %s", metricsServer.Addr())
	}

	// Build the classifier. The MCP server cannot run without one: every
	// triage tool depends on it.
	classifier, err := buildClassifier(cfg.model, cfg.historyDays, cfg.workers, logger, metrics)
	if err != nil {
		return err
	}

	// Create server context
	sctxConfig := server.ServerContextConfig{
		Classifier: classifier,
		Workers:    cfg.workers,
		Logger:     logger,
	}
	if provider.Enabled() {
		sctxConfig.Metrics = metrics
		sctxConfig.AuditLogger = instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging)
	}

	serverContext, err := server.NewServerContext(shutdownCtx, sctxConfig)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			if cfg.transport != "stdio" {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("inboxtriage", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)

	// readOnly is the inverse of yolo
	readOnly := !cfg.yolo

	// Log the mode for visibility (only for non-stdio transports)
	if cfg.transport != "stdio" {
		if readOnly {
			log.Println("Starting server in READ-ONLY mode (use --yolo to enable write operations)")
		} else {
			log.Println("Starting server with WRITE operations enabled (--yolo flag is set)")
		}
	}

	// Register all tools and resources
	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	// Start the appropriate server based on transport type
	switch cfg.transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "sse", "streamable-http":
		fmt.Printf("Starting inboxtriage MCP server with %s transport...\n", cfg.transport)
		return runHTTPServer(shutdownCtx, mcpSrv, serverContext, provider, cfg)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, sse, streamable-http)", cfg.transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools and resources
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext, readOnly bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Triage",
			register: func() error {
				return triage_tools.RegisterTriageTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Google Auth",
			register: func() error {
				return google_tools.RegisterGoogleTools(mcpSrv, ctx)
			},
		},
		{
			name: "User Resources",
			register: func() error {
				return resources.RegisterUserResources(mcpSrv, ctx)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}

	return nil
}

func runHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, provider *instrumentation.Provider, cfg serveConfig) error {
	// Determine base URL from flag, environment variable, or auto-detection
	baseURL := cfg.baseURL
	if baseURL == "" {
		// Fall back to auto-detection for local development
		baseURL = fmt.Sprintf("http://%s", cfg.httpAddr)
		if cfg.httpAddr[0] == ':' {
			baseURL = fmt.Sprintf("http://localhost%s", cfg.httpAddr)
		}
		log.Printf("No base URL configured, using auto-detected: %s", baseURL)
		log.Printf("For deployed instances, set --base-url flag or MCP_BASE_URL env var")
	} else {
		log.Printf("Using configured base URL: %s", baseURL)
	}

	oauthServer, err := server.NewOAuthHTTPServer(mcpSrv, cfg.transport, server.OAuthConfig{
		BaseURL:                       baseURL,
		GoogleClientID:                cfg.googleClientID,
		GoogleClientSecret:            cfg.googleClientSecret,
		AllowPublicClientRegistration: cfg.allowPublicClientRegistration,
		RegistrationAccessToken:       cfg.registrationAccessToken,
		AllowInsecureAuthWithoutState: cfg.allowInsecureAuthWithoutState,
		MaxClientsPerIP:               cfg.maxClientsPerIP,
		EncryptionKey:                 cfg.encryptionKey,
		AllowedCustomSchemes:          cfg.allowedCustomSchemes,
	})
	if err != nil {
		return fmt.Errorf("failed to create OAuth HTTP server: %w", err)
	}

	// Gmail clients read tokens from the OAuth server's store so that users
	// authenticated through the MCP client reach their own mailbox.
	serverContext.SetTokenProvider(oauth.NewTokenProvider(oauthServer.GetOAuthHandler().GetStore()))

	// Set up health check endpoints
	healthChecker := server.NewHealthChecker(serverContext)
	oauthServer.SetHealthChecker(healthChecker)

	// Set up HTTP instrumentation for metrics
	if provider != nil && provider.Enabled() {
		oauthServer.SetMetrics(provider.Metrics())
	}

	fmt.Printf("HTTP server with Google OAuth authentication starting on %s\n", cfg.httpAddr)
	if cfg.transport == "streamable-http" {
		fmt.Printf("  HTTP endpoint: /mcp\n")
	} else {
		fmt.Printf("  SSE endpoints: /sse, /message\n")
	}
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	fmt.Printf("  OAuth metadata: /.well-known/oauth-protected-resource\n")
	fmt.Printf("  Authorization Server: %s\n", baseURL)
	if cfg.metricsEnabled {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", cfg.metricsAddr)
	}

	if cfg.googleClientID != "" && cfg.googleClientSecret != "" {
		fmt.Println("\n✓ Automatic token refresh: ENABLED")
		fmt.Println("  Tokens will be refreshed automatically before expiration")
	} else {
		fmt.Println("\n⚠ Automatic token refresh: DISABLED")
		fmt.Println("  Users will need to re-authenticate when tokens expire (~1 hour)")
		fmt.Println("  To enable, provide --google-client-id and --google-client-secret")
	}

	fmt.Println("\nClients must authenticate with Google OAuth to access this server.")
	fmt.Println("The MCP client (e.g., Cursor, Claude Desktop) will handle the OAuth flow automatically.")

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := oauthServer.Start(cfg.httpAddr); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()
	healthChecker.SetReady(true)

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		healthChecker.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := oauthServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		fmt.Println("HTTP server stopped normally")
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}

// parseCommaSeparatedList parses a comma-separated string into a slice,
// trimming whitespace from each element and filtering out empty strings.
// Returns nil if the input is empty or contains only whitespace/commas.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
