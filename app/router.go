// Package app wires shared HTTP routes for both local and Lambda execution.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/TECHINNNNNNNN/syntaxvoice/app/config"
	"github.com/TECHINNNNNNNN/syntaxvoice/app/llm"
	"github.com/TECHINNNNNNNN/syntaxvoice/app/logging"
	"github.com/TECHINNNNNNNN/syntaxvoice/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps are the collaborators a Server is built from.
type Deps struct {
	Store       Store
	Transcriber llm.Transcriber
	Generator   llm.Generator
	Billing     Billing // nil disables the billing endpoints
	Events      UsagePublisher
	Issuer      *auth.Issuer
	Verifier    *auth.Verifier
	Logger      *slog.Logger
	Now         func() time.Time
}

// Server holds the handlers of the HTTP API.
type Server struct {
	cfg         *config.Config
	store       Store
	transcriber llm.Transcriber
	generator   llm.Generator
	billing     Billing
	events      UsagePublisher
	issuer      *auth.Issuer
	verifier    *auth.Verifier
	quota       *QuotaPolicy
	log         *slog.Logger
	now         func() time.Time
	metrics     *prometheus.Registry
}

func NewServer(cfg *config.Config, d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Events == nil {
		d.Events = noopPublisher{}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Server{
		cfg:         cfg,
		store:       d.Store,
		transcriber: d.Transcriber,
		generator:   d.Generator,
		billing:     d.Billing,
		events:      d.Events,
		issuer:      d.Issuer,
		verifier:    d.Verifier,
		quota:       NewQuotaPolicy(d.Store, cfg.Quota.FreeMonthlyLimit, d.Now),
		log:         d.Logger,
		now:         d.Now,
		metrics:     newMetricsRegistry(),
	}
}

// Router builds the gin engine serving every route.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(logging.RequestLogger(s.log), gin.Recovery())
	router.Use(cors.New(corsConfig(s.cfg.Server.CORSOrigins)))

	router.GET("/health", Health)
	router.GET("/metrics", metricsHandler(s.metrics))
	router.POST("/register", s.Register)
	router.POST("/login", s.Login)
	router.POST("/billing/webhook", s.StripeWebhook)

	protected := router.Group("/")
	protected.Use(auth.Middleware(s.verifier, auth.MiddlewareConfig{
		ResolveExternal: s.resolveExternalUser,
	}))
	protected.GET("/me", s.Me)
	protected.POST("/project", s.CreateProject)
	protected.GET("/projects", s.ListProjects)
	protected.GET("/project/:id", s.GetProject)
	protected.PATCH("/project/:id", s.UpdateProject)
	protected.PATCH("/enhance-project-context", s.EnhanceProjectContext)
	protected.POST("/transcribe", s.Transcribe)
	protected.POST("/billing/checkout", s.CreateCheckoutSession)
	protected.POST("/billing/portal", s.CreatePortalSession)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{logging.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

// NewRouter builds the production router from cfg. The returned cleanup
// closes the database.
func NewRouter(ctx context.Context, cfg *config.Config) (*gin.Engine, func(), error) {
	store, err := OpenPostgres(ctx, cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing database", "err", err)
		}
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if cfg.Auth.JWKSURL != "" {
		if verifier, err = verifier.WithJWKS(cfg.Auth.JWKSIssuer, cfg.Auth.Audience, cfg.Auth.JWKSURL); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("jwks: %w", err)
		}
	}
	issuer, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	events, err := NewUsagePublisher(ctx, cfg.QueueURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var billing Billing
	if b, err := NewStripeBilling(cfg.Stripe); err == nil {
		billing = b
	} else {
		slog.Warn("stripe billing disabled", "err", err)
	}

	openai := llm.NewOpenAI(llm.OpenAIOptions{
		APIKey:             cfg.OpenAI.APIKey,
		BaseURL:            cfg.OpenAI.BaseURL,
		TranscriptionModel: cfg.OpenAI.TranscriptionModel,
		GenerationModel:    cfg.OpenAI.GenerationModel,
		MaxTokens:          cfg.OpenAI.MaxTokens,
	})

	srv := NewServer(cfg, Deps{
		Store:       store,
		Transcriber: openai,
		Generator:   openai,
		Billing:     billing,
		Events:      events,
		Issuer:      issuer,
		Verifier:    verifier,
	})
	return srv.Router(), cleanup, nil
}
