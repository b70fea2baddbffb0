// Package server wires stores, services and handlers into the HTTP router.
package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"tarotjournal/internal/auth"
	"tarotjournal/internal/config"
	_ "tarotjournal/internal/docs" // swagger spec registration
	"tarotjournal/internal/handlers"
	"tarotjournal/internal/logger"
	"tarotjournal/internal/mailer"
	"tarotjournal/internal/metrics"
	"tarotjournal/internal/middleware"
	"tarotjournal/internal/repository"
	"tarotjournal/internal/services"
	"tarotjournal/internal/session"
)

// Config holds the router settings.
type Config struct {
	// AllowedOrigin is the web client origin granted CORS access.
	AllowedOrigin string
	// AuthRateLimit is requests per second per IP on credential endpoints; 0 disables it.
	AuthRateLimit float64
	MetricsAPIKey string
	BcryptCost    int
	Session       session.Config
	Swagger       bool
}

// App is a fully wired API.
type App struct {
	Router   *gin.Engine
	Sessions *session.Manager
	Auth     services.AuthServicer
	Account  services.AccountServicer
	Admin    services.AdminServicer
	Audit    services.AuditServicer
}

// New builds the stores, services and router over db.
func New(db *gorm.DB, cfg Config, mail mailer.Sender) (*App, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}

	users := repository.NewUserRepository(db)
	sessions := session.NewManager(repository.NewSessionRepository(db), users, cfg.Session)

	deps := services.Deps{
		Users:    users,
		Sessions: sessions,
		Hasher:   auth.NewBcryptHasher(cfg.BcryptCost),
		Guard:    auth.NewLoginGuard(),
		Tokens:   auth.NewTokenIssuer(),
		Mailer:   mail,
	}

	app := &App{
		Sessions: sessions,
		Auth:     services.NewAuthService(deps),
		Account:  services.NewAccountService(deps),
		Admin:    services.NewAdminService(deps),
		Audit:    services.NewAuditService(db),
	}

	authHandler := handlers.NewAuthHandler(app.Auth, sessions, app.Audit)
	accountHandler := handlers.NewAccountHandler(app.Account, app.Audit)
	adminHandler := handlers.NewAdminHandler(app.Admin, app.Audit)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(cfg.AllowedOrigin))
	router.Use(middleware.LoadSession(sessions))

	if cfg.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	router.GET("/health", handlers.Health(sqlDB))
	router.GET("/metrics", middleware.APIKeyAuth(cfg.MetricsAPIKey), gin.WrapH(metrics.Handler()))

	api := router.Group("/api")

	// Public auth routes; credential endpoints are rate limited per IP
	limited := middleware.RateLimit(cfg.AuthRateLimit)
	authGroup := api.Group("/auth")
	authGroup.POST("/register", limited, authHandler.Register)
	authGroup.POST("/login", limited, authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout)
	authGroup.GET("/verify/:token", authHandler.VerifyEmail)
	authGroup.POST("/resend-verification", limited, authHandler.ResendVerification)
	authGroup.POST("/forgot-password", limited, authHandler.ForgotPassword)
	authGroup.POST("/reset-password", limited, authHandler.ResetPassword)
	authGroup.GET("/validate-reset-token/:token", authHandler.ValidateResetToken)
	authGroup.GET("/me", authHandler.Me)

	// Signed-in account routes
	account := authGroup.Group("", middleware.RequireAuth())
	account.PUT("/profile", accountHandler.UpdateProfile)
	account.PUT("/password", accountHandler.ChangePassword)
	account.PUT("/email", accountHandler.ChangeEmail)

	// Admin routes
	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/unverified-count", adminHandler.UnverifiedCount)
	admin.PUT("/users/:id/reset-password", adminHandler.ResetUserPassword)
	admin.PUT("/users/:id/verify", adminHandler.VerifyUser)
	admin.PUT("/users/:id/email", adminHandler.UpdateUserEmail)
	admin.DELETE("/users/:id", adminHandler.DeleteUser)

	app.Router = router
	return app, nil
}

// ConfigFrom maps application configuration to router settings.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		AllowedOrigin: cfg.BaseURL,
		AuthRateLimit: cfg.AuthRateLimit,
		MetricsAPIKey: cfg.MetricsAPIKey,
		BcryptCost:    cfg.BcryptCost,
		Session: session.Config{
			Secret: cfg.SessionSecret,
			TTL:    cfg.SessionTTL,
			Secure: cfg.IsProduction(),
		},
		Swagger: !cfg.IsProduction(),
	}
}

// NewMailer builds the account mailer, logging messages instead of sending
// them when SMTP is not configured.
func NewMailer(cfg *config.Config) (*mailer.Mailer, error) {
	transport, err := mailer.NewTransport(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.MailFrom,
	})
	if err != nil {
		return nil, err
	}
	if cfg.SMTPHost == "" {
		logger.Get().Warn("SMTP_HOST not set, emails will be logged instead of sent")
	}
	return mailer.New(transport, cfg.BaseURL)
}
