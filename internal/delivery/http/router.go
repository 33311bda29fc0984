package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/unrolled/secure"

	"tradejournal/internal/infra"
	custommiddleware "tradejournal/internal/middleware"
)

// RouterConfig holds all dependencies for routing
type RouterConfig struct {
	AuthHandler   *AuthHandler
	SignalHandler *SignalHandler
	TradeHandler  *TradeHandler
	UserHandler   *UserHandler
	AdminHandler  *AdminHandler
	WebHandler    *WebHandler
	Renderer      echo.Renderer

	Perimeter *custommiddleware.Perimeter
	// WebhookLimiter is optional; without Redis the webhooks are not rate limited
	WebhookLimiter *infra.RateLimiter
	AuthPerMinute  int
	Metrics        *infra.Metrics
	Logger         logrus.FieldLogger
	Production     bool
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(e *echo.Echo, config *RouterConfig) {
	e.HTTPErrorHandler = NewErrorHandler(config.Logger)
	e.Renderer = config.Renderer

	// Middleware
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(config.Logger))
	e.Use(echomiddleware.Recover())
	e.Use(echo.WrapMiddleware(securityHeaders(config.Production)))
	e.Use(config.Perimeter.Middleware())

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return SuccessResponse(c, map[string]interface{}{
			"status":    "healthy",
			"service":   "tradejournal",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// Pages
	e.GET("/", config.WebHandler.HandleIndex)
	e.GET("/banned", config.WebHandler.HandleBanned)
	e.GET("/dashboard", config.WebHandler.HandleDashboard)
	e.GET("/dashboard/settings", config.WebHandler.HandleSettings)
	e.GET("/admin", config.WebHandler.HandleAdmin)

	// Auth routes (public, limited per client IP)
	auth := e.Group("/auth")
	{
		limit := echo.WrapMiddleware(authLimiter(config.AuthPerMinute))
		auth.GET("/login", config.WebHandler.HandleLogin)
		auth.POST("/login", config.AuthHandler.Login, limit)
		auth.POST("/register", config.AuthHandler.Register, limit)
		auth.POST("/logout", config.AuthHandler.Logout)
	}

	api := e.Group("/api")

	// Signal webhooks
	var webhook []echo.MiddlewareFunc
	if config.WebhookLimiter != nil {
		webhook = append(webhook, custommiddleware.RateLimit(config.WebhookLimiter, "webhook", config.Metrics))
	}
	api.POST("/trades", config.SignalHandler.Trades, webhook...)
	api.POST("/notify", config.SignalHandler.Notify, webhook...)

	// Journal
	api.GET("/trades", config.TradeHandler.List)
	api.PATCH("/trades/:id", config.TradeHandler.Update)
	api.DELETE("/trades/:id", config.TradeHandler.Delete)

	// Own account
	api.GET("/user/role", config.UserHandler.GetRole)
	api.GET("/user/me", config.UserHandler.GetMe)
	api.GET("/profile", config.UserHandler.GetProfile)
	api.PATCH("/profile", config.UserHandler.UpdateProfile)
	api.GET("/preferences", config.UserHandler.GetPreferences)
	api.POST("/preferences", config.UserHandler.SetPreferences)
	api.GET("/keys", config.UserHandler.GetKey)
	api.POST("/keys", config.UserHandler.GenerateKey)

	// Superadmin console
	admin := api.Group("/admin")
	{
		admin.GET("/users", config.AdminHandler.ListUsers)
		admin.POST("/users/:id/ban", config.AdminHandler.SetBan)
		admin.PATCH("/users/:id/role", config.AdminHandler.ChangeRole)
		admin.PATCH("/users/:id/email", config.AdminHandler.UpdateEmail)
		admin.DELETE("/users/:id", config.AdminHandler.DeleteUser)
	}
}

func requestLogger(logger logrus.FieldLogger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Skip logging for health probes to reduce noise
			return c.Request().URL.Path == "/health"
		},
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"remote_ip":  v.RemoteIP,
				"request_id": v.RequestID,
			})
			if v.Error != nil && v.Status >= http.StatusInternalServerError {
				entry.WithError(v.Error).Error("Request")
				return nil
			}
			entry.Info("Request")
			return nil
		},
	})
}

func securityHeaders(production bool) func(http.Handler) http.Handler {
	return secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'; style-src 'self' 'unsafe-inline'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	}).Handler
}

func authLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		perMinute = 20
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(Response{Status: "error", Message: "Too many requests"})
		}),
	)
}
