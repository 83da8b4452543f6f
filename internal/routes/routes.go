package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tradewatch/internal/handlers"
	"tradewatch/internal/metrics"
	"tradewatch/internal/middleware"
)

// Options configures the router.
type Options struct {
	WebhookToken   string
	RelaySecret    string
	AllowedOrigins []string
	WebhookLimit   middleware.RateLimiterConfig
}

// Handlers groups the endpoint handlers. Telegram may be nil when no bot is configured.
type Handlers struct {
	Webhook    *handlers.WebhookHandler
	Trades     *handlers.TradeHandler
	Notify     *handlers.NotifyHandler
	Recipients *handlers.RecipientHandler
	Telegram   *handlers.TelegramHandler
}

// SetupRouter builds the HTTP router with all routes registered.
func SetupRouter(h Handlers, opts Options, log *logrus.Entry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log.WithField("component", "http")))
	r.Use(middleware.CORS(opts.AllowedOrigins))

	r.Any("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if opts.WebhookToken == "" {
		log.Warn("WEBHOOK_TOKEN is empty, /webhook accepts unauthenticated requests")
	}
	SetupWebhookRoutes(r, h.Webhook, opts.WebhookToken, opts.WebhookLimit)
	SetupTradeRoutes(r, h.Trades)
	SetupNotifyRoutes(r, h.Notify, opts.RelaySecret)
	SetupRecipientRoutes(r, h.Recipients)
	if h.Telegram != nil {
		SetupTelegramRoutes(r, h.Telegram)
	}

	return r
}
