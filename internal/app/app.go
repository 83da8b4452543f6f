// Package app wires stores, services and the HTTP router from configuration.
package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradewatch/internal/directory"
	"tradewatch/internal/handlers"
	"tradewatch/internal/lifecycle"
	"tradewatch/internal/middleware"
	"tradewatch/internal/notify"
	"tradewatch/internal/routes"
	"tradewatch/internal/storage"
	"tradewatch/internal/storage/gormstore"
	"tradewatch/internal/storage/memory"
	"tradewatch/internal/telegram"
	"tradewatch/pkg/config"
)

// Stores bundles the storage backends.
type Stores struct {
	Trades        storage.TradeStore
	Stats         storage.SetupStatStore
	Notifications storage.NotificationStore
	Recipients    storage.RecipientStore
}

// MemoryStores returns process-local stores.
func MemoryStores() Stores {
	return Stores{
		Trades:        memory.NewTradeStore(),
		Stats:         memory.NewSetupStatStore(),
		Notifications: memory.NewNotificationStore(),
		Recipients:    memory.NewRecipientStore(),
	}
}

// GormStores returns PostgreSQL-backed stores over db.
func GormStores(db *gorm.DB) Stores {
	s := gormstore.New(db)
	return Stores{Trades: s, Stats: s, Notifications: s, Recipients: s}
}

// Options carries the runtime collaborators of Services. Nil fields get defaults.
type Options struct {
	// Sender delivers notifications. Defaults to Bot, or a DisabledSender without one.
	Sender notify.Sender
	// Bot answers /start and /link commands. Without it the Telegram webhook is not served.
	Bot *telegram.Bot
	// KeyGuard defaults to the notification store.
	KeyGuard notify.KeyGuard
	Log      *logrus.Entry
}

// Services are the domain components shared by all binaries.
type Services struct {
	Stores     Stores
	Engine     *lifecycle.Engine
	Directory  *directory.Directory
	Dispatcher *notify.Dispatcher
	Commands   *telegram.CommandHandler
	Log        *logrus.Entry
}

func NewServices(cfg *config.Config, stores Stores, opts Options) *Services {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	sender := opts.Sender
	if sender == nil {
		if opts.Bot != nil {
			sender = opts.Bot
		} else {
			sender = telegram.DisabledSender{Log: log.WithField("component", "telegram")}
		}
	}

	guard := opts.KeyGuard
	if guard == nil {
		guard = notify.NewStoreKeyGuard(stores.Notifications)
	}

	dir := directory.New(stores.Recipients, log, cfg.LinkCodeTTL)
	svc := &Services{
		Stores:    stores,
		Engine:    lifecycle.NewEngine(stores.Trades, stores.Stats, log),
		Directory: dir,
		Dispatcher: notify.NewDispatcher(stores.Notifications, dir, sender, log, notify.Options{
			BlockedMarker: cfg.Notify.BlockedMarker,
			BurstTTL:      cfg.Notify.BurstTTL,
			KeyGuard:      guard,
		}),
		Log: log,
	}
	if opts.Bot != nil {
		svc.Commands = telegram.NewCommandHandler(dir, opts.Bot, log)
	}
	return svc
}

// NewRouter builds the HTTP surface. publisher may be nil, in which case
// relayed notifications are dispatched inline.
func NewRouter(cfg *config.Config, svc *Services, publisher handlers.JobPublisher) *gin.Engine {
	h := routes.Handlers{
		Webhook:    handlers.NewWebhookHandler(svc.Engine, svc.Log),
		Trades:     handlers.NewTradeHandler(svc.Stores.Trades, cfg.TradesPageLimit, svc.Log),
		Notify:     handlers.NewNotifyHandler(svc.Dispatcher, publisher, cfg.Notify.Queue, svc.Log),
		Recipients: handlers.NewRecipientHandler(svc.Directory, svc.Log),
	}
	if svc.Commands != nil {
		h.Telegram = handlers.NewTelegramHandler(svc.Commands, svc.Log)
	}

	return routes.SetupRouter(h, routes.Options{
		WebhookToken:   cfg.WebhookToken,
		RelaySecret:    cfg.RelaySecret,
		AllowedOrigins: cfg.AllowedOrigins,
		WebhookLimit: middleware.RateLimiterConfig{
			RequestsPerSecond: cfg.WebhookRateLimit,
			Burst:             cfg.WebhookBurst,
		},
	}, svc.Log)
}

// Runtime holds the external connections opened by Bootstrap.
type Runtime struct {
	*Services
	DB        *gorm.DB
	Redis     *redis.Client
	RabbitMQ  *amqp.Connection
	Publisher *config.Publisher
}

// Bootstrap opens the configured backends and builds Services. RabbitMQ is
// only connected when withBroker is set and a host is configured.
func Bootstrap(cfg *config.Config, withBroker bool) (*Runtime, error) {
	log := logrus.NewEntry(logrus.StandardLogger())
	rt := &Runtime{}

	var stores Stores
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("Using in-memory storage, state is lost on restart")
		stores = MemoryStores()
	case config.StoragePostgres:
		db, err := config.OpenDB(cfg.Database)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := gormstore.AutoMigrate(db); err != nil {
				_ = config.CloseDB(db)
				return nil, fmt.Errorf("auto migrate: %w", err)
			}
		}
		rt.DB = db
		stores = GormStores(db)
	default:
		return nil, fmt.Errorf("unknown STORAGE %q", cfg.Storage)
	}

	opts := Options{Log: log}
	if cfg.Redis.Enabled() {
		if rt.Redis = config.NewRedisClient(cfg.Redis); rt.Redis != nil {
			opts.KeyGuard = notify.NewRedisKeyGuard(rt.Redis, cfg.Notify.KeyTTL)
		}
	}

	if cfg.TelegramBotToken != "" {
		bot, err := telegram.NewBot(cfg.TelegramBotToken, log)
		if err != nil {
			rt.Close()
			return nil, err
		}
		opts.Bot = bot
	} else {
		log.Warn("TELEGRAM_BOT_TOKEN is empty, notifications will not be delivered")
	}

	if withBroker && cfg.RabbitMQ.Enabled() {
		conn, err := config.ConnectRabbitMQ(cfg.RabbitMQ)
		if err != nil {
			rt.Close()
			return nil, err
		}
		rt.RabbitMQ = conn
	}

	rt.Services = NewServices(cfg, stores, opts)
	return rt, nil
}

// EnablePublisher opens a publisher on the broker connection.
func (rt *Runtime) EnablePublisher() error {
	if rt.RabbitMQ == nil {
		return nil
	}
	pub, err := config.NewPublisher(rt.RabbitMQ)
	if err != nil {
		return err
	}
	rt.Publisher = pub
	return nil
}

// JobPublisher returns the publisher as a handlers.JobPublisher, or nil.
func (rt *Runtime) JobPublisher() handlers.JobPublisher {
	if rt.Publisher == nil {
		return nil
	}
	return rt.Publisher
}

// Close releases every connection Bootstrap opened.
func (rt *Runtime) Close() {
	if rt.Publisher != nil {
		_ = rt.Publisher.Close()
	}
	if rt.RabbitMQ != nil {
		_ = rt.RabbitMQ.Close()
	}
	if rt.Redis != nil {
		_ = rt.Redis.Close()
	}
	if rt.DB != nil {
		_ = config.CloseDB(rt.DB)
	}
}
