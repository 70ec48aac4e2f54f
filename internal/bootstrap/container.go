package bootstrap

import (
	"fmt"

	"mediahub-be/internal/auth"
	"mediahub-be/internal/config"
	"mediahub-be/internal/controller"
	"mediahub-be/internal/pkg/logger"
	"mediahub-be/internal/pkg/serverutils"
	"mediahub-be/internal/service"
	"mediahub-be/internal/stats"
	"mediahub-be/internal/storage"
	"mediahub-be/internal/storage/factory"
	"mediahub-be/internal/websocket"

	pktNats "mediahub-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/multierr"
	"golang.org/x/time/rate"
)

type Container struct {
	Logger logger.ILogger

	// Controllers
	ChatController       controller.IChatController
	PlayRecordController controller.IPlayRecordController
	StatsController      controller.IStatsController
	AuthMiddleware       fiber.Handler

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	Manager          *websocket.Manager
	WebSocketHandler *websocket.Handler

	storage storage.IStorage
	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
}

func NewContainer(cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	store, err := factory.New(cfg.Storage, sysLogger)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS is optional; presence events are dropped without it.
	var eventPublisher websocket.EventPublisher
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL, sysLogger)
		if err != nil {
			sysLogger.Warn("Bootstrap", "Failed to connect to NATS Publisher", map[string]interface{}{"error": err.Error()})
		} else {
			eventPublisher = natsPub
		}
	}

	// 3. Realtime core
	wsLogger := logger.NewIsolatedLogger(cfg.App.RealtimeLogFilePath)
	manager := websocket.NewManager(websocket.Options{
		HeartbeatInterval: cfg.Realtime.HeartbeatInterval,
		SendBuffer:        cfg.Realtime.SendBuffer,
		MaxMessageSize:    cfg.Realtime.MaxMessageSize,
		WriteWait:         cfg.Realtime.WriteWait,
		RateLimit:         rate.Limit(cfg.Realtime.RateLimit),
		RateBurst:         cfg.Realtime.RateBurst,
	}, eventPublisher, wsLogger)

	verifier := auth.NewVerifier(cfg.App.AuthSecret)
	if !verifier.Enabled() {
		sysLogger.Warn("Bootstrap", "AUTH_SECRET is empty, auth signatures are not verified", nil)
	}

	// 4. Services
	aggregator := stats.NewAggregator(store, cfg.Stats.CacheTTL, sysLogger)
	publisherService := service.NewPublisherService(cfg.Stats.EventTopic, pubSub)
	consumerService := service.NewStatsConsumer(pubSub, cfg.Stats.EventTopic, aggregator, sysLogger)

	chatService := service.NewChatService(store, manager, sysLogger)
	playRecordService := service.NewPlayRecordService(store, publisherService, sysLogger)

	return &Container{
		Logger: sysLogger,

		ChatController:       controller.NewChatController(chatService),
		PlayRecordController: controller.NewPlayRecordController(playRecordService),
		StatsController:      controller.NewStatsController(aggregator),
		AuthMiddleware:       serverutils.AuthMiddleware(verifier),

		ConsumerService: consumerService,

		Manager:          manager,
		WebSocketHandler: websocket.NewHandler(manager, verifier, wsLogger),

		storage: store,
		pubSub:  pubSub,
		natsPub: natsPub,
	}, nil
}

// Close releases the event bus, NATS and storage, in that order.
func (c *Container) Close() error {
	err := c.pubSub.Close()
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	err = multierr.Append(err, c.storage.Close())
	_ = c.Logger.Sync()
	return err
}
