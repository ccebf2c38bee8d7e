package cmd

import (
	"context"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	pubnub "github.com/pubnub/go/v7"

	"auction-system/config"
	"auction-system/handlers"
	_ "auction-system/migrations"
	"auction-system/monitoring"
	"auction-system/services"
	"auction-system/store"
	"auction-system/utils"
	"auction-system/ws"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	// Initialize PubNub (optional; the notifier degrades to a no-op when
	// keys are absent)
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.PubNubUserID))
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		pn = pubnub.NewPubNub(pnConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		logger := app.Logger()

		var notify services.Publisher = services.NoopPublisher{}
		if pn != nil {
			notify = services.NewPubNubNotifier(pn, logger)
		}

		// Initialize services
		st := store.NewPBStore(app)
		hub := ws.NewHub()
		chatService := services.NewChatService(st, hub, notify, logger)
		auctionService := services.NewAuctionService(st, hub, chatService, notify, cfg.BaseURL, logger)
		scheduler := services.NewScheduler(redisClient, st, auctionService, cfg.ScheduleKey, cfg.SweepInterval, cfg.SweepBatch, logger)

		// Initialize handlers
		listingRoom := ws.NewListingRoom(auctionService, st, logger)
		inboxRoom := ws.NewInboxRoom(chatService, logger)
		socketHandler := handlers.NewSocketHandler(app, hub, listingRoom, inboxRoom, logger)
		listingHandler := handlers.NewListingHandler(st, scheduler, logger)
		chatHandler := handlers.NewChatHandler(chatService, logger)

		// Re-register active listings and start the expiry sweeps
		if err := scheduler.Recover(ctx); err != nil {
			logger.Error("schedule recovery failed", "error", err)
		}
		go scheduler.Run(ctx)

		if cfg.EnableMetrics {
			monitoring.StartMetricsServer(cfg.MetricsPort, logger)
		}

		// Live rooms
		e.Router.GET("/ws/market/{listingId}", socketHandler.ListingSocket)
		e.Router.GET("/ws/inbox", socketHandler.InboxSocket)

		// Market endpoints
		e.Router.GET("/api/market/listings", listingHandler.List)
		e.Router.GET("/api/market/listings/{listingId}", listingHandler.Detail)
		e.Router.POST("/api/market/listings", listingHandler.Create).Bind(apis.RequireAuth())

		// Chat endpoints
		e.Router.POST("/api/market/chats/{chatId}/read", chatHandler.MarkRead).Bind(apis.RequireAuth())

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		return e.Next()
	})

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		return e.Next()
	})

	return app.Start()
}
