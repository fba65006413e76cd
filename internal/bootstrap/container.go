package bootstrap

import (
	"context"
	"log"

	"lingua-exchange-be/internal/config"
	"lingua-exchange-be/internal/controller"
	"lingua-exchange-be/internal/model"
	"lingua-exchange-be/internal/pkg/logger"
	"lingua-exchange-be/internal/pkg/mailer"
	"lingua-exchange-be/internal/pkg/notifier"
	"lingua-exchange-be/internal/repository/unitofwork"
	"lingua-exchange-be/internal/scheduler"
	"lingua-exchange-be/internal/service"
	"lingua-exchange-be/pkg/iap"

	pktNats "lingua-exchange-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const webhookTopic = "vip.notifications"

type Container struct {
	// Controllers
	PurchaseController controller.IPurchaseController

	// Background Services (Exposed for main.go to run)
	WebhookService service.IWebhookService
	SweepScheduler *scheduler.Scheduler

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	if err := db.AutoMigrate(&model.User{}, &model.VipSubscription{}, &model.VipTransaction{}); err != nil {
		log.Printf("[WARN] Auto migration failed: %v", err)
	}

	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	webhookLogger := logger.NewIsolatedLogger("logs/webhook.log")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.SenderName,
	)
	lifecycleNotifier := notifier.NewEmailNotifier(emailService, sysLogger)

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS (audit events; the service degrades to local-only when absent)
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis (sweep leader lease)
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// 3. Store Verifiers
	appleVerifier := iap.NewAppleVerifier(cfg.Apple.SharedSecret, cfg.Apple.BundleId)
	googleVerifier, err := iap.NewGoogleVerifier(context.Background(), cfg.Google.PackageName, cfg.Google.ServiceAccountJSON)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize Play verifier: %v", err)
	}

	// 4. Services
	vipService := service.NewVipService(
		uowFactory,
		[]iap.Verifier{appleVerifier, googleVerifier},
		natsPub,
		sysLogger,
		&cfg.Vip,
	)
	webhookService := service.NewWebhookService(
		pubSub,
		webhookTopic,
		vipService,
		webhookLogger,
	)
	sweepService := service.NewSweepService(
		uowFactory,
		lifecycleNotifier,
		natsPub,
		sysLogger,
		&cfg.Vip,
	)

	sweepScheduler := scheduler.New(sweepService, rdb, sysLogger)

	// 5. Controllers
	return &Container{
		PurchaseController: controller.NewPurchaseController(vipService, webhookService, sysLogger),
		WebhookService:     webhookService,
		SweepScheduler:     sweepScheduler,
		Logger:             sysLogger,
	}
}
