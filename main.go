package main

import (
	"context"
	"log"
	"strings"

	"marketplace-service/config"
	"marketplace-service/controllers"
	"marketplace-service/database"
	"marketplace-service/kafka"
	"marketplace-service/models"
	awspkg "marketplace-service/pkg/aws"
	"marketplace-service/repository"
	"marketplace-service/routes"
	"marketplace-service/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("[Marketplace] No .env file found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[Marketplace] Failed to load config:", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("[Marketplace] Failed to initialize logger:", err)
	}
	defer logger.Sync()

	db, err := database.ConnectPostgres(cfg, logger,
		&models.Order{}, &models.OrderItem{}, &models.Payment{}, &models.ServiceListing{},
	)
	if err != nil {
		log.Fatal("[Marketplace] Failed to connect to DB:", err)
	}

	orderRepo := repository.NewGormOrderRepository(db)
	paymentRepo := repository.NewGormPaymentRepository(db)
	listingRepo := repository.NewGormServiceListingRepository(db)

	stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey)

	awsCfg, err := awspkg.LoadAWSConfig(context.Background())
	if err != nil {
		log.Fatal("[Marketplace] Failed to load AWS config:", err)
	}
	notifier := services.NewSNSNotifier(awspkg.NewSNSClient(awsCfg), cfg.OrderSNSTopicARN, logger)

	producer := kafka.NewProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.OrderEventsTopic, logger)
	defer producer.Close()

	orderSvc := services.NewOrderService(orderRepo, listingRepo, producer, notifier, cfg.Fees, cfg.Currency, logger)
	paymentSvc := services.NewPaymentService(orderRepo, paymentRepo, stripeSvc, cfg.Fees, logger)
	webhookSvc := services.NewWebhookService(stripeSvc, paymentRepo, orderRepo, notifier, logger)

	r := gin.New()
	r.Use(gin.Recovery())

	oc := controllers.NewOrderController(orderSvc)
	pc := &controllers.PaymentController{
		Payments: paymentSvc,
		Webhooks: webhookSvc,
		Logger:   logger,
	}
	routes.RegisterRoutes(r, oc, pc)

	log.Println("[Marketplace] Running on port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("[Marketplace] Server failed:", err)
	}
}
