package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-sync-service/internal/config"
	"chat-sync-service/internal/db"
	"chat-sync-service/internal/delivery"
	"chat-sync-service/internal/gateway"
	"chat-sync-service/internal/handlers"
	"chat-sync-service/internal/middleware"
	"chat-sync-service/internal/observability"
	"chat-sync-service/internal/rabbitmq"
	"chat-sync-service/internal/registry"
	"chat-sync-service/internal/repositories"
	"chat-sync-service/internal/telemetry"
	"chat-sync-service/internal/tracing"
	"chat-sync-service/internal/typing"
	"chat-sync-service/internal/unread"
	"chat-sync-service/internal/ws"
)

const serviceName = "chat-sync-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	shutdownTracing, err := tracing.Setup(context.Background(), cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	if eventsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Printf("observability events disabled: %v", err)
	} else {
		observability.SetPublisher(eventsPublisher)
		defer eventsPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)

	messageRepo := repositories.NewMessageRepo(database)

	reg := registry.New()
	hub := ws.NewHub(reg)
	reg.SetPresenceListener(func(userID int, online bool) {
		hub.BroadcastPresence()
	})

	reconciler := unread.NewReconciler(messageRepo)
	stateMachine := delivery.NewStateMachine(messageRepo, reg, hub, reconciler)
	messageGateway := gateway.New(messageRepo, stateMachine, reconciler, hub)
	typingRelay := typing.New(hub, cfg.TypingTTL)
	defer typingRelay.Stop()

	messageHandler := handlers.NewMessageHandler(messageGateway, stateMachine, reconciler, messageRepo)
	wsHandler := ws.NewHandler(hub, typingRelay, stateMachine, cfg.JWTSecret)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret)

	router.GET("/api/messages/users", authMiddleware, messageHandler.ListPeers)
	router.GET("/api/messages/:id", authMiddleware, messageHandler.GetConversation)
	router.POST("/api/messages/send/:id", authMiddleware, messageHandler.SendMessage)
	router.PUT("/api/messages/seen/:id", authMiddleware, messageHandler.MarkSeen)

	router.GET("/ws", wsHandler.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
