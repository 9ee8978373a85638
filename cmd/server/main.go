package main

import (
	"log"

	"faciliroom/internal/config"
	"faciliroom/internal/database"
	"faciliroom/internal/handlers"
	"faciliroom/internal/middleware"
	"faciliroom/internal/services"
	"faciliroom/internal/ws"

	_ "faciliroom/docs"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Faciliroom API
// @version         1.0
// @description     Room API and realtime gateway for AI-facilitated group discussions
// @host            localhost:8080
// @BasePath        /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter "Bearer {token}"

func main() {
	cfg := config.Load()

	db := database.Connect(cfg)
	database.AutoMigrate(db)

	hub := ws.NewHub()

	authService := services.NewAuthService(cfg.JWTSecret)
	agendaService := services.NewAgendaService(cfg.AIAPIKey, cfg.AIAPIURL, cfg.AIModel)
	roomService := services.NewRoomService(db, agendaService)
	progressService := services.NewProgressService()

	if !agendaService.IsAvailable() {
		log.Println("AI_API_KEY not set, using built-in fallback agendas")
	}

	authHandler := handlers.NewAuthHandler(authService)
	roomHandler := handlers.NewRoomHandler(roomService, hub)
	gatewayHandler := handlers.NewGatewayHandler(roomService, progressService, agendaService, hub)

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/ws/room/:id", gatewayHandler.HandleRoomWebSocket)

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/anonymous", authHandler.SignInAnonymously)
		}

		rooms := api.Group("/rooms")
		{
			rooms.GET("/:id", roomHandler.GetRoom)

			authed := rooms.Group("")
			authed.Use(middleware.JWTAuth(authService))
			{
				authed.POST("", roomHandler.CreateRoom)
				authed.POST("/:id/join", roomHandler.JoinRoom)
				authed.POST("/:id/settings", roomHandler.UpdateSettings)
				authed.POST("/:id/finish", roomHandler.FinishRoom)
			}
		}
	}

	log.Printf("server starting on :%s", cfg.ServerPort)
	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
