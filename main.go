package main

import (
	"log"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/egor/portfoliorelay/database"
	"github.com/egor/portfoliorelay/handlers"
	"github.com/egor/portfoliorelay/middleware"
	"github.com/egor/portfoliorelay/websocket"
	"github.com/egor/portfoliorelay/workflow"
)

func main() {
	// Переменные окружения из .env (файл опционален)
	if err := godotenv.Load(); err != nil {
		log.Println("Файл .env не найден, используем переменные окружения")
	}

	// Инициализация базы данных
	if err := database.Init(); err != nil {
		log.Fatalf("Ошибка подключения к базе данных: %v", err)
	}
	defer database.Close()

	// Инициализация роутера Gin
	r := gin.Default()

	// Логирование запросов
	r.Use(middleware.Logger())

	// CORS для фронтенда портфолио
	frontendURL := os.Getenv("FRONTEND_URL")
	if frontendURL == "" {
		frontendURL = "http://localhost:3000"
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{frontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// WebSocket хаб для админских дашбордов
	hub := websocket.NewHub()
	go hub.Run()

	api := handlers.NewAPI(database.NewStore(), workflow.NewNotifierFromEnv(), hub)

	// API эндпоинты
	g := r.Group("/api")
	{
		// Авторизация админов (публичный)
		g.POST("/auth/login", api.Login)

		// Ретрансляция сообщений чат-виджета (публичный: посетители анонимны)
		g.POST("/relay/message", api.RelayMessage)

		// Вебхук голосового провайдера
		g.POST("/voice/webhook", api.VoiceWebhook)
		g.GET("/voice/webhook", api.VoiceWebhookVerify)

		// Защищенные маршруты админки
		authorized := g.Group("/")
		authorized.Use(middleware.AuthMiddleware())
		{
			authorized.GET("/integrations", api.ListIntegrations)
			authorized.POST("/integrations", api.CreateIntegration)
			authorized.PUT("/integrations/:id", api.UpdateIntegration)
			authorized.DELETE("/integrations/:id", api.DeleteIntegration)

			authorized.GET("/discordant/servers", api.ListServers)
			authorized.GET("/discordant/channels", api.ListChannels)
			authorized.POST("/discordant/setup", api.Setup)

			authorized.GET("/voice/events", api.ListVoiceEvents)
		}
	}

	// WebSocket эндпоинт
	r.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(hub, c.Writer, c.Request)
	})

	// Запуск сервера
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Сервер запущен на порту :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Ошибка запуска сервера: %v", err)
	}
}
