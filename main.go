package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"SupportChat/internal/api"
	"SupportChat/internal/config"
	"SupportChat/internal/gateway"
	"SupportChat/internal/service"
	"SupportChat/internal/storage"
	"SupportChat/internal/telegram"
)

func main() {
	// --- Блок инициализации ---
	err := godotenv.Load()
	if err != nil {
		log.Println("Предупреждение: не удалось загрузить файл .env. Переменные окружения должны быть установлены иным способом.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Критическая ошибка: не удалось загрузить конфигурацию: %v", err)
	}

	var store storage.ChatStore
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Критическая ошибка: не удалось инициализировать базу данных: %v", err)
		}
		defer pg.Close()
		store = pg
	} else {
		log.Println("Предупреждение: DATABASE_URL не задан, используется хранилище в памяти. Данные будут потеряны при перезапуске.")
		store = storage.NewMemoryStore()
	}

	chatService := service.NewChatService(store)
	hub := gateway.NewHub(chatService, cfg.JWTSecret)
	relay := telegram.NewRelay(cfg, chatService, hub)
	hub.SetNotifier(relay)

	// --- Настройка роутера и Middleware ---
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	api.SetupRoutes(router, api.Dependencies{
		SecretKey: cfg.JWTSecret,
		Service:   chatService,
		Hub:       hub,
	})

	router.Get("/ws", hub.ServeWS)

	// Запуск Telegram-релея. Ошибка здесь не фатальна: чат продолжает
	// работать через веб-каналы без бота.
	if cfg.TelegramToken != "" {
		if err := relay.Init(); err != nil {
			log.Printf("Ошибка: не удалось запустить Telegram-релей: %v", err)
		}
	} else {
		log.Println("Предупреждение: TELEGRAM_APITOKEN не задан, Telegram-релей отключен.")
	}
	defer relay.Shutdown()

	log.Printf("Запуск HTTP-сервера чата поддержки на порту %s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("КРИТИЧЕСКАЯ ОШИБКА: не удалось запустить HTTP-сервер: %v", err)
	}
}
