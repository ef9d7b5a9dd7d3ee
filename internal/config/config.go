package config

import (
	"log"
	"os"
	"strconv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	TelegramToken string
	DatabaseURL   string
	AppEnv        string
	JWTSecret     string
	AdminChatID   int64 // Telegram chat_id администратора, которому разрешены команды бота
	BotUsername   string
	SiteURL       string // публичный адрес сайта, используется для QR-кода
	Port          string
}

// LoadConfig загружает конфигурацию из переменных окружения.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		TelegramToken: os.Getenv("TELEGRAM_APITOKEN"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		AppEnv:        os.Getenv("ENV"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		BotUsername:   os.Getenv("BOT_USERNAME"),
		SiteURL:       os.Getenv("SITE_URL"),
		Port:          os.Getenv("PORT"),
	}

	var err error
	cfg.AdminChatID, err = strconv.ParseInt(os.Getenv("ADMIN_CHAT_ID"), 10, 64)
	if err != nil {
		log.Printf("Предупреждение: не удалось прочитать ADMIN_CHAT_ID: %v. Команды бота будут недоступны.", err)
		cfg.AdminChatID = 0
	}

	if cfg.TelegramToken == "" {
		log.Println("Предупреждение: TELEGRAM_APITOKEN не установлен. Мост в Telegram отключен.")
	}
	if cfg.JWTSecret == "" {
		log.Println("Критическая ошибка: JWT_SECRET не установлен. Аутентификация работать не будет.")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Предупреждение: DATABASE_URL не установлена. Будет использовано хранилище в памяти (dev-режим).")
	}
	if cfg.SiteURL == "" {
		log.Println("Предупреждение: SITE_URL не установлен. Команда /qr будет недоступна.")
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	log.Println("Конфигурация загружена.")
	return cfg, nil
}
