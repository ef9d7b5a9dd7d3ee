package telegram

import (
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

// botAPI — срез методов Telegram Bot API, которыми пользуется мост.
// В тестах подменяется фейком.
// botAPI is the slice of the Telegram Bot API the relay uses.
// Replaced by a fake in tests.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// connectBot создает клиент Telegram Bot API и подготавливает площадку
// для long-poll: безусловно отключает вебхук и сбрасывает очередь
// ожидающих обновлений платформы. Без этого при перезапуске процесса
// две poll-сессии используют один токен и платформа отвечает конфликтом.
func connectBot(token string) (botAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("токен Telegram API не предоставлен")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Telegram Bot API: %w", err)
	}
	log.Printf("Авторизован как аккаунт %s", api.Self.UserName)

	_, err = api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true})
	if err != nil {
		// Ошибка может возникнуть, если вебхука и не было. Логируем, но
		// не прерываем инициализацию.
		log.Printf("Предупреждение или ошибка при отключении вебхука: %v. Это может быть нормально, если вебхук не был установлен.", err)
	} else {
		log.Println("Вебхук отключен, очередь обновлений платформы сброшена.")
	}
	return api, nil
}

// isConflictError распознает ответ платформы о второй активной
// poll-сессии с тем же токеном (HTTP 409).
func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "Conflict") ||
		strings.Contains(err.Error(), "terminated by other getUpdates request")
}
