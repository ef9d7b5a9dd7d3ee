package telegram

import (
	"fmt"
	"log"
	"sync"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"SupportChat/internal/config"
	"SupportChat/internal/gateway"
	"SupportChat/internal/models"
	"SupportChat/internal/service"
)

// State — состояние моста. Переходы разрешены только методами Init,
// Shutdown и onConflict; это и есть защита от "двойного опрашивающего"
// вместо разрозненных проверок на nil.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	// MaxRestartAttempts — предел перезапусков после конфликтов
	// платформы. По достижении мост останавливается окончательно,
	// чтобы не устроить шторм перезапусков против второго процесса.
	MaxRestartAttempts = 3

	defaultRestartDelay = 5 * time.Second
	defaultSettleDelay  = 2 * time.Second
	pollTimeout         = 30 // секунд, long-poll платформы
	pollRetryDelay      = 3 * time.Second
)

// Relay — процесс-одиночка, мост между чатами поддержки и Telegram.
// Слушает long-poll платформы, исполняет команды администратора и
// доставляет ему уведомления о новых сообщениях пользователей.
type Relay struct {
	cfg     *config.Config
	service *service.ChatService
	hub     *gateway.Hub

	mu              sync.Mutex
	state           State
	api             botAPI
	stop            chan struct{}
	restartTimer    *time.Timer
	restartAttempts int

	// подменяются в тестах
	connect      func(token string) (botAPI, error)
	settleDelay  time.Duration
	restartDelay time.Duration
}

func NewRelay(cfg *config.Config, svc *service.ChatService, hub *gateway.Hub) *Relay {
	return &Relay{
		cfg:          cfg,
		service:      svc,
		hub:          hub,
		state:        StateUninitialized,
		connect:      connectBot,
		settleDelay:  defaultSettleDelay,
		restartDelay: defaultRestartDelay,
	}
}

// State возвращает текущее состояние моста.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Init запускает мост. Идемпотентен: вызов во время INITIALIZING или
// RUNNING — no-op. Перед стартом останавливает предыдущий локальный
// цикл опроса, а connectBot сбрасывает poll-сессию на стороне
// платформы; затем выдерживается пауза settleDelay и только после нее
// стартует цикл опроса.
func (r *Relay) Init() error {
	r.mu.Lock()
	if r.state == StateInitializing || r.state == StateRunning {
		r.mu.Unlock()
		return nil
	}
	token := r.cfg.TelegramToken
	if token == "" {
		r.mu.Unlock()
		return fmt.Errorf("токен Telegram API не предоставлен")
	}
	r.state = StateInitializing
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.mu.Unlock()

	api, err := r.connect(token)
	if err != nil {
		r.mu.Lock()
		r.state = StateUninitialized
		r.mu.Unlock()
		return err
	}

	// Пауза, чтобы платформа успела закрыть предыдущую poll-сессию.
	time.Sleep(r.settleDelay)

	r.mu.Lock()
	if r.state != StateInitializing {
		// Shutdown успел сработать во время инициализации.
		r.mu.Unlock()
		return nil
	}
	r.api = api
	stop := make(chan struct{})
	r.stop = stop
	r.state = StateRunning
	r.mu.Unlock()

	go r.pollLoop(api, stop)
	log.Println("Мост в Telegram запущен.")
	return nil
}

// pollLoop опрашивает платформу, пока не закрыт канал stop. Конфликт
// getUpdates передается в onConflict, остальные ошибки переживаются
// повтором.
func (r *Relay) pollLoop(api botAPI, stop chan struct{}) {
	offset := 0
	for {
		select {
		case <-stop:
			return
		default:
		}

		u := tgbotapi.NewUpdate(offset)
		u.Timeout = pollTimeout
		updates, err := api.GetUpdates(u)
		if err != nil {
			if isConflictError(err) {
				log.Printf("Конфликт getUpdates: второй опрашивающий с тем же токеном. %v", err)
				r.onConflict()
				return
			}
			log.Printf("Ошибка опроса Telegram: %v. Повтор через %s.", err, pollRetryDelay)
			select {
			case <-stop:
				return
			case <-time.After(pollRetryDelay):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			go r.handleUpdate(update)
		}
	}
}

// onConflict — реакция на конфликт платформы: остановить локальный
// опрос и запланировать переинициализацию с задержкой. Счетчик попыток
// не сбрасывается; по достижении MaxRestartAttempts мост встает
// окончательно и ждет оператора.
func (r *Relay) onConflict() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRunning {
		return
	}
	r.state = StateStopping
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.api = nil
	r.restartAttempts++

	if r.restartAttempts >= MaxRestartAttempts {
		r.state = StateStopped
		log.Printf("Достигнут предел перезапусков моста (%d). Автовосстановление отключено, требуется вмешательство оператора.", MaxRestartAttempts)
		return
	}

	if r.restartTimer != nil {
		r.restartTimer.Stop()
	}
	log.Printf("Переинициализация моста через %s (попытка %d из %d).", r.restartDelay, r.restartAttempts, MaxRestartAttempts)
	r.restartTimer = time.AfterFunc(r.restartDelay, func() {
		r.mu.Lock()
		if r.state != StateStopping {
			r.mu.Unlock()
			return
		}
		r.state = StateUninitialized
		r.mu.Unlock()
		if err := r.Init(); err != nil {
			log.Printf("Переинициализация моста не удалась: %v", err)
		}
	})
}

// Shutdown останавливает мост из любого состояния: снимает отложенный
// перезапуск, закрывает цикл опроса и переводит мост в STOPPED.
func (r *Relay) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.restartTimer != nil {
		r.restartTimer.Stop()
		r.restartTimer = nil
	}
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.api = nil
	r.state = StateStopped
	log.Println("Мост в Telegram остановлен.")
}

// NotifyNewUserMessage реализует gateway.AdminNotifier: форматирует
// сообщение пользователя и шлет его администратору. Вызывается шлюзом
// fire-and-forget; ошибка уходит в лог вызывающего и никогда не роняет
// операцию, породившую уведомление.
func (r *Relay) NotifyNewUserMessage(chat models.Chat, msg models.Message) error {
	r.mu.Lock()
	api := r.api
	state := r.state
	r.mu.Unlock()
	if state != StateRunning || api == nil {
		return fmt.Errorf("мост не запущен (состояние %s)", state)
	}
	if r.cfg.AdminChatID == 0 {
		return fmt.Errorf("ADMIN_CHAT_ID не настроен")
	}

	text := fmt.Sprintf("💬 Новое сообщение от %s\n[чат %s]\n\n%s", chatDisplayName(chat), chat.ID, msg.Text)
	_, err := api.Send(tgbotapi.NewMessage(r.cfg.AdminChatID, text))
	return err
}

// Reply — ответ администратора из Telegram: сохраняет сообщение от
// имени админа, доставляет его в приватную комнату пользователя в обход
// сокетного пути (источник — не сокет) и помечает сообщения
// пользователя прочитанными.
func (r *Relay) Reply(chatID, text string) (models.Message, error) {
	msg, err := r.service.Send(chatID, models.FromAdmin, text)
	if err != nil {
		return models.Message{}, err
	}
	chat, err := r.service.Chat(chatID)
	if err != nil {
		return msg, err
	}
	r.hub.SendToUser(chat.UserID, gateway.EventNewMessage, msg)
	if err := r.service.MarkRead(chatID, models.FromUser); err != nil {
		log.Printf("Reply: ошибка пометки прочитанного в чате %s: %v", chatID, err)
	}
	return msg, nil
}

func chatDisplayName(chat models.Chat) string {
	if chat.Username != "" {
		return chat.Username
	}
	return chat.UserID
}
