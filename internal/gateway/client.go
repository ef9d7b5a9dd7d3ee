package gateway

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"SupportChat/internal/auth"
)

const (
	readDeadline  = 90 * time.Second // три пропущенных пинга до разрыва
	writeTimeout  = 10 * time.Second
	pingInterval  = 30 * time.Second
	readLimit     = int64(16 << 10)
	sendQueueSize = 64
)

// Client — одно живое WebSocket-соединение с аутентифицированной
// личностью. Не несет собственного персистентного состояния.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	claims auth.Claims
}

// readPump читает кадры соединения и передает их в диспетчер хаба.
// Каждый кадр обрабатывается независимо; ошибка обработчика уходит
// только этому соединению событием error.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("readPump: соединение %s закрыто с ошибкой: %v", c.claims.UserID, err)
			}
			return
		}
		c.hub.handleEvent(c, env)
	}
}

// writePump пишет кадры из очереди send и шлет пинги по таймеру.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// Хаб закрыл канал при отключении.
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("writePump: ошибка записи соединению %s: %v", c.claims.UserID, err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendEvent ставит кадр в очередь соединения. Переполненная очередь —
// признак мертвого клиента: кадр отбрасывается, соединение закроет
// пинг-таймаут.
func (c *Client) sendEvent(event string, payload any) {
	frame, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("sendEvent: ошибка сериализации события %s: %v", event, err)
		return
	}
	select {
	case c.send <- frame:
	default:
		log.Printf("sendEvent: очередь соединения %s переполнена, кадр %s отброшен", c.claims.UserID, event)
	}
}

// sendError отправляет событие error только этому соединению.
func (c *Client) sendError(message string) {
	c.sendEvent(EventError, ErrorPayload{Message: message})
}

// writeDirect пишет кадр в обход очереди. Используется единственно для
// ответа об ошибке аутентификации до регистрации соединения в хабе.
func writeDirect(conn *websocket.Conn, event string, payload any) {
	frame, err := marshalEvent(event, payload)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = conn.WriteMessage(websocket.TextMessage, frame)
}

// parsePayload разбирает payload входящего кадра.
func parsePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
