package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	security "github.com/savelx/grocery-shop/internal/jwt-new"
)

// Client — одно websocket-соединение. Токен проверяется один раз
// (на хендшейке или при admin_online) и кэшируется в claims;
// повторной проверки на каждое сообщение нет.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu     sync.Mutex
	claims *security.Claims
}

func newClient(conn *websocket.Conn, sendBuffer int) *Client {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// enqueue кладет событие в исходящий буфер без блокировки;
// false означает, что буфер полон и клиента нужно отключить
func (c *Client) enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return true // уже закрыт, молча пропускаем
	default:
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// close закрывает соединение ровно один раз; канал send не закрывается,
// writePump завершается по done
func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

func (c *Client) setClaims(claims *security.Claims) {
	c.mu.Lock()
	c.claims = claims
	c.mu.Unlock()
}

// isAdmin проверяет кэшированные claims соединения
func (c *Client) isAdmin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claims != nil && c.claims.Role == "admin"
}

// writePump отправляет события из буфера в соединение и пингует клиента
func (c *Client) writePump(writeTimeout, pongTimeout time.Duration) {
	pingPeriod := pongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}
