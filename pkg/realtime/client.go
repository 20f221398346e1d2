package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Client — низкоуровневое pub-sub соединение. Менеджер работает только
// через этот интерфейс, прод-реализация — поверх gorilla/websocket.
type Client interface {
	// Connect выполняет рукопожатие и запускает приём публикаций.
	Connect(ctx context.Context) error
	// Subscribe регистрирует подписку на канал; вызывать до Connect.
	Subscribe(channel, token string, onPublication func(data json.RawMessage))
	Close() error
}

// ClientHandlers — колбэки жизненного цикла соединения.
type ClientHandlers struct {
	OnConnected    func()
	OnDisconnected func(err error)
}

type ClientFactory func(url, connectionToken string, h ClientHandlers) Client

// Кадры wire-протокола pub-sub сервера.
const (
	frameConnect     = "connect"
	frameConnected   = "connected"
	frameSubscribe   = "subscribe"
	frameSubscribed  = "subscribed"
	framePublication = "publication"
)

type frame struct {
	Type    string          `json:"type"`
	Token   string          `json:"token,omitempty"`
	Channel string          `json:"channel,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type subscription struct {
	channel string
	token   string
	onPub   func(json.RawMessage)
}

type wsClient struct {
	url      string
	token    string
	handlers ClientHandlers

	conn   *websocket.Conn
	sendMu chan struct{}
	closed chan struct{}

	pingEvery time.Duration
	subs      []subscription
}

// NewWebsocketClient — прод-фабрика pub-sub клиента.
func NewWebsocketClient(url, connectionToken string, h ClientHandlers) Client {
	return &wsClient{
		url:       url,
		token:     connectionToken,
		handlers:  h,
		sendMu:    make(chan struct{}, 1),
		closed:    make(chan struct{}),
		pingEvery: 15 * time.Second,
	}
}

func (c *wsClient) Subscribe(channel, token string, onPublication func(json.RawMessage)) {
	c.subs = append(c.subs, subscription{channel: channel, token: token, onPub: onPublication})
}

func (c *wsClient) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn

	if err := c.send(frame{Type: frameConnect, Token: c.token}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("connect frame: %w", err)
	}
	ack, err := c.read()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("connect ack: %w", err)
	}
	if ack.Type != frameConnected {
		_ = conn.Close()
		return fmt.Errorf("connect ack: unexpected frame %q", ack.Type)
	}

	for _, sub := range c.subs {
		if err := c.send(frame{Type: frameSubscribe, Channel: sub.channel, Token: sub.token}); err != nil {
			_ = conn.Close()
			return fmt.Errorf("subscribe %s: %w", sub.channel, err)
		}
		ack, err := c.read()
		if err != nil || ack.Type != frameSubscribed {
			_ = conn.Close()
			return fmt.Errorf("subscribe %s: no ack", sub.channel)
		}
	}

	if c.handlers.OnConnected != nil {
		c.handlers.OnConnected()
	}

	go c.pingLoop()
	go c.readLoop()

	return nil
}

func (c *wsClient) readLoop() {
	c.conn.SetReadLimit(1 << 20)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * c.pingEvery))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * c.pingEvery))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.notifyDisconnected(err)
			return
		}
		var f frame
		if json.Unmarshal(data, &f) != nil {
			continue
		}
		if f.Type != framePublication {
			continue
		}
		for _, sub := range c.subs {
			if sub.channel == f.Channel && sub.onPub != nil {
				sub.onPub(f.Data)
			}
		}
	}
}

func (c *wsClient) pingLoop() {
	ticker := time.NewTicker(c.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-c.closed:
			return
		}
	}
}

func (c *wsClient) notifyDisconnected(err error) {
	select {
	case <-c.closed:
		// закрыто локально — не считаем обрывом
		return
	default:
	}
	if c.handlers.OnDisconnected != nil {
		c.handlers.OnDisconnected(err)
	}
}

func (c *wsClient) send(f frame) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(f)
}

func (c *wsClient) read() (frame, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var f frame
	err := c.conn.ReadJSON(&f)
	return f, err
}

func (c *wsClient) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	if c.conn == nil {
		return nil
	}

	return c.conn.Close()
}
