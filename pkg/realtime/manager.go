package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const (
	maxReconnectAttempts = 5
	baseReconnectDelay   = time.Second
)

// Manager держит одно живое подключение к каналу комнаты: токены,
// реконнект с backoff, маршрутизация входящих публикаций в колбэки и
// REST-вызовы отправки/истории.
type Manager struct {
	mu  sync.Mutex
	cfg Config

	httpc     *http.Client
	newClient ClientFactory

	client         Client
	attempts       int
	destroyed      bool
	reconnectTimer *time.Timer

	// планировщик реконнекта; подменяется в тестах
	after func(time.Duration, func()) *time.Timer
}

func New(cfg Config) *Manager {
	m := &Manager{
		cfg:       cfg,
		httpc:     cfg.HTTPClient,
		newClient: cfg.NewClient,
		after:     time.AfterFunc,
	}
	if m.httpc == nil {
		m.httpc = &http.Client{Timeout: 15 * time.Second}
	}
	if m.newClient == nil {
		m.newClient = NewWebsocketClient
	}

	return m
}

func (m *Manager) channel() string {
	return "webinar:" + m.cfg.RoomID + ":chat"
}

// Connect идемпотентен: при живом клиенте или после Destroy — no-op.
// Ошибки последовательности подключения наружу не выходят, а уходят в
// OnStatusChange и в политику реконнекта.
func (m *Manager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.destroyed || m.client != nil {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if err := m.connectOnce(ctx); err != nil {
		m.notifyStatus(StatusError, err)
		m.scheduleReconnect()
	}
}

// connectOnce возвращает ошибку значением — решение о повторе принимает
// вызывающая сторона, без исключений как control flow.
func (m *Manager) connectOnce(ctx context.Context) error {
	m.notifyStatus(StatusConnecting, nil)

	pair, err := m.fetchTokens(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.destroyed {
		// поздний ответ токен-сервиса после Destroy — ничего не строим
		m.mu.Unlock()
		return nil
	}
	if m.client != nil {
		m.mu.Unlock()
		return nil
	}
	client := m.newClient(m.cfg.RealtimeURL, pair.ConnectionToken, ClientHandlers{
		OnConnected:    m.onConnected,
		OnDisconnected: m.onDisconnected,
	})
	client.Subscribe(m.channel(), pair.SubscriptionToken, m.handlePublication)
	m.client = client
	m.mu.Unlock()

	if err := client.Connect(ctx); err != nil {
		m.mu.Lock()
		if m.client == client {
			m.client = nil
		}
		m.mu.Unlock()
		return err
	}

	return nil
}

func (m *Manager) onConnected() {
	m.mu.Lock()
	m.attempts = 0
	m.mu.Unlock()
	m.notifyStatus(StatusConnected, nil)
}

func (m *Manager) onDisconnected(err error) {
	m.notifyStatus(StatusDisconnected, err)
	m.scheduleReconnect()
}

// Реконнект: baseDelay * 2^(attempts-1), не больше пяти попыток подряд.
// Счётчик сбрасывается только по факту connected.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed || m.attempts >= maxReconnectAttempts {
		return
	}
	m.attempts++
	delay := baseReconnectDelay << (m.attempts - 1)
	m.reconnectTimer = m.after(delay, func() {
		m.Disconnect()
		m.reconnect()
	})
}

func (m *Manager) reconnect() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	if err := m.connectOnce(context.Background()); err != nil {
		m.notifyStatus(StatusError, err)
		m.scheduleReconnect()
	}
}

// Disconnect безопасен при любом состоянии и всегда анонсирует
// disconnected, даже если подключения не было.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	client := m.client
	m.client = nil
	m.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
	m.notifyStatus(StatusDisconnected, nil)
}

// IsConnected — структурная проверка (хэндл + идентификатор), не живость
// сокета: в фазе реконнекта может вернуть true.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.client != nil && m.cfg.UserIdentifier != ""
}

// UpdateConfig подмешивает частичные изменения (обычно колбэки) без
// пересоздания соединения.
func (m *Manager) UpdateConfig(upd ConfigUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if upd.UserName != nil {
		m.cfg.UserName = *upd.UserName
	}
	if upd.Token != nil {
		m.cfg.Token = *upd.Token
	}
	if upd.OnMessage != nil {
		m.cfg.OnMessage = upd.OnMessage
	}
	if upd.OnEvent != nil {
		m.cfg.OnEvent = upd.OnEvent
	}
	if upd.OnStatusChange != nil {
		m.cfg.OnStatusChange = upd.OnStatusChange
	}
}

// Destroy переводит менеджер в инертное состояние: дальнейшие Connect —
// no-op, реконнекты не планируются, ссылки на колбэки снимаются.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.mu.Unlock()

	m.Disconnect()

	m.mu.Lock()
	m.cfg.OnMessage = nil
	m.cfg.OnEvent = nil
	m.cfg.OnStatusChange = nil
	m.mu.Unlock()
}

func (m *Manager) handlePublication(data json.RawMessage) {
	pub := classifyPublication(data)

	m.mu.Lock()
	onMsg, onEvent := m.cfg.OnMessage, m.cfg.OnEvent
	m.mu.Unlock()

	switch pub.kind {
	case pubMessage:
		if onMsg != nil {
			onMsg(pub.msg)
		}
	case pubEvent:
		if onEvent != nil {
			onEvent(pub.event)
		}
	default:
		// кривой payload молча отбрасываем
	}
}

func (m *Manager) notifyStatus(s Status, err error) {
	m.mu.Lock()
	fn := m.cfg.OnStatusChange
	m.mu.Unlock()

	if fn != nil {
		fn(s, err)
	}
}
