package realtime

import (
	"net/http"
	"time"
)

// Status — фазы жизненного цикла соединения.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Event — произвольный типизированный сигнал комнаты (старт вебинара,
// смена настроек и т.п.). Транспорт семантику не трактует.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// SendResult — ответ чат-API на отправку сообщения.
type SendResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

type Config struct {
	RoomID         string
	UserIdentifier string // телефон или email
	UserName       string

	ChatAPIURL  string
	RealtimeURL string

	// Локально сохранённый bearer; пустой — гостевая отправка.
	Token string

	OnMessage      func(ChatMessage)
	OnEvent        func(Event)
	OnStatusChange func(Status, error)

	HTTPClient *http.Client

	// Фабрика pub-sub клиента; nil — gorilla/websocket.
	NewClient ClientFactory
}

// ConfigUpdate — частичное обновление без пересоздания соединения.
// Ненулевые поля заменяют текущие.
type ConfigUpdate struct {
	UserName       *string
	Token          *string
	OnMessage      func(ChatMessage)
	OnEvent        func(Event)
	OnStatusChange func(Status, error)
}
