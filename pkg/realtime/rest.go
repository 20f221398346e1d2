package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type tokenPair struct {
	ConnectionToken   string `json:"connectionToken"`
	SubscriptionToken string `json:"subscriptionToken"`
}

// Пара подписанных токенов: соединение + подписка на канал комнаты.
func (m *Manager) fetchTokens(ctx context.Context) (tokenPair, error) {
	u := fmt.Sprintf("%s/webinars/%s/token?email=%s",
		m.cfg.ChatAPIURL, m.cfg.RoomID, url.QueryEscape(m.cfg.UserIdentifier))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return tokenPair{}, err
	}
	resp, err := m.httpc.Do(req)
	if err != nil {
		return tokenPair{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return tokenPair{}, readTransportError("fetch tokens", resp)
	}

	var pair tokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		return tokenPair{}, fmt.Errorf("decode token pair: %w", err)
	}

	return pair, nil
}

// SendMessage валидирует текст локально и постит его в чат комнаты.
// Пустой (после trim) текст — ErrEmptyMessage, до сети не доходим.
func (m *Manager) SendMessage(ctx context.Context, text string) (*SendResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	m.mu.Lock()
	body := map[string]string{
		"email":    m.cfg.UserIdentifier,
		"username": m.cfg.UserName,
		"message":  text,
	}
	u := fmt.Sprintf("%s/chat/%s/messages", m.cfg.ChatAPIURL, m.cfg.RoomID)
	m.mu.Unlock()

	var out SendResult
	if err := m.doJSON(ctx, http.MethodPost, "send message", u, body, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// SendEvent рассылает конверт {type, data} участникам комнаты.
func (m *Manager) SendEvent(ctx context.Context, ev Event) (*Event, error) {
	u := fmt.Sprintf("%s/webinars/%s/events", m.cfg.ChatAPIURL, m.cfg.RoomID)

	var out Event
	if err := m.doJSON(ctx, http.MethodPost, "send event", u, ev, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

type rawMessage struct {
	ID        string     `json:"id"`
	RoomID    string     `json:"roomId"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt"`
}

// ChatHistory забирает все сообщения комнаты; updatedAt без значения
// приравнивается к createdAt.
func (m *Manager) ChatHistory(ctx context.Context) ([]ChatMessage, error) {
	u := fmt.Sprintf("%s/chat/%s/messages", m.cfg.ChatAPIURL, m.cfg.RoomID)

	var raw []rawMessage
	if err := m.doJSON(ctx, http.MethodGet, "chat history", u, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]ChatMessage, 0, len(raw))
	for _, r := range raw {
		msg := ChatMessage{
			ID:        r.ID,
			RoomID:    r.RoomID,
			Email:     r.Email,
			Username:  r.Username,
			Message:   r.Message,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.CreatedAt,
		}
		if r.UpdatedAt != nil {
			msg.UpdatedAt = defaultUpdatedAt(r.CreatedAt, *r.UpdatedAt)
		}
		out = append(out, msg)
	}

	return out, nil
}

func (m *Manager) doJSON(ctx context.Context, method, op, u string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Гостевые запросы без токена допустимы
	m.mu.Lock()
	token := m.cfg.Token
	m.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "JWT "+token)
	}

	resp, err := m.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return readTransportError(op, resp)
	}
	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func readTransportError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))

	return &TransportError{Op: op, StatusCode: resp.StatusCode, Body: string(b)}
}
