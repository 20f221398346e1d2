package realtime

import (
	"encoding/json"
	"time"
)

type publicationKind int

const (
	pubInvalid publicationKind = iota
	pubMessage
	pubEvent
)

// publication — разобранный входящий payload канала.
type publication struct {
	kind  publicationKind
	msg   ChatMessage
	event Event
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// classifyPublication валидирует конверт {type, data} и раскладывает его в
// message / event / invalid. Всё кривое — invalid, без колбэков и ошибок.
func classifyPublication(raw []byte) publication {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return publication{kind: pubInvalid}
	}
	if env.Type == "" || len(env.Data) == 0 {
		return publication{kind: pubInvalid}
	}

	// data обязана быть объектом; null проходит Unmarshal, оставляя nil
	var data map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &data); err != nil || data == nil {
		return publication{kind: pubInvalid}
	}

	if env.Type == "newMessage" {
		var msg ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return publication{kind: pubInvalid}
		}
		if msg.UpdatedAt.IsZero() {
			msg.UpdatedAt = msg.CreatedAt
		}
		return publication{kind: pubMessage, msg: msg}
	}

	ev := Event{Type: env.Type, Data: make(map[string]any, len(data))}
	if err := json.Unmarshal(env.Data, &ev.Data); err != nil {
		return publication{kind: pubInvalid}
	}
	return publication{kind: pubEvent, event: ev}
}

// на случай отсутствия updatedAt в истории
func defaultUpdatedAt(created, updated time.Time) time.Time {
	if updated.IsZero() {
		return created
	}
	return updated
}
