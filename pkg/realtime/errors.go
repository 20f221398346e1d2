package realtime

import (
	"errors"
	"fmt"
)

// ErrEmptyMessage — локальная валидация, до сети не доходит.
var ErrEmptyMessage = errors.New("empty message")

// TransportError — неуспешный HTTP-ответ чат-API.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

// IsTransportError проверяет цепочку ошибок на *TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
