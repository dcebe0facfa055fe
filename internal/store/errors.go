package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RequestError — единственный вид ошибки store: запрос к API не удался.
//
// Payload — структурированное тело ошибки от сервера (если оно было
// валидным JSON). Для сетевых ошибок Payload пуст, StatusCode = 0,
// а исходная ошибка доступна через Unwrap.
type RequestError struct {
	// StatusCode — HTTP статус ответа, 0 если ответа не было.
	StatusCode int

	// Payload — тело ответа с ошибкой в сыром виде.
	Payload json.RawMessage

	// Message — человекочитаемое описание.
	Message string

	// Err — исходная ошибка транспорта.
	Err error
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// HasPayload проверяет, вернул ли сервер структурированное тело ошибки.
func (e *RequestError) HasPayload() bool {
	raw := bytes.TrimSpace(e.Payload)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

// Value возвращает payload сервера (декодированный JSON), если он есть,
// иначе текст ошибки.
func (e *RequestError) Value() any {
	if e.HasPayload() {
		var v any
		if err := json.Unmarshal(e.Payload, &v); err == nil {
			return v
		}
	}
	return e.Error()
}
