package qeclient

import (
	"errors"
	"fmt"
)

// Классы ошибок клиента. Проверять через errors.Is; конкретика
// доклеивается обёрткой fmt.Errorf("%w: ...").
var (
	// ErrValidation — кривой ввод вызывающего (пустой id документа и т.п.).
	ErrValidation = errors.New("qeclient: validation error")
	// ErrConfig — отсутствующая или невалидная конфигурация.
	ErrConfig = errors.New("qeclient: configuration error")
	// ErrNetwork — соединения нет, закрыто или упало при передаче.
	// Неоткрытая и умершая сессии для вызывающего неразличимы —
	// и то и другое означает «движок сейчас недоступен».
	ErrNetwork = errors.New("qeclient: network error")
	// ErrTimeout — ответ не пришёл в срок; слот id освобождён.
	ErrTimeout = errors.New("qeclient: call timeout")
	// ErrEncode — параметр вызова не представим в JSON.
	ErrEncode = errors.New("qeclient: encoding error")
	// ErrInvalidJSON — входящий кадр вообще не парсится как JSON.
	ErrInvalidJSON = errors.New("qeclient: invalid json frame")
	// ErrInvalidProtocol — JSON валидный, но без маркера версии jsonrpc.
	ErrInvalidProtocol = errors.New("qeclient: missing protocol version marker")
	// ErrNoHandle — в результате нет qReturn.qHandle.
	ErrNoHandle = errors.New("qeclient: no handle in result")
	// ErrNoLayout — в результате нет узла qLayout.
	ErrNoLayout = errors.New("qeclient: no layout in result")
)

// RPCError — движок понял вызов и отверг его. Отличается от транспортных
// ошибок: вызов дошёл и вернулся, просто с отказом.
type RPCError struct {
	ID        int
	Code      int
	Message   string
	Parameter string
}

func (e *RPCError) Error() string {
	if e.Parameter != "" {
		return fmt.Sprintf("engine error %d: %s (%s)", e.Code, e.Message, e.Parameter)
	}
	return fmt.Sprintf("engine error %d: %s", e.Code, e.Message)
}
