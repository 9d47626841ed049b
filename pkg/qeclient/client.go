package qeclient

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"example.com/qhook/internal/logger"
)

// Config — проверенная конфигурация клиента. Сборкой из файла/окружения
// занимается internal/config, сюда приходит уже готовое значение.
type Config struct {
	APIKey    string `json:"api_key"`
	TenantURL string `json:"tenant_url"`
	AppID     string `json:"app_id,omitempty"` // документ по умолчанию

	// CallTimeout — дедлайн одного вызова; 0 = defaultCallTimeout.
	CallTimeout time.Duration `json:"-"`
}

const defaultCallTimeout = 30 * time.Second

var allowedSchemes = map[string]bool{"http": true, "https": true, "ws": true, "wss": true}

// Validate — быстрые проверки до любой попытки сети.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: empty api key", ErrConfig)
	}
	u, err := url.Parse(c.TenantURL)
	if err != nil {
		return fmt.Errorf("%w: tenant url: %v", ErrConfig, err)
	}
	if !allowedSchemes[u.Scheme] || u.Host == "" {
		return fmt.Errorf("%w: tenant url %q: scheme must be http/https/ws/wss", ErrConfig, c.TenantURL)
	}
	return nil
}

func (c Config) callTimeout() time.Duration {
	if c.CallTimeout > 0 {
		return c.CallTimeout
	}
	return defaultCallTimeout
}

// State — фаза жизненного цикла сессии. Closed — терминальная:
// хэндлы выданы движком на время соединения и новое соединение
// их не воскресит, поэтому сессия одноразовая.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosed
)

type callOutcome struct {
	result any
	err    error
}

// Session владеет одним соединением с одним документом: выдаёт id
// вызовов, шлёт конверты и возвращает ответы ожидающим вызывающим.
type Session struct {
	cfg   Config
	docID string

	conn *websocket.Conn
	seq  uint32

	mu      sync.Mutex
	pending map[int]chan callOutcome
	state   State
	done    chan struct{} // закрывается при переходе в Closed

	wmu      sync.Mutex // сериализует запись в websocket
	pingStop chan struct{}

	log *log.Logger

	// События (по вкусу вызывающего, все опциональны)
	OnConnected    func()
	OnDisconnected func()
	OnError        func(error)
}

func New(cfg Config) *Session {
	return &Session{
		cfg:     cfg,
		pending: make(map[int]chan callOutcome),
		done:    make(chan struct{}),
		log:     logger.New("qeclient"),
	}
}

// Connect — валидация, websocket к /app/{docID}, запуск readLoop.
// Контекст можно отменить для мягкого выхода из readLoop.
func (s *Session) Connect(ctx context.Context, docID string) error {
	if docID == "" {
		return fmt.Errorf("%w: empty document id", ErrValidation)
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return fmt.Errorf("%w: session already used", ErrValidation)
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, err := s.dialAndSetup(docID)
	if err != nil {
		s.mu.Lock()
		// не трогаем состояние, если Disconnect уже перевёл сессию в Closed
		if s.state == StateConnecting {
			s.state = StateDisconnected
		}
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		// Disconnect успел сработать, пока шёл dial: Closed — терминальное
		// состояние, свежее соединение закрываем, а не воскрешаем сессию
		s.mu.Unlock()
		s.stopPing()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
			time.Now().Add(500*time.Millisecond))
		_ = conn.Close()
		return fmt.Errorf("%w: session closed during connect", ErrNetwork)
	}
	s.conn = conn
	s.docID = docID
	s.state = StateOpen
	s.mu.Unlock()

	if s.OnConnected != nil {
		s.OnConnected()
	}
	go s.readLoop(ctx)
	return nil
}

// Disconnect закрывает соединение и гасит все ожидающие вызовы
// ErrNetwork. Повторный вызов и вызов на мёртвой сессии — no-op:
// «отключить уже отключённое» ошибкой не считаем.
func (s *Session) Disconnect() {
	if !s.markClosed() {
		return
	}
	s.closeConn()
	s.failPending(ErrNetwork)
	if s.OnDisconnected != nil {
		s.OnDisconnected()
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) IsConnected() bool {
	return s.State() == StateOpen
}

// markClosed переводит сессию в Closed; false — если уже была закрыта
// (уборка уже идёт в другой горутине).
func (s *Session) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	close(s.done)
	return true
}

func (s *Session) nextID() int {
	return int(atomic.AddUint32(&s.seq, 1))
}

// Call — синхронный вызов с дедлайном по умолчанию.
func (s *Session) Call(method string, handle int, params []any) (any, error) {
	return s.CallTimeout(method, handle, params, s.cfg.callTimeout())
}

// CallTimeout шлёт конверт и ждёт ответ с данным id. Вызывающий висит
// только на своём канале — ни на чужих вызовах, ни на цикле чтения.
func (s *Session) CallTimeout(method string, handle int, params []any, timeout time.Duration) (any, error) {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session is not open", ErrNetwork)
	}
	conn := s.conn
	id := s.nextID()
	ch := make(chan callOutcome, 1) // буфер: доставка после таймаута не блокирует диспетчер
	s.pending[id] = ch
	s.mu.Unlock()

	data, err := EncodeRequest(method, handle, params, id)
	if err != nil {
		s.dropPending(id)
		return nil, err
	}

	s.wmu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	werr := conn.WriteMessage(websocket.TextMessage, data)
	s.wmu.Unlock()
	if werr != nil {
		// сеть упала между регистрацией и записью — подчищаем слот
		s.dropPending(id)
		return nil, fmt.Errorf("%w: %v", ErrNetwork, werr)
	}

	select {
	case out := <-ch:
		return out.result, out.err
	case <-time.After(timeout):
		s.dropPending(id)
		return nil, fmt.Errorf("%w: %s (id=%d)", ErrTimeout, method, id)
	}
}

func (s *Session) dropPending(id int) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// failPending гасит все ожидающие вызовы одной ошибкой.
func (s *Session) failPending(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.pending {
		ch <- callOutcome{err: err}
		delete(s.pending, id)
	}
}
