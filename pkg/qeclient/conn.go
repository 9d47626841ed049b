package qeclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// ========================= low-level =========================

// BuildConnectionURL — адрес websocket из базового URL тенанта:
// http→ws, https→wss, хвостовой слэш срезается, путь /app/{docID}.
func BuildConnectionURL(docID string, cfg Config) (string, error) {
	u, err := url.Parse(cfg.TenantURL)
	if err != nil {
		return "", fmt.Errorf("%w: tenant url: %v", ErrConfig, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("%w: tenant url %q: unsupported scheme", ErrConfig, cfg.TenantURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/app/" + docID
	return u.String(), nil
}

// Endpoint — разобранный адрес соединения.
type Endpoint struct {
	Host string
	Port int
	Path string
}

// ParseConnectionURL — обратная операция: host/port/path из адреса.
// Порт по умолчанию выводится из схемы (wss→443, ws→80). Кривой ввод —
// одна общая ошибка, без частичного разбора.
func ParseConnectionURL(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Endpoint{}, fmt.Errorf("%w: connection url %q", ErrValidation, raw)
	}
	port := 0
	switch u.Scheme {
	case "wss":
		port = 443
	case "ws":
		port = 80
	default:
		return Endpoint{}, fmt.Errorf("%w: connection url %q: not a websocket scheme", ErrValidation, raw)
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Endpoint{}, fmt.Errorf("%w: connection url %q: bad port", ErrValidation, raw)
		}
		port = n
	}
	return Endpoint{Host: u.Hostname(), Port: port, Path: u.Path}, nil
}

// dial с авторизацией, лимитом кадра и запуском пингов
func (s *Session) dialAndSetup(docID string) (*websocket.Conn, error) {
	addr, err := BuildConnectionURL(docID, s.cfg)
	if err != nil {
		return nil, err
	}
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+s.cfg.APIKey)

	conn, _, err := websocket.DefaultDialer.Dial(addr, hdr)
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(64 << 20)
	s.startPing(conn)
	return conn, nil
}

// безопасно закрыть текущее соединение
func (s *Session) closeConn() {
	s.stopPing()
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
			time.Now().Add(500*time.Millisecond))
		_ = conn.Close()
	}
}

func (s *Session) startPing(c *websocket.Conn) {
	s.stopPing() // на всякий
	stop := make(chan struct{})
	s.mu.Lock()
	s.pingStop = stop
	s.mu.Unlock()

	go func() {
		t := time.NewTicker(10 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.wmu.Lock()
				_ = c.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
				s.wmu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (s *Session) stopPing() {
	s.mu.Lock()
	if s.pingStop != nil {
		close(s.pingStop)
		s.pingStop = nil
	}
	s.mu.Unlock()
}
