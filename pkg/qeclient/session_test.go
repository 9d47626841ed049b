package qeclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeEngine поднимает websocket-сервер; handler получает разобранный
// запрос и возвращает кадры для отправки (nil — молчать).
func fakeEngine(t *testing.T, handler func(req Request) [][]byte) Config {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req Request
			if err := json.Unmarshal(data, &req); err != nil {
				t.Errorf("engine got bad request: %v", err)
				return
			}
			for _, frame := range handler(req) {
				if frame == nil {
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return Config{
		APIKey:      "test-key",
		TenantURL:   srv.URL,
		CallTimeout: 2 * time.Second,
	}
}

func okFrame(t *testing.T, id int, result any) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": id, "result": result})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return data
}

func errFrame(t *testing.T, id, code int, msg string) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": id,
		"error": map[string]any{"code": code, "message": msg},
	})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return data
}

func connect(t *testing.T, cfg Config) *Session {
	t.Helper()
	s := New(cfg)
	if err := s.Connect(context.Background(), "app-123"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(s.Disconnect)
	return s
}

func TestCallRoundTrip(t *testing.T) {
	cfg := fakeEngine(t, func(req Request) [][]byte {
		return [][]byte{okFrame(t, req.ID, map[string]any{"qReturn": map[string]any{"qHandle": 1}})}
	})
	s := connect(t, cfg)

	res, err := s.Call("Global.OpenDoc", 0, OpenDocParams("app-123"))
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	h, err := ExtractHandle(res)
	if err != nil || h != 1 {
		t.Fatalf("handle = %d, %v", h, err)
	}
	if s.State() != StateOpen {
		t.Fatalf("state = %v", s.State())
	}
}

func TestConcurrentCallsDistinctIDs(t *testing.T) {
	const n = 16
	var mu sync.Mutex
	var seen []int
	cfg := fakeEngine(t, func(req Request) [][]byte {
		mu.Lock()
		seen = append(seen, req.ID)
		mu.Unlock()
		// хэндл = id запроса, чтобы проверить корреляцию
		return [][]byte{okFrame(t, req.ID, map[string]any{"qReturn": map[string]any{"qHandle": req.ID}})}
	})
	s := connect(t, cfg)

	var wg sync.WaitGroup
	handles := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.Call("Doc.GetObject", 1, GetObjectParams("x"))
			if err != nil {
				t.Errorf("call %d: %v", i, err)
				return
			}
			h, err := ExtractHandle(res)
			if err != nil {
				t.Errorf("call %d: %v", i, err)
				return
			}
			handles[i] = h
		}(i)
	}
	wg.Wait()

	sort.Ints(handles)
	mu.Lock()
	sort.Ints(seen)
	mu.Unlock()
	for i := 0; i < n; i++ {
		if handles[i] != i+1 {
			t.Fatalf("handles = %v: want 1..%d without gaps", handles, n)
		}
		if seen[i] != i+1 {
			t.Fatalf("engine saw ids %v: want 1..%d", seen, n)
		}
	}
}

func TestCallTimeoutAndLateReply(t *testing.T) {
	var mu sync.Mutex
	slowID := 0
	cfg := fakeEngine(t, func(req Request) [][]byte {
		if req.Method == "Slow" {
			mu.Lock()
			slowID = req.ID
			mu.Unlock()
			return nil // молчим — пусть истечёт
		}
		mu.Lock()
		stale := slowID
		mu.Unlock()
		// сперва опоздавший ответ на истёкший id, затем нормальный
		return [][]byte{
			okFrame(t, stale, map[string]any{"qReturn": map[string]any{"qHandle": 999}}),
			okFrame(t, req.ID, map[string]any{"qReturn": map[string]any{"qHandle": 5}}),
		}
	})
	s := connect(t, cfg)

	_, err := s.CallTimeout("Slow", 0, nil, 100*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}

	// опоздавший кадр не должен присвоиться этому вызову
	res, err := s.Call("Fast", 0, nil)
	if err != nil {
		t.Fatalf("call after timeout: %v", err)
	}
	h, err := ExtractHandle(res)
	if err != nil || h != 5 {
		t.Fatalf("handle = %d, %v: stale reply misattributed", h, err)
	}
}

func TestMalformedFramesDropped(t *testing.T) {
	cfg := fakeEngine(t, func(req Request) [][]byte {
		return [][]byte{
			[]byte("not json"),
			[]byte(`{"id":1,"result":{}}`), // без маркера версии
			okFrame(t, req.ID, map[string]any{"qReturn": map[string]any{"qHandle": 2}}),
		}
	})
	s := connect(t, cfg)

	res, err := s.Call("Global.OpenDoc", 0, nil)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if h, _ := ExtractHandle(res); h != 2 {
		t.Fatalf("handle = %d", h)
	}
}

func TestRPCErrorSurfaced(t *testing.T) {
	cfg := fakeEngine(t, func(req Request) [][]byte {
		return [][]byte{errFrame(t, req.ID, -32602, "Invalid params")}
	})
	s := connect(t, cfg)

	_, err := s.Call("Global.OpenDoc", 0, nil)
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %v", err)
	}
	if rpcErr.Code != -32602 || rpcErr.Message != "Invalid params" {
		t.Fatalf("rpc error = %+v", rpcErr)
	}
	// отказ движка — не транспортная ошибка
	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout) {
		t.Fatalf("rpc error leaked into transport class: %v", err)
	}
}

func TestDisconnectCancelsPending(t *testing.T) {
	cfg := fakeEngine(t, func(req Request) [][]byte {
		return nil // никогда не отвечаем
	})
	s := connect(t, cfg)

	done := make(chan error, 1)
	go func() {
		_, err := s.CallTimeout("Slow", 0, nil, 10*time.Second)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond) // дать вызову зарегистрироваться
	s.Disconnect()

	select {
	case err := <-done:
		if !errors.Is(err, ErrNetwork) {
			t.Fatalf("expected ErrNetwork, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call left hanging after disconnect")
	}
	if s.State() != StateClosed {
		t.Fatalf("state = %v", s.State())
	}
}

func TestCallOnNotOpenSession(t *testing.T) {
	s := New(Config{APIKey: "k", TenantURL: "https://tenant.example.com"})
	if _, err := s.Call("Global.OpenDoc", 0, nil); !errors.Is(err, ErrNetwork) {
		t.Fatalf("disconnected session: expected ErrNetwork, got %v", err)
	}

	cfg := fakeEngine(t, func(req Request) [][]byte { return nil })
	s2 := connect(t, cfg)
	s2.Disconnect()
	if _, err := s2.Call("Global.OpenDoc", 0, nil); !errors.Is(err, ErrNetwork) {
		t.Fatalf("closed session: expected ErrNetwork, got %v", err)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	s := New(Config{APIKey: "k", TenantURL: "https://tenant.example.com"})
	s.Disconnect()
	s.Disconnect() // повторное отключение — не ошибка

	cfg := fakeEngine(t, func(req Request) [][]byte { return nil })
	s2 := connect(t, cfg)
	s2.Disconnect()
	s2.Disconnect()
}

func TestConnectValidation(t *testing.T) {
	s := New(Config{APIKey: "k", TenantURL: "https://tenant.example.com"})
	if err := s.Connect(context.Background(), ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty doc id: expected ErrValidation, got %v", err)
	}

	s = New(Config{APIKey: "", TenantURL: "https://tenant.example.com"})
	if err := s.Connect(context.Background(), "app-123"); !errors.Is(err, ErrConfig) {
		t.Fatalf("empty api key: expected ErrConfig, got %v", err)
	}

	s = New(Config{APIKey: "k", TenantURL: "ftp://tenant.example.com"})
	if err := s.Connect(context.Background(), "app-123"); !errors.Is(err, ErrConfig) {
		t.Fatalf("bad scheme: expected ErrConfig, got %v", err)
	}
}

func TestDisconnectDuringConnect(t *testing.T) {
	up := websocket.Upgrader{}
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release // подвесить dial, пока тест не отпустит
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := New(Config{APIKey: "k", TenantURL: srv.URL})
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Connect(context.Background(), "app-123")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateConnecting {
		if time.Now().After(deadline) {
			t.Fatal("session never reached Connecting")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Disconnect()
	close(release)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrNetwork) {
			t.Fatalf("connect raced by disconnect: expected ErrNetwork, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connect did not return")
	}
	// Closed — терминальное состояние, dial его не перезаписывает
	if s.State() != StateClosed {
		t.Fatalf("state = %v: want StateClosed", s.State())
	}
	if _, err := s.Call("Global.OpenDoc", 0, nil); !errors.Is(err, ErrNetwork) {
		t.Fatalf("call on resurrected session: %v", err)
	}
}

func TestDisconnectReleasesContextWatcher(t *testing.T) {
	cfg := fakeEngine(t, func(req Request) [][]byte { return nil })
	s := New(cfg)
	// контекст никогда не отменяется — сторож должен уйти по закрытию сессии
	if err := s.Connect(context.Background(), "app-123"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	s.Disconnect()

	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("done channel not closed on disconnect")
	}
}

func TestConnectIsOneShot(t *testing.T) {
	cfg := fakeEngine(t, func(req Request) [][]byte { return nil })
	s := connect(t, cfg)
	if err := s.Connect(context.Background(), "app-123"); !errors.Is(err, ErrValidation) {
		t.Fatalf("second connect: expected ErrValidation, got %v", err)
	}
}

func TestContextCancelClosesSession(t *testing.T) {
	cfg := fakeEngine(t, func(req Request) [][]byte { return nil })
	s := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Connect(ctx, "app-123"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for s.State() != StateClosed {
		if time.Now().After(deadline) {
			t.Fatal("session not closed after context cancel")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
