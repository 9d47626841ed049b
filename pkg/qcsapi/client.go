// Package qcsapi — REST-клиент облачного API тенанта: списки приложений,
// коллекции, импорт файлов. Простое запрос/ответ-склеивание без
// протокольной логики; websocket-сессией занимается pkg/qeclient.
package qcsapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	mathrand "math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"

	"example.com/qhook/internal/logger"
)

type Client struct {
	http *http.Client
	base string
	key  string
	log  *log.Logger

	mu         sync.Mutex
	etag       string // для If-None-Match на списке приложений
	cachedApps *AppPage
}

// App — приложение (документ) в каталоге тенанта.
type App struct {
	ItemID       string `json:"id"`
	ResourceID   string `json:"resourceId"`
	Name         string `json:"name"`
	ResourceType string `json:"resourceType"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// Collection — пользовательская коллекция элементов каталога.
type Collection struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

func New(tenantURL, apiKey string) *Client {
	return &Client{
		http: &http.Client{Timeout: 30 * time.Second},
		base: strings.TrimRight(tenantURL, "/"),
		key:  apiKey,
		log:  logger.New("qcsapi"),
	}
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

func newRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// decorate — единая точка политики заголовков: авторизация и id
// запроса ставятся здесь и только здесь.
func (c *Client) decorate(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("X-Request-Id", newRequestID())
	if req.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
}

// do выполняет запрос с авторизацией и id запроса; статус >= 400
// единообразно превращается в *APIError.
func (c *Client) do(req *http.Request, out any) error {
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("qcsapi: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("qcsapi: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

// AppPage — одна страница каталога плюс курсор следующей.
type AppPage struct {
	Apps []App
	Next Cursor
}

type itemsEnvelope struct {
	Data  []App `json:"data"`
	Links struct {
		Next struct {
			Href string `json:"href"`
		} `json:"next"`
	} `json:"links"`
}

// ListApps — страница списка приложений. Пустой курсор — первая
// страница; на ней работает ETag-кэш (304 → отдаём прошлый снимок).
func (c *Client) ListApps(cursor Cursor) (*AppPage, error) {
	addr := c.base + "/api/v1/items?resourceType=app&limit=30"
	if cursor != "" {
		href, err := cursor.href()
		if err != nil {
			return nil, err
		}
		addr = href
	}

	req, err := http.NewRequest(http.MethodGet, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("qcsapi: %w", err)
	}
	c.decorate(req)
	if cursor == "" {
		c.mu.Lock()
		if c.etag != "" {
			req.Header.Set("If-None-Match", c.etag)
		}
		c.mu.Unlock()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qcsapi: list apps: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		c.mu.Lock()
		cached := c.cachedApps
		c.mu.Unlock()
		if cached != nil {
			return cached, nil
		}
		return &AppPage{}, nil
	}
	if resp.StatusCode >= 400 {
		return nil, decodeAPIError(resp)
	}

	var env itemsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("qcsapi: decode items: %w", err)
	}
	page := &AppPage{Apps: env.Data, Next: cursorFromHref(env.Links.Next.Href)}

	if cursor == "" {
		c.mu.Lock()
		c.etag = resp.Header.Get("ETag")
		c.cachedApps = page
		c.mu.Unlock()
	}
	return page, nil
}

// AllApps выкачивает каталог целиком, листая по курсору.
func (c *Client) AllApps() ([]App, error) {
	var all []App
	cursor := Cursor("")
	for {
		page, err := c.ListApps(cursor)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Apps...)
		if page.Next == "" {
			return all, nil
		}
		cursor = page.Next
	}
}

// FindAppByName — первое приложение с данным именем, nil если нет.
func (c *Client) FindAppByName(name string) (*App, error) {
	apps, err := c.AllApps()
	if err != nil {
		return nil, err
	}
	for i := range apps {
		if apps[i].Name == name {
			return &apps[i], nil
		}
	}
	return nil, nil
}

func (c *Client) GetApp(appID string) (*App, error) {
	req, err := http.NewRequest(http.MethodGet, c.base+"/api/v1/apps/"+url.PathEscape(appID), nil)
	if err != nil {
		return nil, fmt.Errorf("qcsapi: %w", err)
	}
	var out struct {
		Attributes App `json:"attributes"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out.Attributes, nil
}

func (c *Client) DeleteApp(appID string) error {
	req, err := http.NewRequest(http.MethodDelete, c.base+"/api/v1/apps/"+url.PathEscape(appID), nil)
	if err != nil {
		return fmt.Errorf("qcsapi: %w", err)
	}
	return c.do(req, nil)
}

func (c *Client) ListCollections() ([]Collection, error) {
	req, err := http.NewRequest(http.MethodGet, c.base+"/api/v1/collections", nil)
	if err != nil {
		return nil, fmt.Errorf("qcsapi: %w", err)
	}
	var out struct {
		Data []Collection `json:"data"`
	}
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) CreateCollection(name string) (*Collection, error) {
	body, err := json.Marshal(map[string]any{"name": name, "type": "private"})
	if err != nil {
		return nil, fmt.Errorf("qcsapi: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.base+"/api/v1/collections", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("qcsapi: %w", err)
	}
	var out Collection
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddToCollection(collectionID, itemID string) error {
	body, err := json.Marshal(map[string]any{"id": itemID})
	if err != nil {
		return fmt.Errorf("qcsapi: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost,
		c.base+"/api/v1/collections/"+url.PathEscape(collectionID)+"/items",
		bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("qcsapi: %w", err)
	}
	return c.do(req, nil)
}
