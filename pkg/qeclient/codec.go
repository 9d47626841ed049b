package qeclient

import (
	"encoding/json"
	"fmt"
)

const protocolVersion = "2.0"

// Request — исходящий конверт вызова движка. Порядок полей — как на
// проводе: jsonrpc, id, method, handle, params.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Handle  int    `json:"handle"`
	Params  []any  `json:"params"`
}

// Reply — разобранный входящий конверт. Ровно одно из двух: Result при
// успехе либо Err при отказе движка. Ошибки разбора самого кадра
// (ErrInvalidJSON/ErrInvalidProtocol) сюда не попадают — их возвращает
// DecodeReply вторым значением.
type Reply struct {
	ID     int
	Result any
	Err    *RPCError
}

// EncodeRequest собирает конверт вызова. id выдаёт сессия — кодек
// состояния не держит.
func EncodeRequest(method string, handle int, params []any, id int) ([]byte, error) {
	if params == nil {
		params = []any{}
	}
	data, err := json.Marshal(Request{
		JSONRPC: protocolVersion,
		ID:      id,
		Method:  method,
		Handle:  handle,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return data, nil
}

// DecodeReply разбирает входящий кадр. Кадр без маркера версии считаем
// чужим протоколом; остальную структуру не навязываем — движок волен
// добавлять поля.
func DecodeReply(data []byte) (*Reply, error) {
	var env struct {
		JSONRPC string `json:"jsonrpc"`
		ID      int    `json:"id"`
		Result  any    `json:"result"`
		Error   *struct {
			Code      int    `json:"code"`
			Message   string `json:"message"`
			Parameter string `json:"parameter"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if env.JSONRPC != protocolVersion {
		return nil, ErrInvalidProtocol
	}
	if env.Error != nil {
		return &Reply{ID: env.ID, Err: &RPCError{
			ID:        env.ID,
			Code:      env.Error.Code,
			Message:   env.Error.Message,
			Parameter: env.Error.Parameter,
		}}, nil
	}
	return &Reply{ID: env.ID, Result: env.Result}, nil
}

// ========================= builders параметров =========================

// Page — окно запроса данных гиперкуба.
type Page struct {
	Top    int `json:"qTop"`
	Left   int `json:"qLeft"`
	Height int `json:"qHeight"`
	Width  int `json:"qWidth"`
}

// DefaultPage — окно по умолчанию; любое поле можно переопределить
// до передачи в HypercubeDataParams.
func DefaultPage() Page {
	return Page{Top: 0, Left: 0, Height: 1000, Width: 100}
}

const defaultHypercubePath = "/qHyperCubeDef"

func OpenDocParams(docID string) []any {
	return []any{map[string]any{"qDocName": docID}}
}

func SheetListParams() []any {
	return []any{map[string]any{"qOptions": map[string]any{"qTypes": []any{"sheet"}}}}
}

func GetObjectParams(objectID string) []any {
	return []any{map[string]any{"qId": objectID}}
}

func GetLayoutParams() []any {
	return []any{}
}

func HypercubeDataParams(path string, pages ...Page) []any {
	if path == "" {
		path = defaultHypercubePath
	}
	if len(pages) == 0 {
		pages = []Page{DefaultPage()}
	}
	ps := make([]any, 0, len(pages))
	for _, p := range pages {
		ps = append(ps, p)
	}
	return []any{path, ps}
}
