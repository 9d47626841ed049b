package qcsapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError — единое представление отказа REST API: HTTP-статус плюс
// код/заголовок из тела, когда тенант их прислал.
type APIError struct {
	Status int
	Code   string
	Title  string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("qcsapi: %d %s: %s", e.Status, e.Code, e.Title)
	}
	return fmt.Sprintf("qcsapi: %d %s", e.Status, e.Title)
}

// decodeAPIError читает тело вида {"errors":[{"code","title"}]};
// если тело не такое — остаётся только статус.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var env struct {
		Errors []struct {
			Code  string `json:"code"`
			Title string `json:"title"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &env) == nil && len(env.Errors) > 0 {
		apiErr.Code = env.Errors[0].Code
		if env.Errors[0].Title != "" {
			apiErr.Title = env.Errors[0].Title
		}
	}
	return apiErr
}
