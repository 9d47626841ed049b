package qcsapi

import (
	"encoding/base64"
	"fmt"
)

// Cursor — непрозрачный курсор пагинации. Внутри — ссылка next из
// ответа каталога; вызывающему её структура ни к чему, он только
// передаёт курсор обратно в ListApps.
type Cursor string

func cursorFromHref(href string) Cursor {
	if href == "" {
		return ""
	}
	return Cursor(base64.RawURLEncoding.EncodeToString([]byte(href)))
}

func (c Cursor) href() (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(string(c))
	if err != nil {
		return "", fmt.Errorf("qcsapi: bad cursor: %w", err)
	}
	return string(raw), nil
}
