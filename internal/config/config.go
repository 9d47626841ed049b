// Package config собирает конфигурацию клиента из TOML-файла и
// переменных окружения и отдаёт дальше уже проверенное значение —
// ни qeclient, ни qcsapi сами окружение не читают.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"example.com/qhook/pkg/qeclient"
)

// Переменные окружения — запасной источник для полей, которых нет
// в файле (или когда файла нет вовсе).
const (
	EnvAPIKey    = "QHOOK_API_KEY"
	EnvTenantURL = "QHOOK_TENANT_URL"
	EnvAppID     = "QHOOK_APP_ID"
)

type fileConfig struct {
	APIKey         string `toml:"api_key"`
	TenantURL      string `toml:"tenant_url"`
	AppID          string `toml:"app_id"`
	CallTimeoutSec int    `toml:"call_timeout_sec"`
}

// Load читает файл (отсутствие файла — не ошибка), доливает пропуски
// из окружения и валидирует итог.
func Load(path string) (qeclient.Config, error) {
	var fc fileConfig
	if path != "" {
		if _, err := toml.DecodeFile(path, &fc); err != nil && !os.IsNotExist(err) {
			return qeclient.Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}

	cfg := qeclient.Config{
		APIKey:    fallback(fc.APIKey, EnvAPIKey),
		TenantURL: fallback(fc.TenantURL, EnvTenantURL),
		AppID:     fallback(fc.AppID, EnvAppID),
	}
	if fc.CallTimeoutSec > 0 {
		cfg.CallTimeout = time.Duration(fc.CallTimeoutSec) * time.Second
	}

	if err := cfg.Validate(); err != nil {
		return qeclient.Config{}, err
	}
	return cfg, nil
}

func fallback(v, env string) string {
	if v != "" {
		return v
	}
	return os.Getenv(env)
}
