// Package logger — фабрика логгеров charmbracelet/log с единым форматом
// для всех пакетов репозитория.
package logger

import (
	"os"

	"github.com/charmbracelet/log"
)

// New возвращает логгер с префиксом пакета. Уровень берётся из
// глобального (log.SetLevel в main).
func New(prefix string) *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
		Formatter:       log.TextFormatter,
		Level:           log.GetLevel(),
	})
}
