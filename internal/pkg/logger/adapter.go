package logger

import "portfolio_tracker/internal/app/port"

// slogAdapter реализует port.Logger поверх глобальных функций пакета logger,
// добавляя имя компонента к каждой записи.
type slogAdapter struct {
	component string
}

// NewSlogAdapter returns a port.Logger that tags records with the given component name.
func NewSlogAdapter(component string) port.Logger {
	return &slogAdapter{component: component}
}

func (a *slogAdapter) with(args []any) []any {
	if a.component == "" {
		return args
	}
	return append([]any{"component", a.component}, args...)
}

// Info логирует информационное сообщение.
func (a *slogAdapter) Info(msg string, args ...any) {
	Info(msg, a.with(args)...)
}

// Debug логирует отладочное сообщение.
func (a *slogAdapter) Debug(msg string, args ...any) {
	Debug(msg, a.with(args)...)
}

// Warn логирует предупреждающее сообщение.
func (a *slogAdapter) Warn(msg string, args ...any) {
	Warn(msg, a.with(args)...)
}

// Error логирует сообщение об ошибке.
func (a *slogAdapter) Error(msg string, args ...any) {
	Error(msg, a.with(args)...)
}

type nopLogger struct{}

// NewNop returns a port.Logger that discards everything.
func NewNop() port.Logger { return nopLogger{} }

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
