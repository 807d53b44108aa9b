package migrate

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// gooseSlogLogger routes goose progress output through slog.
type gooseSlogLogger struct {
	logger *slog.Logger
}

func (l gooseSlogLogger) Printf(format string, v ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

func (l gooseSlogLogger) Fatalf(format string, v ...interface{}) {
	if l.logger != nil {
		l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
	}
	os.Exit(1)
}
