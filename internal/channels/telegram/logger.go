package telegram

import (
	"fmt"
	"log/slog"
	"strings"
)

// botLogger routes the bot library's internal logging (poll failures,
// debug request dumps) into slog.
type botLogger struct {
	logger *slog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintln(v...)), "source", "tgbotapi")
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)), "source", "tgbotapi")
}
