package notify

import (
	"context"

	"github.com/nkiryanov/bemserver/internal/logger"
	"github.com/nkiryanov/bemserver/internal/models"
)

// Deliver one-time code to the user
type CodeSender interface {
	SendCode(ctx context.Context, user models.User, codeType string, code string) error
}

// Sender that writes codes to the log instead of mailing them
// Fits development setups only
type LogSender struct {
	logger logger.Logger
}

func NewLogSender(l logger.Logger) *LogSender {
	return &LogSender{logger: l.WithGroup("notify")}
}

func (s *LogSender) SendCode(_ context.Context, user models.User, codeType string, code string) error {
	s.logger.Info("One-time code issued", "email", user.Email, "type", codeType, "code", code)
	return nil
}
