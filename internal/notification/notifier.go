package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/dmoroni/uniteams/internal/repository"
)

// LogNotifier records the invitation instead of delivering it. Mail
// delivery is deployment-specific and plugs in behind service.Notifier
// at wiring time.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger,
	}
}

func (n *LogNotifier) Notify(ctx context.Context, student *repository.Student, teamName, urlConfirm, urlReject string) error {
	n.logger.Info("team invitation",
		zap.Int64("student_id", student.ID),
		zap.String("email", student.Email),
		zap.String("team_name", teamName),
		zap.String("url_confirm", urlConfirm),
		zap.String("url_reject", urlReject))
	return nil
}
