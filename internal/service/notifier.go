package service

import (
	"context"

	"github.com/dmoroni/uniteams/internal/repository"
)

// Notifier delivers the confirm/reject links of a team proposal to an
// invited student. Delivery is best-effort; the proposal stands even if
// a notification fails.
type Notifier interface {
	Notify(ctx context.Context, student *repository.Student, teamName, urlConfirm, urlReject string) error
}
