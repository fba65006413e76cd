// FILE: internal/pkg/notifier/notifier.go
package notifier

import (
	"time"

	"lingua-exchange-be/internal/entity"
	"lingua-exchange-be/internal/pkg/logger"
	"lingua-exchange-be/internal/pkg/mailer"
)

// INotifier pushes lifecycle notices to the member. Delivery is best effort;
// failures are logged and never bubble into the calling sweep or webhook.
type INotifier interface {
	ExpiryWarning(user *entity.User, planName string, endDate time.Time, daysLeft int)
	GraceNotice(user *entity.User, graceEndsAt time.Time)
	Expired(user *entity.User)
}

type emailNotifier struct {
	mailer mailer.IEmailService
	logger logger.ILogger
}

func NewEmailNotifier(m mailer.IEmailService, log logger.ILogger) INotifier {
	return &emailNotifier{
		mailer: m,
		logger: log,
	}
}

func (n *emailNotifier) ExpiryWarning(user *entity.User, planName string, endDate time.Time, daysLeft int) {
	if user.Email == "" {
		return
	}
	if err := n.mailer.SendExpiryWarning(user.Email, user.FullName, planName, endDate, daysLeft); err != nil {
		n.logger.Warn("Notifier", "Failed to deliver expiry warning", map[string]interface{}{
			"user_id": user.Id,
			"error":   err.Error(),
		})
	}
}

func (n *emailNotifier) GraceNotice(user *entity.User, graceEndsAt time.Time) {
	if user.Email == "" {
		return
	}
	if err := n.mailer.SendGraceNotice(user.Email, user.FullName, graceEndsAt); err != nil {
		n.logger.Warn("Notifier", "Failed to deliver grace notice", map[string]interface{}{
			"user_id": user.Id,
			"error":   err.Error(),
		})
	}
}

func (n *emailNotifier) Expired(user *entity.User) {
	if user.Email == "" {
		return
	}
	if err := n.mailer.SendExpiredNotice(user.Email, user.FullName); err != nil {
		n.logger.Warn("Notifier", "Failed to deliver expired notice", map[string]interface{}{
			"user_id": user.Id,
			"error":   err.Error(),
		})
	}
}
