package service

import (
	"context"
	"fmt"

	"github.com/and161185/nevi/internal/activity"
	pkgcrypto "github.com/and161185/nevi/internal/crypto"
	"github.com/and161185/nevi/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

const recoveryTokenBytes = 32

// RecoveryMessage is what a Mailer needs to send a password reset email.
type RecoveryMessage struct {
	To       string
	FullName string
	Token    string
}

// Mailer delivers password recovery messages.
type Mailer interface {
	SendRecovery(ctx context.Context, msg RecoveryMessage) error
}

// LogMailer writes recovery messages to the log instead of sending them. Meant for development.
type LogMailer struct{ Log *zap.Logger }

// SendRecovery logs the recipient; the token is never logged.
func (m LogMailer) SendRecovery(_ context.Context, msg RecoveryMessage) error {
	m.Log.Info("password recovery queued", zap.String("to", msg.To), zap.String("name", msg.FullName))
	return nil
}

// RecoveryService starts password recovery for a user.
type RecoveryService struct {
	users  repository.UserRepository
	mail   Mailer
	events activity.Sink
}

// NewRecoveryService constructs a RecoveryService.
func NewRecoveryService(users repository.UserRepository, mail Mailer, events activity.Sink) *RecoveryService {
	return &RecoveryService{users: users, mail: mail, events: events}
}

// InitiatePasswordRecovery stores a fresh recovery token on the user's account and mails it.
// The outcome of the mail step is recorded as activity of the acting request.
func (s *RecoveryService) InitiatePasswordRecovery(ctx context.Context, req *Request, userID uuid.UUID) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	token, err := pkgcrypto.RandHex(recoveryTokenBytes)
	if err != nil {
		return err
	}
	if err := s.users.SetRecoveryToken(ctx, u.Email, token); err != nil {
		return err
	}

	name := u.FullName()
	err = s.mail.SendRecovery(ctx, RecoveryMessage{To: u.Email, FullName: name, Token: token})
	ev := activity.Event{UserID: req.UserID(), Page: "settings", Action: activity.ActionEmail}
	if err != nil {
		ev.Status = activity.Failed
		ev.Detail = fmt.Sprintf("Couldn't send Password Reset Email: %q", name)
	} else {
		ev.Status = activity.Succeeded
		ev.Detail = fmt.Sprintf("Send Password Reset Email: %q", name)
	}
	if s.events != nil {
		s.events.Record(ctx, req.Meta, ev)
	}
	if err != nil {
		return fmt.Errorf("send recovery email: %w", err)
	}
	return nil
}
