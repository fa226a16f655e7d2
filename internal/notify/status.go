package notify

import (
	"context"
	"fmt"

	"clinic-booking/internal/model"
	"clinic-booking/pkg/logging"
)

// StatusEmail builds the patient message for a decided appointment. ok is
// false when there is nothing to send.
func StatusEmail(a *model.Appointment) (EmailMessage, bool) {
	if a == nil || a.Email == "" {
		return EmailMessage{}, false
	}

	var subject, verb string
	switch a.Status {
	case model.StatusConfirmed:
		subject, verb = "Your appointment is confirmed", "has been confirmed"
	case model.StatusCancelled:
		subject, verb = "Your appointment was cancelled", "has been cancelled"
	default:
		return EmailMessage{}, false
	}

	doctor := a.Doctor
	if doctor == "" {
		doctor = "the clinic"
	}
	body := fmt.Sprintf("Hello %s,\n\nYour %s appointment with %s on %s (%s) %s.\n",
		a.PatientName, a.Service, doctor, a.Date, a.TimeSlot, verb)
	if a.Status == model.StatusCancelled {
		body += "\nPlease book a new slot if you still need to be seen.\n"
	}
	return EmailMessage{To: a.Email, ToName: a.PatientName, Subject: subject, Body: body}, true
}

// StatusNotifier emails patients when their appointment is decided.
type StatusNotifier struct {
	sender EmailSender
	logger *logging.Logger
}

func NewStatusNotifier(sender EmailSender, logger *logging.Logger) *StatusNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewStubEmailSender(logger)
	}
	return &StatusNotifier{sender: sender, logger: logger}
}

// Notify never fails the caller; delivery errors are logged.
func (n *StatusNotifier) Notify(ctx context.Context, a *model.Appointment) {
	msg, ok := StatusEmail(a)
	if !ok {
		return
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		n.logger.WithError(err).WithField("appointment_id", a.ID).Warn("status email failed")
	}
}
