package email

import (
	"context"
	"errors"
)

// AlertSender define la interfaz para avisos de incidentes por correo.
type AlertSender interface {
	SendIncidentAlert(ctx context.Context, toEmail, title, category, severity string) error
}

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) AlertSender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) SendIncidentAlert(_ context.Context, _, _, _, _ string) error {
	if s.reason == "" {
		return errors.New("alert sender disabled")
	}
	return errors.New(s.reason)
}
