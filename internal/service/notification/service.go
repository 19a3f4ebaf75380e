// Package notification emails customers about events that concern them.
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/pkg/messaging"
)

// Mailer is satisfied by *gomail.Dialer.
type Mailer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// NewDialer builds the SMTP mailer for cfg.
func NewDialer(cfg Config) *gomail.Dialer {
	return gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
}

type Service interface {
	// Subscribe registers the service's handlers on broker.
	Subscribe(ctx context.Context, broker messaging.Broker) error
	SickLeaveIssued(ctx context.Context, msg *messaging.Message) error
}

type service struct {
	mailer Mailer
	from   string
	sent   *prometheus.CounterVec
}

// NewService returns a Service. A nil sent counter disables metrics.
func NewService(mailer Mailer, from string, sent *prometheus.CounterVec) Service {
	return &service{mailer: mailer, from: from, sent: sent}
}

func (s *service) Subscribe(ctx context.Context, broker messaging.Broker) error {
	if err := broker.Subscribe(ctx, model.EventSickLeaveIssued, s.SickLeaveIssued); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", model.EventSickLeaveIssued, err)
	}
	return nil
}

func (s *service) SickLeaveIssued(ctx context.Context, msg *messaging.Message) error {
	var p model.SickLeaveIssuedPayload
	if err := msg.Decode(&p); err != nil {
		s.count("invalid")
		log.Ctx(ctx).Error().Err(err).Str("event_id", msg.ID.String()).Msg("Dropping malformed sick leave event")
		return nil
	}
	if strings.TrimSpace(p.CustomerEmail) == "" {
		s.count("skipped")
		log.Ctx(ctx).Debug().Str("leave_number", p.LeaveNumber).Msg("Customer has no email, skipping notification")
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", p.CustomerEmail)
	m.SetHeader("Subject", fmt.Sprintf("Sick leave %s issued", p.LeaveNumber))
	m.SetBody("text/plain", sickLeaveBody(p))

	if err := s.mailer.DialAndSend(m); err != nil {
		s.count("failed")
		return fmt.Errorf("failed to send sick leave notification: %w", err)
	}
	s.count("sent")
	log.Ctx(ctx).Info().
		Str("leave_number", p.LeaveNumber).
		Str("customer_id", p.CustomerID.String()).
		Msg("Sick leave notification sent")
	return nil
}

func (s *service) count(status string) {
	if s.sent != nil {
		s.sent.WithLabelValues(status).Inc()
	}
}

func sickLeaveBody(p model.SickLeaveIssuedPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", p.CustomerName)
	fmt.Fprintf(&b, "Sick leave %s has been issued for you.\n\n", p.LeaveNumber)
	fmt.Fprintf(&b, "From: %s\nTo:   %s\n", p.StartDate, p.EndDate)
	if p.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", p.Reason)
	}
	return b.String()
}
