package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/pharmacy-api/internal/model"
	"github.com/jwalitptl/pharmacy-api/pkg/messaging"
)

type fakeMailer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeMailer) DialAndSend(m ...*gomail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, m...)
	return nil
}

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "notifications_sent_total"}, []string{"status"})
}

func issued(t *testing.T, email string) *messaging.Message {
	payload, err := json.Marshal(model.SickLeaveIssuedPayload{
		SickLeaveID:   uuid.New(),
		LeaveNumber:   "SL-20250301-0001-AB12",
		CustomerName:  "Maria",
		CustomerEmail: email,
		StartDate:     model.NewDate(2025, 3, 1),
		EndDate:       model.NewDate(2025, 3, 5),
		Reason:        "Flu",
	})
	require.NoError(t, err)
	return messaging.NewMessage(uuid.New(), model.EventSickLeaveIssued, payload, time.Now())
}

func TestSickLeaveIssuedSendsEmail(t *testing.T) {
	mailer := &fakeMailer{}
	sent := newCounter()
	svc := NewService(mailer, "clinic@example.com", sent)

	require.NoError(t, svc.SickLeaveIssued(context.Background(), issued(t, "maria@example.com")))

	require.Len(t, mailer.sent, 1)
	m := mailer.sent[0]
	assert.Equal(t, []string{"maria@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"clinic@example.com"}, m.GetHeader("From"))
	assert.True(t, strings.Contains(m.GetHeader("Subject")[0], "SL-20250301-0001-AB12"))
	assert.Equal(t, 1.0, testutil.ToFloat64(sent.WithLabelValues("sent")))
}

func TestSickLeaveIssuedWithoutEmailIsSkipped(t *testing.T) {
	mailer := &fakeMailer{}
	sent := newCounter()
	svc := NewService(mailer, "clinic@example.com", sent)

	require.NoError(t, svc.SickLeaveIssued(context.Background(), issued(t, "")))
	assert.Empty(t, mailer.sent)
	assert.Equal(t, 1.0, testutil.ToFloat64(sent.WithLabelValues("skipped")))
}

func TestSickLeaveIssuedSendFailureIsReturned(t *testing.T) {
	svc := NewService(&fakeMailer{err: errors.New("connection refused")}, "clinic@example.com", nil)

	err := svc.SickLeaveIssued(context.Background(), issued(t, "maria@example.com"))
	assert.ErrorContains(t, err, "connection refused")
}

func TestSubscribeDeliversThroughBroker(t *testing.T) {
	mailer := &fakeMailer{}
	broker := messaging.NewMemoryBroker()
	svc := NewService(mailer, "clinic@example.com", nil)

	require.NoError(t, svc.Subscribe(context.Background(), broker))
	require.NoError(t, broker.Publish(context.Background(), issued(t, "maria@example.com")))
	assert.Len(t, mailer.sent, 1)
}

func TestBody(t *testing.T) {
	body := sickLeaveBody(model.SickLeaveIssuedPayload{
		CustomerName: "Maria",
		LeaveNumber:  "SL-1",
		StartDate:    model.NewDate(2025, 3, 1),
		EndDate:      model.NewDate(2025, 3, 5),
	})
	assert.Contains(t, body, "Dear Maria")
	assert.Contains(t, body, "2025-03-01")
	assert.NotContains(t, body, "Reason")
}
