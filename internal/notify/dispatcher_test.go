package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alert-service/internal/config"
	"alert-service/internal/logging"
	"alert-service/internal/models"
)

type fakeSMS struct {
	mu    sync.Mutex
	sent  []string
	err   error
	delay time.Duration
}

func (f *fakeSMS) Send(ctx context.Context, toNumber, _ string) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, toNumber)
	return f.err
}

type fakeEmail struct {
	mu    sync.Mutex
	sent  []string
	err   error
	delay time.Duration
}

func (f *fakeEmail) Send(ctx context.Context, to, _, _ string) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, to)
	return f.err
}

type fakeOps struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeOps) Broadcast(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	alerts []models.Alert
}

func (f *fakeBroadcaster) PublishNewAlert(alert models.Alert) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, alert)
}

func dispatcherConfig(attempt, settle time.Duration) config.Config {
	var cfg config.Config
	cfg.Notification.AttemptTimeout = attempt
	cfg.Notification.SettleTimeout = settle
	return cfg
}

func testAlert() models.Alert {
	return models.Alert{
		ID:          uuid.New(),
		RequesterID: "user-1",
		Location:    models.Location{Latitude: 28.6139, Longitude: 77.2090},
		Status:      models.StatusPending,
		Priority:    models.PriorityCritical,
		Contacts: []models.EmergencyContact{
			{Name: "An", Phone: "+84901234567"},
			{Name: "Binh", Email: "binh@example.com"},
		},
		CreatedAt: time.Now(),
	}
}

func entryFor(t *testing.T, report models.DeliveryReport, channel, target string) models.DeliveryEntry {
	t.Helper()
	for _, e := range report {
		if e.Channel == channel && e.Target == target {
			return e
		}
	}
	t.Fatalf("no %s entry for %s in %+v", channel, target, report)
	return models.DeliveryEntry{}
}

func TestDispatchFansOutAllChannels(t *testing.T) {
	sms := &fakeSMS{}
	email := &fakeEmail{}
	ops := &fakeOps{}
	hub := &fakeBroadcaster{}
	d := New(sms, email, ops, hub, logging.NewNop(), dispatcherConfig(time.Second, 5*time.Second))

	alert := testAlert()
	report := d.Dispatch(context.Background(), alert)

	// Dashboard, one SMS, one email, plus the ops channel for critical.
	require.Len(t, report, 4)
	for _, e := range report {
		assert.Equal(t, models.DeliverySucceeded, e.Status, "%s/%s", e.Channel, e.Target)
		assert.Equal(t, models.DeliveryEventAlert, e.Event)
		assert.NotNil(t, e.SentAt)
	}

	assert.Equal(t, []string{"+84901234567"}, sms.sent)
	assert.Equal(t, []string{"binh@example.com"}, email.sent)
	assert.Len(t, ops.texts, 1)
	require.Len(t, hub.alerts, 1)
	assert.Equal(t, alert.ID, hub.alerts[0].ID)
}

func TestDispatchFailureIsolated(t *testing.T) {
	sms := &fakeSMS{err: errors.New("twilio unreachable")}
	email := &fakeEmail{}
	hub := &fakeBroadcaster{}
	d := New(sms, email, nil, hub, logging.NewNop(), dispatcherConfig(time.Second, 5*time.Second))

	alert := testAlert()
	report := d.Dispatch(context.Background(), alert)
	require.Len(t, report, 3)

	failed := entryFor(t, report, models.ChannelSMS, "+84901234567")
	assert.Equal(t, models.DeliveryFailed, failed.Status)
	assert.Equal(t, "twilio unreachable", failed.Error)

	// The other channels still succeed.
	assert.Equal(t, models.DeliverySucceeded, entryFor(t, report, models.ChannelEmail, "binh@example.com").Status)
	assert.Equal(t, models.DeliverySucceeded, entryFor(t, report, models.ChannelDashboard, "monitors").Status)
}

func TestDispatchAttemptTimeout(t *testing.T) {
	sms := &fakeSMS{delay: 500 * time.Millisecond}
	email := &fakeEmail{}
	hub := &fakeBroadcaster{}
	d := New(sms, email, nil, hub, logging.NewNop(), dispatcherConfig(20*time.Millisecond, 5*time.Second))

	report := d.Dispatch(context.Background(), testAlert())

	timedOut := entryFor(t, report, models.ChannelSMS, "+84901234567")
	assert.Equal(t, models.DeliveryFailed, timedOut.Status)
	assert.Equal(t, "timeout", timedOut.Error)
	assert.Equal(t, models.DeliverySucceeded, entryFor(t, report, models.ChannelEmail, "binh@example.com").Status)
}

func TestDispatchUnsettledStaysPending(t *testing.T) {
	// The attempt outlives the settle bound; its entry is left pending
	// rather than blocking the report.
	sms := &fakeSMS{delay: time.Second}
	email := &fakeEmail{}
	hub := &fakeBroadcaster{}
	d := New(sms, email, nil, hub, logging.NewNop(), dispatcherConfig(2*time.Second, 50*time.Millisecond))

	report := d.Dispatch(context.Background(), testAlert())

	pending := entryFor(t, report, models.ChannelSMS, "+84901234567")
	assert.Equal(t, models.DeliveryPending, pending.Status)
}

func TestDispatchSkipsOpsBelowCritical(t *testing.T) {
	ops := &fakeOps{}
	hub := &fakeBroadcaster{}
	d := New(nil, nil, ops, hub, logging.NewNop(), dispatcherConfig(time.Second, 5*time.Second))

	alert := testAlert()
	alert.Priority = models.PriorityHigh
	report := d.Dispatch(context.Background(), alert)

	// Only the dashboard entry: no gateways, not critical.
	require.Len(t, report, 1)
	assert.Equal(t, models.ChannelDashboard, report[0].Channel)
	assert.Empty(t, ops.texts)
}

func TestDispatchResolvedOnlyReachedContacts(t *testing.T) {
	sms := &fakeSMS{}
	email := &fakeEmail{}
	hub := &fakeBroadcaster{}
	d := New(sms, email, nil, hub, logging.NewNop(), dispatcherConfig(time.Second, 5*time.Second))

	alert := testAlert()
	alert.Status = models.StatusResolved
	alert.DeliveryReport = models.DeliveryReport{
		{Channel: models.ChannelSMS, Target: "+84901234567", Event: models.DeliveryEventAlert, Status: models.DeliverySucceeded},
		{Channel: models.ChannelEmail, Target: "binh@example.com", Event: models.DeliveryEventAlert, Status: models.DeliveryFailed},
		{Channel: models.ChannelDashboard, Target: "monitors", Event: models.DeliveryEventAlert, Status: models.DeliverySucceeded},
		{Channel: models.ChannelSMS, Target: "+84907654321", Event: models.DeliveryEventResolved, Status: models.DeliverySucceeded},
	}

	appended := d.DispatchResolved(context.Background(), alert)

	// Only the originally reached SMS target is re-notified: the failed
	// email is skipped, dashboard is not a re-fan channel, and prior
	// resolved entries are not repeated.
	require.Len(t, appended, 1)
	assert.Equal(t, models.ChannelSMS, appended[0].Channel)
	assert.Equal(t, "+84901234567", appended[0].Target)
	assert.Equal(t, models.DeliveryEventResolved, appended[0].Event)
	assert.Equal(t, models.DeliverySucceeded, appended[0].Status)
	assert.Equal(t, []string{"+84901234567"}, sms.sent)
	assert.Empty(t, email.sent)
}

func TestDispatchResolvedNothingReached(t *testing.T) {
	d := New(&fakeSMS{}, &fakeEmail{}, nil, &fakeBroadcaster{}, logging.NewNop(), dispatcherConfig(time.Second, 5*time.Second))

	alert := testAlert()
	alert.DeliveryReport = models.DeliveryReport{
		{Channel: models.ChannelSMS, Target: "+84901234567", Event: models.DeliveryEventAlert, Status: models.DeliveryFailed},
	}
	assert.Nil(t, d.DispatchResolved(context.Background(), alert))
}
