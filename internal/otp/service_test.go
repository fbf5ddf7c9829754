package otp

import (
	"context"
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

type fakeChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*models.Challenge
	issued     map[string]int
}

func newFakeChallengeStore() *fakeChallengeStore {
	return &fakeChallengeStore{
		challenges: make(map[string]*models.Challenge),
		issued:     make(map[string]int),
	}
}

func key(target string, purpose models.ChallengePurpose) string {
	return target + "|" + string(purpose)
}

func (f *fakeChallengeStore) ReplaceChallenge(_ context.Context, ch models.Challenge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.challenges[key(ch.Target, ch.Purpose)] = &ch
	f.issued[ch.Target]++
	return nil
}

func (f *fakeChallengeStore) LatestChallenge(_ context.Context, target string, purpose models.ChallengePurpose) (models.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.challenges[key(target, purpose)]
	if !ok {
		return models.Challenge{}, models.ErrNotFound
	}
	return *ch, nil
}

func (f *fakeChallengeStore) IncrementAttempts(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.challenges {
		if ch.ID == id {
			ch.Attempts++
		}
	}
	return nil
}

func (f *fakeChallengeStore) MarkUsed(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.challenges {
		if ch.ID == id {
			if ch.IsUsed {
				return models.ErrAlreadyUsed
			}
			ch.IsUsed = true
		}
	}
	return nil
}

func (f *fakeChallengeStore) CountIssuedSince(_ context.Context, target string, _ time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issued[target], nil
}

type fakeSender struct {
	mu    sync.Mutex
	codes []string
	err   error
}

func (f *fakeSender) SendCode(_ context.Context, _, code string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	return f.err
}

func (f *fakeSender) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.codes) == 0 {
		return ""
	}
	return f.codes[len(f.codes)-1]
}

func testConfig() config.Config {
	var cfg config.Config
	cfg.OTP.CodeLength = 6
	cfg.OTP.TTL = 10 * time.Minute
	cfg.OTP.MaxAttempts = 3
	cfg.OTP.IssueLimit = 3
	cfg.OTP.IssueWindow = time.Hour
	return cfg
}

func TestIssueAndVerify(t *testing.T) {
	store := newFakeChallengeStore()
	sender := &fakeSender{}
	svc := New(store, sender, logging.NewNop(), testConfig())

	ttl, err := svc.Issue(context.Background(), "+84901234567", models.PurposeLogin)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, ttl)

	code := sender.last()
	require.Len(t, code, 6)

	ok, err := svc.Verify(context.Background(), "+84901234567", models.PurposeLogin, code)
	require.NoError(t, err)
	assert.True(t, ok)

	// A consumed challenge cannot be verified again.
	_, err = svc.Verify(context.Background(), "+84901234567", models.PurposeLogin, code)
	assert.ErrorIs(t, err, models.ErrAlreadyUsed)
}

func TestVerifyWrongCodeBurnsAttempt(t *testing.T) {
	store := newFakeChallengeStore()
	sender := &fakeSender{}
	svc := New(store, sender, logging.NewNop(), testConfig())

	_, err := svc.Issue(context.Background(), "user@example.com", models.PurposeRegistration)
	require.NoError(t, err)

	ok, err := svc.Verify(context.Background(), "user@example.com", models.PurposeRegistration, "000000")
	require.NoError(t, err)
	assert.False(t, ok)

	ch, err := store.LatestChallenge(context.Background(), "user@example.com", models.PurposeRegistration)
	require.NoError(t, err)
	assert.Equal(t, 1, ch.Attempts)
	assert.False(t, ch.IsUsed)

	// The right code still works before the cap.
	ok, err = svc.Verify(context.Background(), "user@example.com", models.PurposeRegistration, sender.last())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyAttemptCap(t *testing.T) {
	store := newFakeChallengeStore()
	sender := &fakeSender{}
	svc := New(store, sender, logging.NewNop(), testConfig())

	_, err := svc.Issue(context.Background(), "+84901234567", models.PurposeLogin)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := svc.Verify(context.Background(), "+84901234567", models.PurposeLogin, "999999")
		require.NoError(t, err)
		assert.False(t, ok)
	}

	// Even the correct code is rejected once the cap is hit.
	_, err = svc.Verify(context.Background(), "+84901234567", models.PurposeLogin, sender.last())
	assert.ErrorIs(t, err, models.ErrAttemptsExceeded)
}

func TestVerifyExpiredChallenge(t *testing.T) {
	store := newFakeChallengeStore()
	sender := &fakeSender{}
	cfg := testConfig()
	cfg.OTP.TTL = -time.Minute
	svc := New(store, sender, logging.NewNop(), cfg)

	_, err := svc.Issue(context.Background(), "+84901234567", models.PurposeLogin)
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), "+84901234567", models.PurposeLogin, sender.last())
	assert.ErrorIs(t, err, models.ErrExpired)
}

func TestVerifyMissingChallenge(t *testing.T) {
	svc := New(newFakeChallengeStore(), &fakeSender{}, logging.NewNop(), testConfig())

	_, err := svc.Verify(context.Background(), "+84901234567", models.PurposeLogin, "123456")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestIssueRateLimit(t *testing.T) {
	store := newFakeChallengeStore()
	sender := &fakeSender{}
	svc := New(store, sender, logging.NewNop(), testConfig())

	for i := 0; i < 3; i++ {
		_, err := svc.Issue(context.Background(), "+84901234567", models.PurposeLogin)
		require.NoError(t, err)
	}

	_, err := svc.Issue(context.Background(), "+84901234567", models.PurposeLogin)
	assert.ErrorIs(t, err, models.ErrRateLimited)

	// Other targets are unaffected.
	_, err = svc.Issue(context.Background(), "+84907654321", models.PurposeLogin)
	assert.NoError(t, err)
}

func TestResendReplacesChallenge(t *testing.T) {
	store := newFakeChallengeStore()
	sender := &fakeSender{}
	svc := New(store, sender, logging.NewNop(), testConfig())

	_, err := svc.Issue(context.Background(), "user@example.com", models.PurposeLogin)
	require.NoError(t, err)
	first := sender.last()

	_, err = svc.Resend(context.Background(), "user@example.com", models.PurposeLogin)
	require.NoError(t, err)
	second := sender.last()

	// The old code no longer verifies; the new one does.
	if first != second {
		ok, err := svc.Verify(context.Background(), "user@example.com", models.PurposeLogin, first)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	ok, err := svc.Verify(context.Background(), "user@example.com", models.PurposeLogin, second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestIssueValidation(t *testing.T) {
	svc := New(newFakeChallengeStore(), &fakeSender{}, logging.NewNop(), testConfig())

	_, err := svc.Issue(context.Background(), "", models.PurposeLogin)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.Issue(context.Background(), "+84901234567", "unknown")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestIssueSurvivesSenderFailure(t *testing.T) {
	store := newFakeChallengeStore()
	sender := &fakeSender{err: assert.AnError}
	svc := New(store, sender, logging.NewNop(), testConfig())

	_, err := svc.Issue(context.Background(), "+84901234567", models.PurposeLogin)
	require.NoError(t, err)

	// The challenge stands and the code still verifies.
	ok, err := svc.Verify(context.Background(), "+84901234567", models.PurposeLogin, sender.last())
	require.NoError(t, err)
	assert.True(t, ok)
}
