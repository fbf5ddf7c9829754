package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"alert-service/internal/config"
	"alert-service/internal/logging"
	"alert-service/internal/models"
)

// ChallengeStore persists one-time codes. Implemented by the db package.
type ChallengeStore interface {
	ReplaceChallenge(ctx context.Context, ch models.Challenge) error
	LatestChallenge(ctx context.Context, target string, purpose models.ChallengePurpose) (models.Challenge, error)
	IncrementAttempts(ctx context.Context, id uuid.UUID) error
	MarkUsed(ctx context.Context, id uuid.UUID) error
	CountIssuedSince(ctx context.Context, target string, since time.Time) (int, error)
}

// CodeSender delivers the raw code out-of-band (SMS or email, decided by
// the target's form). Delivery is best-effort; a gateway failure does not
// fail issuance.
type CodeSender interface {
	SendCode(ctx context.Context, target, code string, ttl time.Duration) error
}

// Service issues and verifies one-time codes. Codes are stored hashed,
// consumable once, capped on verification attempts, and rate-limited per
// target on issuance.
type Service struct {
	store  ChallengeStore
	sender CodeSender
	logger *logging.Logger

	codeLength  int
	ttl         time.Duration
	maxAttempts int
	issueLimit  int
	issueWindow time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(store ChallengeStore, sender CodeSender, logger *logging.Logger, cfg config.Config) *Service {
	return &Service{
		store:       store,
		sender:      sender,
		logger:      logger,
		codeLength:  cfg.OTP.CodeLength,
		ttl:         cfg.OTP.TTL,
		maxAttempts: cfg.OTP.MaxAttempts,
		issueLimit:  cfg.OTP.IssueLimit,
		issueWindow: cfg.OTP.IssueWindow,
		limiters:    make(map[string]*rate.Limiter),
	}
}

// Issue generates a fresh code for (target, purpose), invalidating any
// unconsumed prior challenge, and hands the raw code to the sender. The
// returned duration is the challenge TTL.
func (s *Service) Issue(ctx context.Context, target string, purpose models.ChallengePurpose) (time.Duration, error) {
	if target == "" {
		return 0, fmt.Errorf("target is required: %w", models.ErrValidation)
	}
	if !models.ValidPurpose(purpose) {
		return 0, fmt.Errorf("unknown purpose %q: %w", purpose, models.ErrValidation)
	}

	if !s.limiter(target).Allow() {
		return 0, fmt.Errorf("issuance limit for %s: %w", target, models.ErrRateLimited)
	}
	issued, err := s.store.CountIssuedSince(ctx, target, time.Now().Add(-s.issueWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to check issuance window: %w", err)
	}
	if issued >= s.issueLimit {
		return 0, fmt.Errorf("issuance limit for %s: %w", target, models.ErrRateLimited)
	}

	code, err := s.generateCode()
	if err != nil {
		return 0, fmt.Errorf("failed to generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("failed to hash code: %w", err)
	}

	now := time.Now()
	ch := models.Challenge{
		ID:        uuid.New(),
		Target:    target,
		Purpose:   purpose,
		CodeHash:  string(hash),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.ReplaceChallenge(ctx, ch); err != nil {
		return 0, fmt.Errorf("failed to store challenge: %w", err)
	}

	// Out-of-band delivery is best-effort; the challenge stands either way.
	if err := s.sender.SendCode(ctx, target, code, s.ttl); err != nil {
		s.logger.Warnf("Code delivery to %s failed: %v", target, err)
	}

	s.logger.Infof("Issued %s challenge for %s (expires in %s)", purpose, target, s.ttl)
	return s.ttl, nil
}

// Verify checks a submitted code against the live challenge. A mismatch
// burns an attempt but leaves the challenge live until the cap; a match
// consumes it permanently.
func (s *Service) Verify(ctx context.Context, target string, purpose models.ChallengePurpose, code string) (bool, error) {
	if target == "" || code == "" {
		return false, fmt.Errorf("target and code are required: %w", models.ErrValidation)
	}

	ch, err := s.store.LatestChallenge(ctx, target, purpose)
	if err != nil {
		return false, err
	}
	if ch.IsUsed {
		return false, fmt.Errorf("challenge for %s: %w", target, models.ErrAlreadyUsed)
	}
	if ch.Expired(time.Now()) {
		return false, fmt.Errorf("challenge for %s: %w", target, models.ErrExpired)
	}
	if ch.Attempts >= s.maxAttempts {
		return false, fmt.Errorf("challenge for %s: %w", target, models.ErrAttemptsExceeded)
	}

	if err := s.store.IncrementAttempts(ctx, ch.ID); err != nil {
		return false, fmt.Errorf("failed to record attempt: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(ch.CodeHash), []byte(code)) != nil {
		s.logger.Infof("Verification failed for %s (attempt %d/%d)", target, ch.Attempts+1, s.maxAttempts)
		return false, nil
	}

	if err := s.store.MarkUsed(ctx, ch.ID); err != nil {
		return false, err
	}
	s.logger.Infof("Verified %s challenge for %s", purpose, target)
	return true, nil
}

// Resend re-issues the challenge, replacing the unconsumed one.
func (s *Service) Resend(ctx context.Context, target string, purpose models.ChallengePurpose) (time.Duration, error) {
	return s.Issue(ctx, target, purpose)
}

func (s *Service) limiter(target string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[target]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.issueWindow/time.Duration(s.issueLimit)), s.issueLimit)
		s.limiters[target] = l
	}
	return l
}

func (s *Service) generateCode() (string, error) {
	digits := make([]byte, s.codeLength)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
