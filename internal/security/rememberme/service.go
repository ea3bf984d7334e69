// Package rememberme implements persistent-token login: long-lived rotating
// (series, token) credentials that re-establish a session without a password.
package rememberme

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulsechat/chat-api/internal/core/domain"
)

// Repository errors. The service maps these onto its own outcomes; the HTTP
// layer renders every remember-me failure identically to a credential error.
var (
	ErrSeriesNotFound = errors.New("remember-me series not found")
	ErrTokenMismatch  = errors.New("remember-me token mismatch")
)

// ErrReuse signals that a presented token did not match the stored value for
// a known series: either theft or a replay of a rotated-out token. The series
// is invalidated before this is returned.
var ErrReuse = errors.New("remember-me token reuse detected")

// TokenRepository abstracts the persistent token store (Redis).
type TokenRepository interface {
	Save(ctx context.Context, token *domain.RememberMeToken, ttl time.Duration) error
	Get(ctx context.Context, series string) (*domain.RememberMeToken, error)
	// Rotate replaces the token value for a series if and only if the stored
	// value still equals oldToken, as one atomic step.
	Rotate(ctx context.Context, series, oldToken, newToken string, ttl time.Duration) error
	Delete(ctx context.Context, series string) error
}

// Service issues, validates, and rotates remember-me tokens.
type Service struct {
	repo     TokenRepository
	validity time.Duration
	log      zerolog.Logger
}

// NewService builds a Service. validity bounds how long an untouched series
// survives; it defaults to fourteen days.
func NewService(repo TokenRepository, validity time.Duration, log zerolog.Logger) *Service {
	if validity <= 0 {
		validity = 14 * 24 * time.Hour
	}
	return &Service{repo: repo, validity: validity, log: log}
}

// Validity returns the configured token lifetime, used for cookie max-age.
func (s *Service) Validity() time.Duration {
	return s.validity
}

// Issue creates and persists a fresh series for the given username.
func (s *Service) Issue(ctx context.Context, username string) (*domain.RememberMeToken, error) {
	token := &domain.RememberMeToken{
		Series:   uuid.NewString(),
		Token:    newTokenValue(),
		Username: username,
		LastUsed: time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, token, s.validity); err != nil {
		return nil, fmt.Errorf("issue remember-me token: %w", err)
	}
	return token, nil
}

// Validate checks a presented (series, token) pair. On success the token is
// rotated — one-time-use per presentation — and the new pair is returned for
// the refreshed cookie. A token mismatch for a known series invalidates the
// whole series and returns ErrReuse; an unknown series returns
// ErrSeriesNotFound.
func (s *Service) Validate(ctx context.Context, series, token string) (*domain.RememberMeToken, error) {
	stored, err := s.repo.Get(ctx, series)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(stored.Token), []byte(token)) != 1 {
		// Fail closed: the stored token was rotated past the presented one,
		// so someone else used this series. Kill it entirely.
		if delErr := s.repo.Delete(ctx, series); delErr != nil {
			s.log.Error().Err(delErr).Str("series", series).Msg("failed to invalidate reused series")
		}
		return nil, ErrReuse
	}

	rotated := &domain.RememberMeToken{
		Series:   series,
		Token:    newTokenValue(),
		Username: stored.Username,
		LastUsed: time.Now().UTC(),
	}
	err = s.repo.Rotate(ctx, series, token, rotated.Token, s.validity)
	if errors.Is(err, ErrTokenMismatch) || errors.Is(err, ErrSeriesNotFound) {
		// Lost a race against another presentation of the same pair. Treat it
		// exactly like reuse.
		if delErr := s.repo.Delete(ctx, series); delErr != nil {
			s.log.Error().Err(delErr).Str("series", series).Msg("failed to invalidate raced series")
		}
		return nil, ErrReuse
	}
	if err != nil {
		return nil, fmt.Errorf("rotate remember-me token: %w", err)
	}
	return rotated, nil
}

// Forget drops a series, e.g. on logout from the device that owns it.
func (s *Service) Forget(ctx context.Context, series string) error {
	return s.repo.Delete(ctx, series)
}

// newTokenValue returns a high-entropy opaque token value.
func newTokenValue() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("rememberme: crypto/rand failed: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}
