package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pulsechat/chat-api/internal/core/domain"
	"github.com/pulsechat/chat-api/internal/security/rememberme"
)

const rememberMeKeyPrefix = "rememberme:"

// RememberMeRepository stores remember-me tokens in Redis, one key per
// series, expiring with the configured validity window.
type RememberMeRepository struct {
	client *redis.Client
}

func NewRememberMeRepository(client *redis.Client) *RememberMeRepository {
	return &RememberMeRepository{client: client}
}

type rememberMeRecord struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	LastUsed int64  `json:"last_used"`
}

func (r *RememberMeRepository) Save(ctx context.Context, token *domain.RememberMeToken, ttl time.Duration) error {
	payload, err := json.Marshal(rememberMeRecord{
		Token:    token.Token,
		Username: token.Username,
		LastUsed: token.LastUsed.Unix(),
	})
	if err != nil {
		return fmt.Errorf("encode remember-me record: %w", err)
	}
	if err := r.client.Set(ctx, r.key(token.Series), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save remember-me record: %w", err)
	}
	return nil
}

func (r *RememberMeRepository) Get(ctx context.Context, series string) (*domain.RememberMeToken, error) {
	data, err := r.client.Get(ctx, r.key(series)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, rememberme.ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get remember-me record: %w", err)
	}

	var rec rememberMeRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode remember-me record: %w", err)
	}
	return &domain.RememberMeToken{
		Series:   series,
		Token:    rec.Token,
		Username: rec.Username,
		LastUsed: time.Unix(rec.LastUsed, 0).UTC(),
	}, nil
}

// Rotate swaps the token value for a series under a WATCH transaction so two
// concurrent presentations of the same pair cannot both rotate it.
func (r *RememberMeRepository) Rotate(ctx context.Context, series, oldToken, newToken string, ttl time.Duration) error {
	const maxRetries = 4
	key := r.key(series)

	for i := 0; i < maxRetries; i++ {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return rememberme.ErrSeriesNotFound
			}
			if err != nil {
				return err
			}

			var rec rememberMeRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			if rec.Token != oldToken {
				return rememberme.ErrTokenMismatch
			}

			rec.Token = newToken
			rec.LastUsed = time.Now().UTC().Unix()
			payload, err := json.Marshal(rec)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, payload, ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue // key changed under us, retry the compare
		}
		return err
	}
	return rememberme.ErrTokenMismatch
}

func (r *RememberMeRepository) Delete(ctx context.Context, series string) error {
	if err := r.client.Del(ctx, r.key(series)).Err(); err != nil {
		return fmt.Errorf("delete remember-me record: %w", err)
	}
	return nil
}

func (r *RememberMeRepository) key(series string) string {
	return rememberMeKeyPrefix + series
}
