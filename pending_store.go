package authkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingLoginKeyPrefix = "plc"

var (
	errPendingChallengeNotFound = errors.New("pending challenge not found")
	errPendingChallengeExpired  = errors.New("pending challenge expired")
	errPendingChallengeBackend  = errors.New("pending challenge backend unavailable")
)

// pendingLogin is the second-factor challenge record. The challenge token
// under which it is stored is the only handle; the uid inside is never
// accepted as factor-1 proof on its own.
type pendingLogin struct {
	UID       string `json:"uid"`
	Method    string `json:"method"`
	ExpiresAt int64  `json:"exp"`
	Attempts  int    `json:"attempts"`
}

type pendingLoginStore struct {
	redis *redis.Client
}

func newPendingLoginStore(redisClient *redis.Client) *pendingLoginStore {
	return &pendingLoginStore{redis: redisClient}
}

func (s *pendingLoginStore) key(token string) string {
	return pendingLoginKeyPrefix + ":" + token
}

func (s *pendingLoginStore) Save(ctx context.Context, token string, record *pendingLogin, ttl time.Duration) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(token), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errPendingChallengeBackend, err)
	}
	return nil
}

func (s *pendingLoginStore) Get(ctx context.Context, token string) (*pendingLogin, error) {
	data, err := s.redis.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errPendingChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", errPendingChallengeBackend, err)
	}

	record := &pendingLogin{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(token)).Result()
		return nil, errPendingChallengeExpired
	}
	return record, nil
}

// Consume deletes the challenge and reports whether this call was the one
// that removed it. A false result with a nil error means another call got
// there first.
func (s *pendingLoginStore) Consume(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", errPendingChallengeBackend, err)
	}
	return n > 0, nil
}

// RecordFailure increments the attempt counter under WATCH so concurrent
// completions cannot undercount. It reports true when the cap is reached,
// in which case the challenge is deleted in the same transaction.
func (s *pendingLoginStore) RecordFailure(ctx context.Context, token string, maxAttempts int) (bool, error) {
	const maxRetries = 4
	key := s.key(token)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record := &pendingLogin{}
			if err := json.Unmarshal(data, record); err != nil {
				return err
			}
			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errPendingChallengeExpired
			}

			record.Attempts++
			if record.Attempts >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errPendingChallengeExpired
			}

			updated, err := json.Marshal(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, errPendingChallengeNotFound
			}
			if errors.Is(err, errPendingChallengeExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", errPendingChallengeBackend, err)
		}
		return exceeded, nil
	}

	return false, errPendingChallengeNotFound
}
