package passkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	ChallengePrefix = "securevault:passkey:ceremony:"
	ChallengeTTL    = 5 * time.Minute
)

// Ceremony is the server-side state of an in-flight ceremony.
type Ceremony struct {
	UserID  string               `json:"userId"`
	Session webauthn.SessionData `json:"session"`
}

// ChallengeStore keeps ceremony state in redis. Each entry can be taken once.
type ChallengeStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewChallengeStore(client redis.Cmdable, ttl time.Duration) *ChallengeStore {
	if ttl == 0 {
		ttl = ChallengeTTL
	}
	return &ChallengeStore{client: client, prefix: ChallengePrefix, ttl: ttl}
}

// Put stores c under a new ceremony id.
func (s *ChallengeStore) Put(ctx context.Context, c *Ceremony) (string, error) {
	if c == nil || c.Session.Challenge == "" {
		return "", fmt.Errorf("%w: empty ceremony", common.ErrorValidation)
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal ceremony: %w", err)
	}
	id := uuid.NewString()
	if err := s.client.Set(ctx, s.prefix+id, data, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store ceremony: %w", err)
	}
	return id, nil
}

// Take returns and deletes the ceremony. A missing or expired entry is
// ErrorUnauthorized.
func (s *ChallengeStore) Take(ctx context.Context, id string) (*Ceremony, error) {
	if id == "" {
		return nil, common.ErrorUnauthorized
	}
	data, err := s.client.GetDel(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("load ceremony: %w", err)
	}
	var c Ceremony
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal ceremony: %w", err)
	}
	return &c, nil
}
