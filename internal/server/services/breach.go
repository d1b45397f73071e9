package services

import (
	"context"

	"github.com/dmitrijs2005/securevault/internal/breach"
)

// BreachService proxies k-anonymity range queries so clients never talk to
// the upstream directly.
type BreachService struct {
	ranger breach.Ranger
}

func NewBreachService(r breach.Ranger) *BreachService {
	return &BreachService{ranger: r}
}

// Range validates prefix (five hex characters) and returns the upstream
// suffix list.
func (s *BreachService) Range(ctx context.Context, prefix string) ([]breach.Entry, error) {
	p, err := breach.NormalizePrefix(prefix)
	if err != nil {
		return nil, err
	}
	return s.ranger.Range(ctx, p)
}
