// Package breach queries a k-anonymity password range API. Only the first five
// characters of the SHA-1 digest ever leave the process.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmitrijs2005/securevault/internal/common"
)

const (
	DefaultBaseURL = "https://api.pwnedpasswords.com"
	PrefixLen      = 5
	maxTries       = 3
)

// Entry is one line of a range response.
type Entry struct {
	Suffix string `json:"suffix"`
	Count  int    `json:"count"`
}

// Ranger returns the known hash suffixes for a prefix.
type Ranger interface {
	Range(ctx context.Context, prefix string) ([]Entry, error)
}

// Client talks to the upstream range API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	newBackOff func() backoff.BackOff
	maxTries   uint
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithBackOff replaces the exponential retry schedule.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = f }
}

func WithMaxTries(n uint) Option {
	return func(c *Client) { c.maxTries = n }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
		maxTries: maxTries,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NormalizePrefix upper-cases prefix and checks it is five hex characters.
func NormalizePrefix(prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if len(prefix) != PrefixLen {
		return "", fmt.Errorf("%w: prefix must be %d hex characters", common.ErrorValidation, PrefixLen)
	}
	if _, err := hex.DecodeString(prefix + "0"); err != nil {
		return "", fmt.Errorf("%w: prefix must be hex", common.ErrorValidation)
	}
	return prefix, nil
}

// Range fetches the suffix list for prefix. Network errors, 5xx and 429 are
// retried; anything still failing is reported as ErrorUpstream.
func (c *Client) Range(ctx context.Context, prefix string) ([]Entry, error) {
	prefix, err := NormalizePrefix(prefix)
	if err != nil {
		return nil, err
	}

	op := func() ([]Entry, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/range/"+prefix, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Add-Padding", "true")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
		default:
			return nil, backoff.Permanent(fmt.Errorf("upstream status %d", resp.StatusCode))
		}

		entries, err := parseRange(resp.Body)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return entries, nil
	}

	entries, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: breach range: %v", common.ErrorUpstream, err)
	}
	return entries, nil
}

// Check is a convenience wrapper over HashCount.
func (c *Client) Check(ctx context.Context, password string) (int, error) {
	return HashCount(ctx, c, password)
}

// HashCount returns how often password appears in known breaches, using r
// for the range lookup.
func HashCount(ctx context.Context, r Ranger, password string) (int, error) {
	if password == "" {
		return 0, nil
	}
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:PrefixLen], digest[PrefixLen:]

	entries, err := r.Range(ctx, prefix)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Suffix == suffix {
			return e.Count, nil
		}
	}
	return 0, nil
}

func parseRange(r io.Reader) ([]Entry, error) {
	var out []Entry
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		suffix, countStr, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, Entry{Suffix: strings.ToUpper(suffix), Count: n})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read range: %w", err)
	}
	return out, nil
}
