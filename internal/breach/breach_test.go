package breach

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digest(pw string) (string, string) {
	sum := sha1.Sum([]byte(pw))
	d := strings.ToUpper(hex.EncodeToString(sum[:]))
	return d[:5], d[5:]
}

func noWait() backoff.BackOff { return &backoff.ZeroBackOff{} }

func TestCheck_FindsSuffix(t *testing.T) {
	prefix, suffix := digest("password")
	var gotPath, gotPadding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPadding = r.Header.Get("Add-Padding")
		fmt.Fprintf(w, "0018A45C4D1DEF81644B54AB7F969B88D65:1\r\n%s:3861493\r\nFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF:0\r\n", suffix)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithBackOff(noWait))
	n, err := c.Check(context.Background(), "password")
	require.NoError(t, err)
	assert.Equal(t, 3861493, n)
	assert.Equal(t, "/range/"+prefix, gotPath)
	assert.Equal(t, "true", gotPadding)
}

func TestCheck_NotFoundAndEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "0018A45C4D1DEF81644B54AB7F969B88D65:1\n")
	}))
	defer srv.Close()
	c := NewClient(srv.URL, WithBackOff(noWait))

	n, err := c.Check(context.Background(), "a very unusual passphrase")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = c.Check(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRange_SkipsPaddingLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "AAA:2\nBBB:0\ngarbage\n\nccc:5\n")
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, WithBackOff(noWait)).Range(context.Background(), "abcde")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"AAA", 2}, {"CCC", 5}}, got)
}

func TestRange_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "AAA:1\n")
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, WithBackOff(noWait)).Range(context.Background(), "ABCDE")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRange_GivesUpAsUpstreamError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithBackOff(noWait)).Range(context.Background(), "ABCDE")
	assert.ErrorIs(t, err, common.ErrorUpstream)
	assert.EqualValues(t, maxTries, calls.Load())
}

func TestRange_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, WithBackOff(noWait)).Range(context.Background(), "ABCDE")
	assert.ErrorIs(t, err, common.ErrorUpstream)
	assert.EqualValues(t, 1, calls.Load())
}

func TestNormalizePrefix(t *testing.T) {
	p, err := NormalizePrefix(" abc12 ")
	require.NoError(t, err)
	assert.Equal(t, "ABC12", p)

	for _, bad := range []string{"", "ABCD", "ABCDEF", "GHIJK"} {
		_, err := NormalizePrefix(bad)
		assert.ErrorIs(t, err, common.ErrorValidation, bad)
	}
}

type fakeRanger struct {
	prefix  string
	entries []Entry
	err     error
}

func (f *fakeRanger) Range(_ context.Context, prefix string) ([]Entry, error) {
	f.prefix = prefix
	return f.entries, f.err
}

func TestHashCount_OnlyPrefixLeaves(t *testing.T) {
	prefix, suffix := digest("hunter2")
	r := &fakeRanger{entries: []Entry{{Suffix: suffix, Count: 17}}}
	n, err := HashCount(context.Background(), r, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, 17, n)
	assert.Equal(t, prefix, r.prefix)

	r.err = common.ErrorUpstream
	_, err = HashCount(context.Background(), r, "hunter2")
	assert.ErrorIs(t, err, common.ErrorUpstream)
}
