package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/dmitrijs2005/securevault/internal/logging"
	"github.com/dmitrijs2005/securevault/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionFixture(t *testing.T) (*testEnv, *SessionService, *models.Session) {
	t.Helper()
	e := newTestEnv(t)
	s := NewSessionService(e.db, e.repos, e.audit, logging.Nop())
	sess, err := createSession(context.Background(), e.repos.s,
		&models.User{ID: "u-1", UserName: "alice"}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return e, s, sess
}

func intp(v int) *int { return &v }

func TestAuthenticate(t *testing.T) {
	e, s, sess := newSessionFixture(t)

	got, err := s.Authenticate(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = s.Authenticate(context.Background(), "")
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = s.Authenticate(context.Background(), "unknown")
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	expired, err := createSession(context.Background(), e.repos.s,
		&models.User{ID: "u-1", UserName: "alice"}, time.Now().Add(-time.Second))
	require.NoError(t, err)
	_, err = s.Authenticate(context.Background(), expired.Token)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Equal(t, []string{EventSessionExpired}, e.repos.al.events())
}

func TestReportThreat_EscalatesToLockdown(t *testing.T) {
	e, s, sess := newSessionFixture(t)
	ctx := context.Background()

	st, err := s.ReportThreat(ctx, sess, "DEVTOOLS_OPEN", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ThreatLevel)
	assert.False(t, st.IsLockedDown)

	st, err = s.ReportThreat(ctx, sess, "HONEY_TOKEN_ACCESSED", "item i-1", intp(2))
	require.NoError(t, err)
	assert.Equal(t, 3, st.ThreatLevel)
	assert.True(t, st.IsLockedDown)

	// lockdown is sticky
	st, err = s.ReportThreat(ctx, sess, "NOISE", "", intp(0))
	require.NoError(t, err)
	assert.Equal(t, 3, st.ThreatLevel)
	assert.True(t, st.IsLockedDown)

	last := e.repos.al.last()
	assert.Equal(t, "THREAT_DETECTED: NOISE", last.Event)
	assert.Equal(t, 0, last.Metadata["severity"])
}

func TestReportThreat_Validation(t *testing.T) {
	_, s, sess := newSessionFixture(t)

	_, err := s.ReportThreat(context.Background(), sess, "X", "", intp(-1))
	require.ErrorIs(t, err, common.ErrorValidation)

	_, err = s.ReportThreat(context.Background(), sess, "", "", nil)
	require.ErrorIs(t, err, common.ErrorValidation)
}

func TestReportThreat_AuditedBeforeUpdate(t *testing.T) {
	e, s, sess := newSessionFixture(t)
	e.repos.s.addErr = errors.New("db error: gone")

	_, err := s.ReportThreat(context.Background(), sess, "X", "", nil)
	require.Error(t, err)
	assert.Equal(t, "THREAT_DETECTED: X", e.repos.al.last().Event)
}

func TestReportThreat_ConcurrentReportsAreNotLost(t *testing.T) {
	e, s, sess := newSessionFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.ReportThreat(context.Background(), sess, "X", "", nil)
		}()
	}
	wg.Wait()

	got, err := e.repos.s.GetByToken(context.Background(), sess.Token)
	require.NoError(t, err)
	assert.Equal(t, 20, got.ThreatLevel)
	assert.True(t, got.IsLockedDown)
}

func TestStatus(t *testing.T) {
	_, s, sess := newSessionFixture(t)
	st := s.Status(context.Background(), sess)
	assert.Equal(t, sess.ExpiresAt, st.ExpiresAt)
	assert.Equal(t, 0, st.ThreatLevel)
}
