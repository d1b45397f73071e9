package otpx

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrol(t *testing.T) {
	en, err := Enrol("SecureVault", "alice")
	require.NoError(t, err)

	assert.NotEmpty(t, en.Secret)
	assert.True(t, strings.HasPrefix(en.URI, "otpauth://totp/SecureVault:alice?"), en.URI)
	assert.Contains(t, en.URI, "secret="+en.Secret)
	assert.True(t, bytes.HasPrefix(en.QRPNG, []byte("\x89PNG")))
}

func TestVerify_Window(t *testing.T) {
	en, err := Enrol("SecureVault", "bob")
	require.NoError(t, err)
	now := time.Date(2026, 7, 1, 10, 0, 15, 0, time.UTC)

	code, err := Code(en.Secret, now)
	require.NoError(t, err)
	assert.True(t, Verify(en.Secret, code, now))
	assert.True(t, Verify(en.Secret, " "+code+" ", now))

	prev, err := Code(en.Secret, now.Add(-Period*time.Second))
	require.NoError(t, err)
	assert.True(t, Verify(en.Secret, prev, now))

	old, err := Code(en.Secret, now.Add(-3*Period*time.Second))
	require.NoError(t, err)
	if old != code && old != prev {
		assert.False(t, Verify(en.Secret, old, now))
	}
}

func TestVerify_Rejects(t *testing.T) {
	en, err := Enrol("SecureVault", "carol")
	require.NoError(t, err)
	now := time.Now()

	assert.False(t, Verify("", "123456", now))
	assert.False(t, Verify(en.Secret, "12345", now))
	assert.False(t, Verify(en.Secret, "abcdef", now))
}
