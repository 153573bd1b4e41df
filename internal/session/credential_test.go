package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_Validate(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name    string
		cred    *Credential
		wantErr bool
	}{
		{name: "nil", cred: nil, wantErr: true},
		{name: "empty cookie", cred: &Credential{ExpiresAt: now.Add(time.Hour)}, wantErr: true},
		{name: "valid", cred: &Credential{Cookie: "MUSIC_U=abc", ExpiresAt: now.Add(time.Hour)}},
		{name: "no expiry", cred: &Credential{Cookie: "MUSIC_U=abc"}},
		{name: "expired", cred: &Credential{Cookie: "MUSIC_U=abc", ExpiresAt: now.Add(-time.Second)}, wantErr: true},
		{name: "expires now", cred: &Credential{Cookie: "MUSIC_U=abc", ExpiresAt: now}, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cred.Validate(now)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrNotAuthenticated)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewCredential(t *testing.T) {
	cred := NewCredential("  MUSIC_U=abc  ", 72*time.Hour)

	assert.Equal(t, "MUSIC_U=abc", cred.Cookie)
	assert.WithinDuration(t, cred.IssuedAt.Add(72*time.Hour), cred.ExpiresAt, time.Millisecond)
	assert.Equal(t, "MUSIC_U=abc", cred.CookieOrEmpty())

	var missing *Credential
	assert.Equal(t, "", missing.CookieOrEmpty())
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	cred := NewCredential("c", time.Hour)
	got, ok := FromContext(WithCredential(context.Background(), cred))
	require.True(t, ok)
	assert.Same(t, cred, got)
}

func TestTokenCodec_IssueAndParse(t *testing.T) {
	codec, err := NewTokenCodec("test-secret")
	require.NoError(t, err)

	cred := NewCredential("MUSIC_U=abc; __csrf=xyz", time.Hour)
	token, err := codec.Issue(cred)
	require.NoError(t, err)

	parsed, err := codec.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, cred.Cookie, parsed.Cookie)
	assert.WithinDuration(t, cred.ExpiresAt, parsed.ExpiresAt, time.Second)
}

func TestTokenCodec_Rejects(t *testing.T) {
	codec, err := NewTokenCodec("test-secret")
	require.NoError(t, err)
	other, err := NewTokenCodec("other-secret")
	require.NoError(t, err)

	token, err := codec.Issue(NewCredential("MUSIC_U=abc", time.Hour))
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := codec.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("expired", func(t *testing.T) {
		late := *codec
		late.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := late.Parse(token)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("issue invalid credential", func(t *testing.T) {
		_, err := codec.Issue(&Credential{})
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
}

func TestTokenCodec_RandomSecret(t *testing.T) {
	a, err := NewTokenCodec("")
	require.NoError(t, err)
	b, err := NewTokenCodec("")
	require.NoError(t, err)

	token, err := a.Issue(NewCredential("c", time.Hour))
	require.NoError(t, err)

	_, err = a.Parse(token)
	assert.NoError(t, err)
	_, err = b.Parse(token)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}
