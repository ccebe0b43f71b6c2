package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndDecode(t *testing.T) {
	svc := New("test-secret-123")

	token, err := svc.Issue("member-ext-1", "member", 3, true, time.Minute)
	require.NoError(t, err)

	claims, err := svc.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "member-ext-1", claims.Subject)
	assert.Equal(t, "member", claims.Role)
	assert.Equal(t, 3, claims.TokenVersion)
	assert.True(t, claims.KeepAlive)
}

func TestIssue_DistinctPerMint(t *testing.T) {
	svc := New("test-secret-123")

	// Same member, same claims, back to back within one second: the tokens
	// must still differ, or their storage hashes would collide on rotation.
	first, err := svc.Issue("member-ext-1", "member", 1, false, time.Minute)
	require.NoError(t, err)
	second, err := svc.Issue("member-ext-1", "member", 1, false, time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	firstClaims, err := svc.Decode(first)
	require.NoError(t, err)
	secondClaims, err := svc.Decode(second)
	require.NoError(t, err)
	assert.NotEmpty(t, firstClaims.ID)
	assert.NotEqual(t, firstClaims.ID, secondClaims.ID)
}

func TestDecode_Expired(t *testing.T) {
	svc := New("test-secret-123")

	token, err := svc.Issue("member-ext-1", "member", 1, false, -time.Minute)
	require.NoError(t, err)

	_, err = svc.Decode(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestDecode_WrongSecret(t *testing.T) {
	issued, err := New("secret-a").Issue("member-ext-1", "member", 1, false, time.Minute)
	require.NoError(t, err)

	_, err = New("secret-b").Decode(issued)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecode_Garbage(t *testing.T) {
	svc := New("test-secret-123")

	_, err := svc.Decode("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = svc.Decode("")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecode_TamperedPayload(t *testing.T) {
	svc := New("test-secret-123")

	token, err := svc.Issue("member-ext-1", "member", 1, false, time.Minute)
	require.NoError(t, err)

	tampered := token[:len(token)-4] + "aaaa"
	_, err = svc.Decode(tampered)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
