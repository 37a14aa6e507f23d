package visitor

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignsNewVisitorWhenTokenMissing(t *testing.T) {
	p := NewProvider("")

	id, err := p.GetOrAssign("")
	require.NoError(t, err)
	assert.True(t, id.Issued)
	assert.Equal(t, id.VisitorID, id.Token)
	_, err = uuid.Parse(id.VisitorID)
	assert.NoError(t, err)

	other, err := p.GetOrAssign("")
	require.NoError(t, err)
	assert.NotEqual(t, id.VisitorID, other.VisitorID)
}

func TestValidTokenIsReturnedUnchanged(t *testing.T) {
	p := NewProvider("")
	existing := uuid.NewString()

	id, err := p.GetOrAssign(existing)
	require.NoError(t, err)
	assert.False(t, id.Issued)
	assert.Equal(t, existing, id.VisitorID)
	assert.Equal(t, existing, id.Token)
}

func TestInvalidTokenIsReplaced(t *testing.T) {
	p := NewProvider("")

	id, err := p.GetOrAssign("not-a-uuid")
	require.NoError(t, err)
	assert.True(t, id.Issued)
	assert.NotEqual(t, "not-a-uuid", id.VisitorID)
}

func TestSignedTokens(t *testing.T) {
	p := NewProvider("s3cret")

	id, err := p.GetOrAssign("")
	require.NoError(t, err)
	require.True(t, id.Issued)
	assert.NotEqual(t, id.VisitorID, id.Token)

	again, err := p.GetOrAssign(id.Token)
	require.NoError(t, err)
	assert.False(t, again.Issued)
	assert.Equal(t, id.VisitorID, again.VisitorID)

	// A bare UUID is not accepted once signing is enabled.
	_, err = p.Parse(id.VisitorID)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Nor is a token signed with another secret.
	forged, err := NewProvider("other").GetOrAssign("")
	require.NoError(t, err)
	_, err = p.Parse(forged.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSignedTokenExpires(t *testing.T) {
	p := NewProvider("s3cret")
	issuedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return issuedAt }

	id, err := p.GetOrAssign("")
	require.NoError(t, err)

	p.now = func() time.Time { return issuedAt.Add(TokenTTL + time.Hour) }
	renewed, err := p.GetOrAssign(id.Token)
	require.NoError(t, err)
	assert.True(t, renewed.Issued)
	assert.NotEqual(t, id.VisitorID, renewed.VisitorID)
}

func TestCookieAttributes(t *testing.T) {
	c := Cookie(Identity{VisitorID: "v", Token: "tok"}, true)

	assert.Equal(t, CookieName, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.Equal(t, "/", c.Path)
	assert.Equal(t, 31536000, c.MaxAge)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)

	assert.False(t, Cookie(Identity{Token: "tok"}, false).Secure)
}
