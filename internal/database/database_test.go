package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeromeabel/lapreuveduconcept/internal/visitor"
)

func TestSeedVisitorsAreValidCookies(t *testing.T) {
	p := visitor.NewProvider("")
	for _, v := range SeedVotes {
		id, err := p.Parse(v.VisitorID)
		require.NoError(t, err, v.VisitorID)
		assert.Equal(t, v.VisitorID, id)

		ident, err := p.GetOrAssign(v.VisitorID)
		require.NoError(t, err)
		assert.False(t, ident.Issued, "seeded visitor %s must be reused, not replaced", v.VisitorID)
	}
}
