package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/filter"
	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticLister struct {
	ids []string
	err error
}

func (l staticLister) ListDuels(_ context.Context, _ filter.Criteria) ([]*duel.State, error) {
	if l.err != nil {
		return nil, l.err
	}
	out := make([]*duel.State, 0, len(l.ids))
	for _, id := range l.ids {
		out = append(out, &duel.State{ID: id})
	}
	return out, nil
}

func TestResolveDuelID(t *testing.T) {
	lister := staticLister{ids: []string{
		"7xKXtg2CW87d97TX",
		"7xKXtg2CW87d97TXextra",
		"9aBcDeFgHiJk",
		"9aBcDeZZZZZZ",
	}}
	ctx := context.Background()

	id, err := ResolveDuelID(ctx, lister, "9aBcDeF")
	require.NoError(t, err)
	assert.Equal(t, "9aBcDeFgHiJk", id)

	// Exact match beats a longer ID with the same prefix
	id, err = ResolveDuelID(ctx, lister, "7xKXtg2CW87d97TX")
	require.NoError(t, err)
	assert.Equal(t, "7xKXtg2CW87d97TX", id)

	_, err = ResolveDuelID(ctx, lister, "9aBcDe")
	var ambiguous *AmbiguousError
	require.True(t, errors.As(err, &ambiguous))
	assert.Len(t, ambiguous.Matches, 2)
	assert.Contains(t, err.Error(), "matches 2 duels")

	_, err = ResolveDuelID(ctx, lister, "zzzzzz")
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "zzzzzz", notFound.ShortID)

	_, err = ResolveDuelID(ctx, lister, "7xK")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 6 characters")
}

func TestResolveDuelID_ListFailure(t *testing.T) {
	_, err := ResolveDuelID(context.Background(), staticLister{err: errors.New("boom")}, "abcdef")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestAmbiguousError_FormatMatches(t *testing.T) {
	e := &AmbiguousError{ShortID: "abcdef", Matches: []string{"abcdef1", "abcdef2"}}
	assert.Equal(t, "  abcdef1\n  abcdef2\n", e.FormatMatches())

	var many []string
	for i := 0; i < 12; i++ {
		many = append(many, fmt.Sprintf("abcdef%02d", i))
	}
	out := (&AmbiguousError{ShortID: "abcdef", Matches: many}).FormatMatches()
	assert.Contains(t, out, "  abcdef09\n")
	assert.NotContains(t, out, "abcdef10")
	assert.Contains(t, out, "...and 2 more")
}
