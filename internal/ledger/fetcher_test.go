package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPFetcher(t *testing.T) {
	_, err := NewHTTPFetcher("not a url", time.Second)
	assert.Error(t, err)

	f, err := NewHTTPFetcher("http://ledger.local/", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "http://ledger.local", f.baseURL)
}

func TestHTTPFetcherFetchState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/duels/D1":
			json.NewEncoder(w).Encode(duel.State{ID: "D1", Target: 85, Active: true, A: duel.TokenSide{Raised: 86}})
		case "/duels/wrong":
			json.NewEncoder(w).Encode(duel.State{ID: "other", Target: 85})
		case "/duels/garbage":
			w.Write([]byte("{"))
		case "/duels/down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f, err := NewHTTPFetcher(srv.URL, time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("decodes snapshot", func(t *testing.T) {
		state, err := f.FetchState(ctx, "D1")
		require.NoError(t, err)
		assert.Equal(t, uint64(86), state.A.Raised)
	})

	t.Run("404 maps to ErrNotFound", func(t *testing.T) {
		_, err := f.FetchState(ctx, "missing")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("non-2xx is transient", func(t *testing.T) {
		_, err := f.FetchState(ctx, "down")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNotFound))
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("malformed body is an error", func(t *testing.T) {
		_, err := f.FetchState(ctx, "garbage")
		assert.Error(t, err)
	})

	t.Run("mismatched id is rejected", func(t *testing.T) {
		_, err := f.FetchState(ctx, "wrong")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "returned duel")
	})
}

func TestFetcherFunc(t *testing.T) {
	var f Fetcher = FetcherFunc(func(ctx context.Context, id string) (*duel.State, error) {
		return &duel.State{ID: id}, nil
	})
	state, err := f.FetchState(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, "X", state.ID)
}
