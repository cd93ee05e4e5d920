package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDuelsServer(t *testing.T) (*httptest.Server, *string) {
	t.Helper()
	var lastQuery string

	d := &duel.State{
		ID:        "7xKXtg2CW87d97TX",
		A:         duel.TokenSide{Symbol: "DOGE", Raised: 3 * duel.LamportsPerSOL},
		B:         duel.TokenSide{Symbol: "CAT", Raised: duel.LamportsPerSOL / 2},
		Target:    duel.DefaultTargetLamports,
		Active:    true,
		CreatedAt: time.Now().Add(-time.Minute).UnixMilli(),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/duels":
			lastQuery = r.URL.RawQuery
			json.NewEncoder(w).Encode([]*duel.State{d})
		case "/api/duels/" + d.ID:
			json.NewEncoder(w).Encode(d)
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"duel not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &lastQuery
}

func TestDuels_Table(t *testing.T) {
	srv, lastQuery := newDuelsServer(t)

	stdout, _, err := execute(t, "duels", "--server", srv.URL, "--active", "--symbol", "DOG*")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Duels on "+srv.URL)
	assert.Contains(t, stdout, "7xKXtg2C")
	assert.Contains(t, stdout, "$DOGE")
	assert.Contains(t, stdout, "LIVE")
	assert.Contains(t, stdout, "1 duel found")
	assert.Equal(t, "active=true&symbol=DOG%2A", *lastQuery)
}

func TestDuels_JSONL(t *testing.T) {
	srv, lastQuery := newDuelsServer(t)

	stdout, _, err := execute(t, "duels", "--server", srv.URL, "--since", "2h", "-o", "jsonl")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 1)
	var d duel.State
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &d))
	assert.Equal(t, "DOGE", d.A.Symbol)
	assert.Contains(t, *lastQuery, "since=")
}

func TestDuels_Single(t *testing.T) {
	srv, _ := newDuelsServer(t)

	stdout, _, err := execute(t, "duels", "--server", srv.URL, "7xKXtg2CW87d97TX")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"id": "7xKXtg2CW87d97TX"`)

	_, stderr, err := execute(t, "duels", "--server", srv.URL, "missing")
	require.Error(t, err)
	assert.Equal(t, "duel not found", err.Error())
	assert.Contains(t, stderr, "does not know duel missing")
}

func TestDuels_ShortID(t *testing.T) {
	srv, _ := newDuelsServer(t)

	stdout, _, err := execute(t, "duels", "--server", srv.URL, "7xKXtg2C")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"id": "7xKXtg2CW87d97TX"`)

	_, stderr, err := execute(t, "duels", "--server", srv.URL, "7xK")
	require.Error(t, err)
	assert.Equal(t, "duel not found", err.Error())
	assert.Contains(t, stderr, "does not know duel 7xK")
}

func TestDuels_InvalidInput(t *testing.T) {
	srv, _ := newDuelsServer(t)

	tests := []struct {
		name string
		args []string
		err  string
	}{
		{"bad format", []string{"duels", "--server", srv.URL, "-o", "xml"}, "invalid output format"},
		{"bad since", []string{"duels", "--server", srv.URL, "--since", "yesterday"}, "invalid time filter"},
		{"inverted range", []string{"duels", "--server", srv.URL, "--since", "1h", "--until", "2h"}, "invalid time filter"},
		{"bad server", []string{"duels", "--server", "localhost"}, "invalid server URL"},
		{"too many args", []string{"duels", "a", "b"}, "accepts at most 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.err)
		})
	}
}

func TestDuels_ServerDown(t *testing.T) {
	srv, _ := newDuelsServer(t)
	url := srv.URL
	srv.Close()

	_, stderr, err := execute(t, "duels", "--server", url)
	require.Error(t, err)
	assert.Equal(t, "request failed", err.Error())
	assert.Contains(t, stderr, "Server: "+url)
}
