package listing

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDuels() []*duel.State {
	live := &duel.State{
		ID:        "0f8e2c1a-aaaa-bbbb-cccc-000000000001",
		A:         duel.TokenSide{Symbol: "FOO", Raised: 12 * duel.LamportsPerSOL},
		B:         duel.TokenSide{Symbol: "BAR", Raised: duel.LamportsPerSOL / 4},
		Target:    duel.DefaultTargetLamports,
		Active:    true,
		CreatedAt: time.Now().Add(-5 * time.Minute).UnixMilli(),
	}
	won := &duel.State{
		ID:        "D2",
		A:         duel.TokenSide{Symbol: "ZAP", Raised: 86 * duel.LamportsPerSOL},
		B:         duel.TokenSide{Symbol: "ZIP"},
		Target:    duel.DefaultTargetLamports,
		Winner:    duel.SideA,
		CreatedAt: time.Now().Add(-3 * time.Hour).UnixMilli(),
	}
	return []*duel.State{live, won}
}

func TestFormatTable(t *testing.T) {
	buf := &bytes.Buffer{}
	n := FormatTable(buf, sampleDuels(), "http://localhost:8080")
	assert.Equal(t, 2, n)

	out := buf.String()
	assert.Contains(t, out, "Duels on http://localhost:8080:")
	assert.Contains(t, out, "0f8e2c1a ")
	assert.NotContains(t, out, "0f8e2c1a-aaaa")
	assert.Contains(t, out, "LIVE")
	assert.Contains(t, out, "WON A")
	assert.Contains(t, out, "$FOO")
	assert.Contains(t, out, "0.25")
	assert.Contains(t, out, "5m ago")
	assert.Contains(t, out, "3h ago")
	assert.Contains(t, out, "2 duels found")
}

func TestFormatTable_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	assert.Equal(t, 0, FormatTable(buf, nil, "srv"))
	assert.Equal(t, "No duels found on srv\n", buf.String())
}

func TestFormatJSONL(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, FormatJSONL(buf, sampleDuels()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var d duel.State
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &d))
	assert.Equal(t, "D2", d.ID)
	assert.Equal(t, duel.SideA, d.Winner)
}

func TestFormatSingleJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, FormatSingleJSON(buf, sampleDuels()[1]))
	assert.Contains(t, buf.String(), "\n  \"id\": \"D2\"")
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "short", formatID("short"))
	assert.Equal(t, "-", formatSymbol(""))
	assert.Equal(t, "-", formatTimestamp(0))
	assert.Equal(t, "ENDED", formatStatus(&duel.State{}))
	assert.Equal(t, "2d ago", formatTimestamp(time.Now().Add(-49*time.Hour).UnixMilli()))
}
