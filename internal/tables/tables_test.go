package tables

import (
	"testing"

	"github.com/coreengine/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTables(t *testing.T) *Tables {
	t.Helper()
	cfg := config.Default().Tables
	cfg.Devices = append(cfg.Devices, config.DeviceEntry{Name: "Living Room Light", Kernel: "D9"})
	tbl, err := New(cfg)
	require.NoError(t, err)
	return tbl
}

func TestNewBuildsTables(t *testing.T) {
	tbl := newTestTables(t)

	assert.Len(t, tbl.Devices, 6)
	assert.Equal(t, Device{DevName: "living room light", KernelName: "D9"}, tbl.Devices[5])
	assert.Equal(t, Keywords{CmdName: "on", State: "HIGH"}, tbl.Keys[0])
	assert.Equal(t, Direction{DirName: "forward", DirValue: "F"}, tbl.Dir[0])
	assert.Equal(t, CMD{CmdName: "go", State: "RUN"}, tbl.Cmd[0])
}

func TestNewRejectsBadEntries(t *testing.T) {
	cfg := config.Default().Tables
	cfg.Keywords = append(cfg.Keywords, config.KeywordEntry{Name: "ON", State: "HIGH"})
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate keyword")

	cfg = config.Default().Tables
	cfg.Directions = append(cfg.Directions, config.DirectionEntry{Name: "up"})
	_, err = New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty name or value")
}

func TestLookup(t *testing.T) {
	tbl := newTestTables(t)

	v, ok := tbl.Lookup(KindDevice, "  FAN ")
	assert.True(t, ok)
	assert.Equal(t, "D2", v)

	v, ok = tbl.Lookup(KindCommand, "stop")
	assert.True(t, ok)
	assert.Equal(t, "HALT", v)

	_, ok = tbl.Lookup(KindKeyword, "fan")
	assert.False(t, ok, "lookups are scoped to one table")
}

func TestMatchPrefixPrefersLongest(t *testing.T) {
	cfg := config.Default().Tables
	cfg.Devices = append(cfg.Devices, config.DeviceEntry{Name: "light strip", Kernel: "D8"})
	tbl, err := New(cfg)
	require.NoError(t, err)

	m, ok := tbl.MatchPrefix([]string{"light", "strip", "on"}, KindDevice, KindKeyword)
	require.True(t, ok)
	assert.Equal(t, Match{Kind: KindDevice, Name: "light strip", Value: "D8", Width: 2}, m)

	m, ok = tbl.MatchPrefix([]string{"light", "on"}, KindDevice, KindKeyword)
	require.True(t, ok)
	assert.Equal(t, "light", m.Name)
	assert.Equal(t, 1, m.Width)

	_, ok = tbl.MatchPrefix([]string{"please"}, KindDevice, KindKeyword)
	assert.False(t, ok)

	_, ok = tbl.MatchPrefix(nil, KindDevice)
	assert.False(t, ok)
}

func TestScanDropsUnknownWords(t *testing.T) {
	tbl := newTestTables(t)

	matches := tbl.Scan(Tokenize("Please turn ON the living room light"), KindDevice, KindKeyword)
	require.Len(t, matches, 2)
	assert.Equal(t, KindKeyword, matches[0].Kind)
	assert.Equal(t, "on", matches[0].Name)
	assert.Equal(t, KindDevice, matches[1].Kind)
	assert.Equal(t, "living room light", matches[1].Name)
	assert.Equal(t, "D9", matches[1].Value)

	// "turn" is a local command word, so it is only seen when asked for
	matches = tbl.Scan(Tokenize("turn left"), KindCommand, KindDirection)
	require.Len(t, matches, 2)
	assert.Equal(t, KindCommand, matches[0].Kind)
	assert.Equal(t, KindDirection, matches[1].Kind)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"   ", []string{}},
		{"ON light", []string{"on", "light"}},
		{"on,light;off:fan", []string{"on", "light", "off", "fan"}},
		{"relay_1 is-on!", []string{"relay_1", "is-on"}},
		{"Lumière ON", []string{"lumière", "on"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestValueSets(t *testing.T) {
	tbl := newTestTables(t)

	assert.Equal(t, []string{"D1", "D2", "D3", "D4", "D5", "D9"}, tbl.KernelNames())
	assert.Equal(t, []string{"HIGH", "LOW"}, tbl.PinStates())
	assert.Equal(t, []string{"B", "F", "L", "R"}, tbl.DirectionValues())
	assert.Equal(t, []string{"HALT", "RUN", "TURN"}, tbl.MotionStates())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "device", KindDevice.String())
	assert.Equal(t, "keyword", KindKeyword.String())
	assert.Equal(t, "direction", KindDirection.String())
	assert.Equal(t, "command", KindCommand.String())
	assert.Equal(t, "none", KindNone.String())
}
