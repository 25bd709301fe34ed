package script

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"switchhatch/internal/sequencer"
)

func TestDefaultTable_Lookup(t *testing.T) {
	tbl := DefaultTable()

	tm, err := tbl.Lookup(129)
	require.NoError(t, err)
	assert.Equal(t, sequencer.Timing{BaseCycles: 1285}, tm)

	_, err = tbl.Lookup(9999)
	assert.True(t, errors.Is(err, ErrUnknownSpecies), "err = %v", err)

	all := tbl.All()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Dex, all[i].Dex)
	}
	for _, s := range all {
		assert.Zero(t, s.BaseCycles%257, "%s base cycles not a whole cycle count", s.Name)
	}
}

func TestTable_WithHalving(t *testing.T) {
	tbl := DefaultTable()

	tm, err := tbl.WithHalving(true).Timing(1)
	require.NoError(t, err)
	assert.True(t, tm.Halved)
	assert.Equal(t, 5140, tm.BaseCycles)

	tm, err = tbl.WithHalving(false).Timing(1)
	require.NoError(t, err)
	assert.False(t, tm.Halved)

	_, err = tbl.WithHalving(true).Timing(0)
	assert.ErrorIs(t, err, ErrUnknownSpecies)
}

func TestLoadTable_Rejects(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"zero dex", "species:\n  - {dex: 0, name: x, base_cycles: 257}\n"},
		{"zero cycles", "species:\n  - {dex: 1, name: x, base_cycles: 0}\n"},
		{"duplicate", "species:\n  - {dex: 1, name: a, base_cycles: 257}\n  - {dex: 1, name: b, base_cycles: 514}\n"},
		{"unknown field", "species:\n  - {dex: 1, name: a, cycles: 1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTable(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}
