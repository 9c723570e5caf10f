package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rosterbot/internal/model"
)

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "valid", input: "14:00-16:00", want: "14:00-16:00"},
		{name: "padded", input: " 9:30-11:00 ", want: "09:30-11:00"},
		{name: "start after end", input: "16:00-14:00", wantErr: true},
		{name: "empty range", input: "14:00-14:00", wantErr: true},
		{name: "no separator", input: "14:00", wantErr: true},
		{name: "bad hour", input: "25:00-26:00", wantErr: true},
		{name: "bad minutes", input: "14:0-16:00", wantErr: true},
		{name: "garbage", input: "noon-later", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimeRange(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidTimeRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParseCapacity(t *testing.T) {
	n, err := ParseCapacity(" 6 ")
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	for _, bad := range []string{"0", "-1", "six", ""} {
		_, err := ParseCapacity(bad)
		assert.ErrorIs(t, err, model.ErrInvalidCapacity, bad)
	}
}

func TestParseNames(t *testing.T) {
	assert.Equal(t, []string{"Ivan", "Peter", "Elena"}, ParseNames("Ivan, Peter, Elena"))
	assert.Equal(t, []string{"Anna Maria"}, ParseNames(" , Anna Maria ,,"))
	assert.Empty(t, ParseNames("  "))
}

func TestParseToggle(t *testing.T) {
	on, err := ParseToggle("ON")
	require.NoError(t, err)
	assert.True(t, on)

	off, err := ParseToggle("off")
	require.NoError(t, err)
	assert.False(t, off)

	_, err = ParseToggle("maybe")
	assert.Error(t, err)
}

func TestParseSlot(t *testing.T) {
	r, capacity, err := ParseSlot("12:00-14:00/8", 6)
	require.NoError(t, err)
	assert.Equal(t, "12:00-14:00", r.String())
	assert.Equal(t, 8, capacity)

	_, capacity, err = ParseSlot("12:00-14:00", 6)
	require.NoError(t, err)
	assert.Equal(t, 6, capacity)

	_, _, err = ParseSlot("12:00-14:00/0", 6)
	assert.ErrorIs(t, err, model.ErrInvalidCapacity)
}
