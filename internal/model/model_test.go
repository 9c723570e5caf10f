package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in      string
		want    ClockTime
		wantErr bool
	}{
		{in: "14:00", want: NewClockTime(14, 0)},
		{in: "9:05", want: NewClockTime(9, 5)},
		{in: " 23:59 ", want: NewClockTime(23, 59)},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "12:5", wantErr: true},
		{in: "1200", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClockTime(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClockTime)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockTimeFormatting(t *testing.T) {
	c := NewClockTime(7, 30)
	assert.Equal(t, 7, c.Hour())
	assert.Equal(t, 30, c.Minute())
	assert.Equal(t, "07:30", c.String())

	data, err := json.Marshal(struct {
		At ClockTime `json:"at"`
	}{At: c})
	require.NoError(t, err)
	assert.JSONEq(t, `{"at":"07:30"}`, string(data))

	var decoded struct {
		At ClockTime `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"18:15"}`), &decoded))
	assert.Equal(t, NewClockTime(18, 15), decoded.At)
	assert.Error(t, json.Unmarshal([]byte(`{"at":"late"}`), &decoded))
}

func TestTimeRangeValidate(t *testing.T) {
	assert.NoError(t, TimeRange{Start: NewClockTime(14, 0), End: NewClockTime(16, 0)}.Validate())
	assert.NoError(t, TimeRange{Start: NewClockTime(22, 0), End: NewClockTime(24, 0)}.Validate())
	assert.ErrorIs(t, TimeRange{Start: NewClockTime(16, 0), End: NewClockTime(14, 0)}.Validate(), ErrInvalidTimeRange)
	assert.ErrorIs(t, TimeRange{Start: NewClockTime(16, 0), End: NewClockTime(16, 0)}.Validate(), ErrInvalidTimeRange)
	assert.Equal(t, "14:00-16:00", TimeRange{Start: NewClockTime(14, 0), End: NewClockTime(16, 0)}.String())
}

func TestStatusText(t *testing.T) {
	for _, st := range []Status{StatusMain, StatusReserve} {
		text, err := st.MarshalText()
		require.NoError(t, err)
		var parsed Status
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, st, parsed)
	}

	_, err := Status(0).MarshalText()
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = ParseStatus("waitlist")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, "Status(9)", Status(9).String())
}

func TestDates(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	local := time.Date(2026, time.March, 3, 23, 30, 0, 0, loc)

	day := DateOf(local)
	assert.Equal(t, time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC), day)
	assert.Equal(t, "2026-03-03", FormatDate(day))

	parsed, err := ParseDate("2026-03-03")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(day))

	_, err = ParseDate("03/03/2026")
	assert.ErrorIs(t, err, ErrInvalidDate)
}
