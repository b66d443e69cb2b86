package report

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gareport/internal/apierr"
)

var fixedNow = time.Date(2024, time.March, 10, 15, 30, 0, 0, time.UTC)

func TestResolveDate(t *testing.T) {
	tests := map[string]string{
		"today":      "2024-03-10",
		"yesterday":  "2024-03-09",
		"7daysAgo":   "2024-03-03",
		"0daysAgo":   "2024-03-10",
		"2023-12-31": "2023-12-31",
	}
	for input, want := range tests {
		got, err := ResolveDate(input, fixedNow)
		require.NoError(t, err, input)
		assert.Equal(t, want, got.Format(DateLayout), input)
	}
}

func TestResolveDateInvalid(t *testing.T) {
	for _, input := range []string{"", "tomorrow", "2024/01/01", "daysAgo", "-1daysAgo"} {
		_, err := ResolveDate(input, fixedNow)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, apierr.ErrBadRequest), input)
	}
}

func TestDateRangeDays(t *testing.T) {
	days, err := DateRange{Start: "2024-02-27", End: "2024-03-01"}.Days(fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-27", "2024-02-28", "2024-02-29", "2024-03-01"}, days)

	days, err = DateRange{Start: "3daysAgo", End: "yesterday"}.Days(fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-07", "2024-03-08", "2024-03-09"}, days)

	days, err = DateRange{Start: "2024-03-01", End: "2024-03-01"}.Days(fixedNow)
	require.NoError(t, err)
	assert.Len(t, days, 1)
}

func TestDateRangeReversed(t *testing.T) {
	err := DateRange{Start: "today", End: "yesterday"}.Validate(fixedNow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrBadRequest))
}

func TestDateRangeResolve(t *testing.T) {
	r, err := DateRange{Start: "7daysAgo", End: "yesterday"}.Resolve(fixedNow)
	require.NoError(t, err)
	assert.Equal(t, DateRange{Start: "2024-03-03", End: "2024-03-09"}, r)
}
