package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMinute_LexicalOrderMatchesTime(t *testing.T) {
	a := time.Date(2024, time.January, 9, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	assert.Less(t, FormatMinute(a), FormatMinute(b))
}

func TestParseMinute_RoundTrip(t *testing.T) {
	in := time.Date(2024, time.January, 2, 15, 0, 0, 0, time.UTC)
	got, err := ParseMinute(FormatMinute(in))
	require.NoError(t, err)
	assert.True(t, in.Equal(got))
}

func TestTruncateMinute(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	in := time.Date(2024, time.January, 2, 18, 7, 59, 999, loc)
	got := TruncateMinute(in)
	assert.Equal(t, time.Date(2024, time.January, 2, 15, 7, 0, 0, time.UTC), got)
}
