package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC)
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("09:00", "17:00")
	require.NoError(t, err)
	assert.True(t, w.Contains(at(9, 0)))
	assert.True(t, w.Contains(at(12, 30)))
	assert.False(t, w.Contains(at(17, 0))) // half-open
	assert.False(t, w.Contains(at(17, 1)))
	assert.False(t, w.Contains(at(8, 59)))
}

func TestParseWindowErrors(t *testing.T) {
	_, err := ParseWindow("9am", "17:00")
	assert.Error(t, err)
	_, err = ParseWindow("09:00", "25:00")
	assert.Error(t, err)
	_, err = ParseWindow("09:00", "17:61")
	assert.Error(t, err)
}

func TestWindowWrapsMidnight(t *testing.T) {
	w, err := ParseWindow("22:00", "06:00")
	require.NoError(t, err)
	assert.True(t, w.Contains(at(23, 0)))
	assert.True(t, w.Contains(at(2, 0)))
	assert.False(t, w.Contains(at(12, 0)))
	assert.True(t, w.Contains(at(22, 0)))
	assert.False(t, w.Contains(at(6, 0)))
}

func TestZeroWindowIsAlwaysOpen(t *testing.T) {
	w, err := ParseWindow("", "")
	require.NoError(t, err)
	assert.True(t, w.Contains(at(0, 0)))
	assert.True(t, w.Contains(at(13, 37)))
}
