package ids

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateULIDIsMonotonic(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_000)
	prev := CreateULIDAt(at)
	for i := 0; i < 100; i++ {
		next := CreateULIDAt(at)
		assert.Len(t, next, 26)
		assert.Greater(t, next, prev)
		prev = next
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	at := time.UnixMilli(1_700_000_123_456)
	got, err := Timestamp(CreateULIDAt(at))
	require.NoError(t, err)
	assert.True(t, at.Equal(got))

	_, err = Timestamp("not-a-ulid")
	assert.Error(t, err)
}
