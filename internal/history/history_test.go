package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_RecentNewestFirst(t *testing.T) {
	h := New(0)
	for i := 0; i < 3; i++ {
		h.Add(Entry{SQL: fmt.Sprintf("SELECT %d", i), Success: true})
	}

	recent := h.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "SELECT 2", recent[0].SQL)
	assert.Equal(t, "SELECT 1", recent[1].SQL)
	assert.Equal(t, 3, h.Len())
}

func TestHistory_DefaultLimit(t *testing.T) {
	h := New(0)
	for i := 0; i < DefaultLimit+10; i++ {
		h.Add(Entry{SQL: "SELECT 1"})
	}
	assert.Len(t, h.Recent(0), DefaultLimit)
	assert.Equal(t, DefaultLimit+10, h.Len())
}

func TestHistory_Retention(t *testing.T) {
	h := New(3)
	for i := 0; i < 5; i++ {
		h.Add(Entry{SQL: fmt.Sprintf("q%d", i)})
	}
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, "q4", h.Recent(1)[0].SQL)
	assert.Equal(t, "q2", h.Recent(10)[2].SQL)
}

func TestHistory_AddAssignsIDAndTime(t *testing.T) {
	h := New(0)
	e := h.Add(Entry{SQL: "DELETE FROM t", Error: "no such table: t"})

	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now(), e.At, time.Minute)

	got, ok := h.Get(e.ID)
	require.True(t, ok)
	assert.Equal(t, "no such table: t", got.Error)

	_, ok = h.Get("missing")
	assert.False(t, ok)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t", Preview("SELECT *\n  FROM t", 60))
	assert.Equal(t, "abcde...", Preview("abcdefgh", 5))
	assert.Equal(t, "äöü", Preview("äöü", 3))
}
