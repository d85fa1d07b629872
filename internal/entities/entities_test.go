package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSortStickyNotes(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	notes := []*StickyNote{
		{ID: "old", CreatedAt: base},
		{ID: "pinned-old", Pinned: true, CreatedAt: base.Add(time.Hour)},
		{ID: "new", CreatedAt: base.Add(3 * time.Hour)},
		{ID: "pinned-new", Pinned: true, CreatedAt: base.Add(2 * time.Hour)},
	}

	SortStickyNotes(notes)

	got := make([]string, len(notes))
	for i, n := range notes {
		got[i] = n.ID
	}

	assert.Equal(t, []string{"pinned-new", "pinned-old", "new", "old"}, got)
}

func TestColor(t *testing.T) {
	c := NewColor(0xFF, 0xFF, 0xEB, 0x3B)
	assert.Equal(t, Color(0xFFFFEB3B), c)

	a, r, g, b := c.ARGB()
	assert.Equal(t, [4]uint8{0xFF, 0xFF, 0xEB, 0x3B}, [4]uint8{a, r, g, b})
}

func TestUser_NeedsOnboarding(t *testing.T) {
	assert.True(t, User{}.NeedsOnboarding())
	assert.True(t, User{Name: "a"}.NeedsOnboarding())
	assert.False(t, User{Name: "a", CountryCode: "KR"}.NeedsOnboarding())
}
