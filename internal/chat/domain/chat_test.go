package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPairKeyIsOrderFree(t *testing.T) {
	assert.Equal(t, PairKey("b", "a"), PairKey("a", "b"))
	assert.Equal(t, "a:b", PairKey("b", "a"))
}

func TestNewRoomID(t *testing.T) {
	first := NewRoomID("weekend  hiking\tcrew")
	second := NewRoomID("weekend  hiking\tcrew")

	assert.True(t, strings.HasPrefix(first, "weekend_hiking_crew_"))
	assert.NotEqual(t, first, second)
}

func TestValidContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", false},
		{"whitespace only", "   ", true},
		{"single rune", "嗨", true},
		{"max length", strings.Repeat("a", MaxContentLength), true},
		{"too long", strings.Repeat("a", MaxContentLength+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidContent(tt.content))
		})
	}
}

func TestNewMessageHasDistinctIDs(t *testing.T) {
	now := time.Now()
	a := NewMessage("same", "u1", now)
	b := NewMessage("same", "u1", now)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewGroupChatAddsCreator(t *testing.T) {
	c := NewGroupChat("crew", "crew_1", "", "me", []string{"p1", "p2"})
	assert.Equal(t, []string{"p1", "p2", "me"}, c.Participants)
	assert.True(t, c.IsGroup())
	assert.Equal(t, "me", c.CreatedBy)
}
