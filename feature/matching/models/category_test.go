package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCategory(t *testing.T) {
	tests := []struct {
		raw      string
		valid    bool
		opposite Category
	}{
		{"1", true, CategoryTwo},
		{"2", true, CategoryOne},
		{"3", false, CategoryOne},
		{"", false, CategoryOne},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			c, ok := ParseCategory(tt.raw)
			assert.Equal(t, tt.valid, ok)
			if ok {
				assert.Equal(t, tt.opposite, c.Opposite())
			}
		})
	}
}

func TestWaitingEntry_Score(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	assert.Equal(t, int64(1700000000123), WaitingEntry{EnqueuedAt: at}.Score())
}
