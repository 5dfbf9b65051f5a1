package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "2", "2"},
		{"bytes", []byte("1"), "1"},
		{"integral float", float64(1), "1"},
		{"fractional float", 1.5, "1.5"},
		{"int", 2, "2"},
		{"int64", int64(7), "7"},
		{"bool", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToString(tt.in))
		})
	}
}
