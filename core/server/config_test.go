package server_test

import (
	"testing"

	"matchmaker/core/server"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Origins(t *testing.T) {
	tests := []struct {
		name    string
		origins string
		want    []string
	}{
		{"Wildcard", "*", []string{"*"}},
		{"List", "https://a.example, https://b.example", []string{"https://a.example", "https://b.example"}},
		{"Trailing comma", "https://a.example,", []string{"https://a.example"}},
		{"Empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := server.Config{AllowedOrigins: tt.origins}
			assert.Equal(t, tt.want, c.Origins())
		})
	}
}

func TestConfig_OperatorEndpointsEnabled(t *testing.T) {
	assert.False(t, server.Config{}.OperatorEndpointsEnabled())
	assert.True(t, server.Config{ApiKey: "secret"}.OperatorEndpointsEnabled())
}
