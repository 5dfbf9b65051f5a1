package server

import "strings"

// Config holds configuration for the HTTP and websocket listeners.
type Config struct {
	// Port is the port where the HTTP API listens.
	Port string `mapstructure:"port" default:"8080"`
	// WSPort is the port where the websocket gateway listens.
	WSPort string `mapstructure:"ws_port" default:"8081"`
	// ApiKey is the secret required on operator endpoints (batch, reconcile).
	ApiKey string `mapstructure:"api_key" default:""`
	// AllowedOrigins is a comma separated CORS origin list for the websocket gateway.
	AllowedOrigins string `mapstructure:"allowed_origins" default:"*"`
}

// Origins splits AllowedOrigins on commas.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// OperatorEndpointsEnabled reports whether an operator key is configured.
func (c Config) OperatorEndpointsEnabled() bool {
	return c.ApiKey != ""
}
