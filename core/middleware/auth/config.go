package auth

// Config holds configuration for bearer token verification.
type Config struct {
	// Secret is the HS256 signing key shared with the identity service.
	Secret string `mapstructure:"secret" default:"change-me"`
	// Issuer, when set, must match the token's iss claim.
	Issuer string `mapstructure:"issuer" default:""`
}
