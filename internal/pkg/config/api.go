package config

// API represents API server configuration
type API struct {
	CORS struct {
		Enabled        bool     `yaml:"enabled"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		AllowedMethods []string `yaml:"allowed_methods"`
	} `yaml:"cors"`
	Auth struct {
		Enabled       bool   `yaml:"enabled"`
		JWTSecret     string `yaml:"jwt_secret"`
		JWTExpiration int    `yaml:"jwt_expiration"` // seconds
		Issuer        string `yaml:"issuer"`
		// Identity assumed for every request while auth is disabled
		Static struct {
			Username string `yaml:"username"`
			TeamID   int64  `yaml:"team_id"`
			Role     string `yaml:"role"`
		} `yaml:"static"`
	} `yaml:"auth"`
}
