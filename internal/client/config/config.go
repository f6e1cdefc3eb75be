// Package config handles configuration for the uploader CLI,
// including defaults, JSON overlay, and command-line flags.
package config

// Config holds runtime settings for the uploader CLI.
//
// Fields:
//   - ServerBaseURL: base URL of the upload API (scheme + host + port).
//   - AccessToken: bearer token presented on every request.
//   - ChunkSizeBytes: plaintext chunk size; zero selects the default.
type Config struct {
	ServerBaseURL  string
	AccessToken    string
	ChunkSizeBytes int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8080"
	c.AccessToken = ""
	c.ChunkSizeBytes = 0
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
