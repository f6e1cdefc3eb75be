package config

import (
	"encoding/json"
	"os"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/flagx"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. After
// parsing, values are copied into the runtime Config.
type JsonConfig struct {
	ServerBaseURL  string `json:"server_base_url"`
	AccessToken    string `json:"access_token"`
	ChunkSizeBytes int    `json:"chunk_size_bytes"`
}

// parseJson overlays Config with values loaded from a JSON file.
//
// Lookup order for the JSON file path:
//  1. Command-line flags (-c or -config) via flagx.JsonConfigFlags().
//  2. If empty, no JSON is loaded and the function returns.
//
// Panics on read or unmarshal errors (caller should recover if desired).
// Intended usage is: defaults -> parseJson -> parseFlags, where later stages
// override earlier ones.
func parseJson(cfg *Config) {
	// Resolve file path from flags.
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	cfg.ServerBaseURL = jc.ServerBaseURL
	cfg.AccessToken = jc.AccessToken
	cfg.ChunkSizeBytes = jc.ChunkSizeBytes
}
