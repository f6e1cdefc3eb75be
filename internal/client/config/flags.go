package config

import (
	"flag"
	"os"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the upload API (default from Config)
//	-k string   bearer access token
//	-z int      chunk size in bytes (0 selects the built-in default)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-k", "-z"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerBaseURL, "a", cfg.ServerBaseURL, "base URL of the upload API")
	fs.StringVar(&cfg.AccessToken, "k", cfg.AccessToken, "bearer access token")
	fs.IntVar(&cfg.ChunkSizeBytes, "z", cfg.ChunkSizeBytes, "chunk size in bytes")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
