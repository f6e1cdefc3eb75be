package main

import (
	"context"
	"crypto/ecdh"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/client/config"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/client/uploader"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/flagx"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/logging"
)

// parseRecipients turns "userId:base64pub,userId:base64pub" into the
// uploader's recipient list.
func parseRecipients(arg string) ([]uploader.Recipient, error) {
	if arg == "" {
		return nil, fmt.Errorf("at least one recipient is required")
	}

	var recipients []uploader.Recipient
	for _, pair := range strings.Split(arg, ",") {
		userID, encoded, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("malformed recipient %q, want userId:base64pubkey", pair)
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("recipient %s: %w", userID, err)
		}
		pub, err := ecdh.X25519().NewPublicKey(raw)
		if err != nil {
			return nil, fmt.Errorf("recipient %s: %w", userID, err)
		}
		recipients = append(recipients, uploader.Recipient{UserID: userID, PublicKey: pub})
	}
	return recipients, nil
}

func main() {

	cfg := config.LoadConfig()

	args := flagx.FilterArgs(os.Args[1:], []string{"-f", "-conv", "-m", "-r"})
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	file := fs.String("f", "", "path of the file to upload")
	conversation := fs.String("conv", "", "conversation id")
	mode := fs.String("m", "buffered", "upload mode: buffered or streaming")
	recipientsArg := fs.String("r", "", "comma-separated userId:base64pubkey pairs")
	_ = fs.Parse(args)

	recipients, err := parseRecipients(*recipientsArg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *file == "" || *conversation == "" {
		log.Fatal("both -f and -conv are required")
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	u := uploader.New(uploader.Config{
		BaseURL:   cfg.ServerBaseURL,
		Token:     cfg.AccessToken,
		ChunkSize: cfg.ChunkSizeBytes,
	}, logger)

	ctx := context.Background()

	var result *uploader.Result
	switch *mode {
	case "buffered":
		result, err = u.UploadBuffered(ctx, *file, *conversation, recipients)
	case "streaming":
		result, err = u.UploadStreaming(ctx, *file, *conversation, recipients)
	default:
		log.Fatalf("unknown mode %q", *mode)
	}
	if err != nil {
		log.Fatalf("upload failed: %v", err)
	}

	fmt.Printf("uploaded: file=%s message=%s url=%s\n", result.FileID, result.MessageID, result.URL)

}
