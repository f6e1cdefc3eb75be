package main

import (
	"context"
	"log"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
