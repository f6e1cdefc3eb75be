// Package server initializes and runs the upload server: it wires the
// database, object storage, session store and HTTP endpoint together and
// handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/logging"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/config"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/httpapi"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/notify"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/repositories/repomanager"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/sessions"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/storage"
	"github.com/kapy-chat-app/kapy-chat-app-backend-sub002/internal/server/uploads"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	uploadService *uploads.Service
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewJSONLogger()

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	blob, err := storage.NewS3Blob(ctx, storage.S3Config{
		Region:       cfg.S3Region,
		Bucket:       cfg.S3Bucket,
		BaseEndpoint: cfg.S3BaseEndpoint,
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("s3 init error: %w", err)
	}

	store := sessions.NewMemoryStore(logger)
	notifier := notify.NewLogNotifier(logger)

	us := uploads.NewService(db, repos, store, blob, notifier, cfg.SessionTTL, logger)
	store.SetExpiryFunc(us.HandleExpiredSession)

	return &App{config: cfg, logger: logger, db: db, uploadService: us}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := httpapi.NewServer(app.config.EndpointAddrHTTP, app.logger, app.uploadService, app.config.SecretKey)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
