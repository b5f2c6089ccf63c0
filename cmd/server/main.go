// Command server runs the advisor API.
//
//	@title                      Advisor API
//	@version                    1.0
//	@description                Accounts with emailed one-time codes, profiles, a client catalog and business Q&A rooms.
//	@BasePath                   /api/v1
//	@securityDefinitions.apikey BearerAuth
//	@in                         header
//	@name                       Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-advisor-backend/docs"
	"github.com/tbourn/go-advisor-backend/internal/auth"
	"github.com/tbourn/go-advisor-backend/internal/cache"
	"github.com/tbourn/go-advisor-backend/internal/config"
	httpapi "github.com/tbourn/go-advisor-backend/internal/http"
	"github.com/tbourn/go-advisor-backend/internal/http/handlers"
	"github.com/tbourn/go-advisor-backend/internal/llm"
	"github.com/tbourn/go-advisor-backend/internal/notify"
	"github.com/tbourn/go-advisor-backend/internal/observability"
	"github.com/tbourn/go-advisor-backend/internal/repo"
	"github.com/tbourn/go-advisor-backend/internal/services"
	"github.com/tbourn/go-advisor-backend/internal/storage"
	"github.com/tbourn/go-advisor-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout = 30 * time.Second
	purgeEvery      = time.Hour
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	lg := sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, sysutil.FirstNonEmpty(cfg.OTEL.ServiceName, "go-advisor-backend"))
	gin.SetMode(cfg.GinMode)

	if err := run(cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config, lg zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			lg.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg.DB)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	// Redis is optional: without it clients are read from the database and
	// emails are only logged.
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			lg.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, running without cache and outbox")
			_ = rdb.Close()
			rdb = nil
		} else {
			defer func() {
				if err := rdb.Close(); err != nil {
					lg.Error().Err(err).Msg("close redis")
				}
			}()
		}
	}

	completer, err := llm.NewGenAI(ctx, cfg.LLM.APIKey, cfg.LLM.Timeout)
	if err != nil {
		return err
	}

	files, err := newStore(ctx, cfg.Upload)
	if err != nil {
		return err
	}

	var sender notify.Sender = notify.LogSender{Log: lg}
	if rdb != nil {
		sender = notify.NewRedisOutbox(rdb)
	}
	mail := notify.NewDispatcher(sender, cfg.MailQueueSize, cfg.MailWorkers, lg)

	var clients services.ClientRepository = repo.Clients{DB: db}
	if rdb != nil {
		clients = cache.NewClients(rdb, cfg.Redis.ClientCacheTTL, clients)
	}

	tokens := auth.NewIssuer(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL, cfg.JWT.Issuer)
	rooms := services.NewRoomService(repo.Rooms{DB: db}, cfg.ListDefaultLimit)
	idem := repo.Idempotency{DB: db}

	h := handlers.New(handlers.Deps{
		Auth: services.NewAuthService(repo.Users{DB: db}, auth.Bcrypt{Cost: cfg.OTP.BcryptCost}, tokens, mail, services.CodeTTLs{
			Register:   cfg.OTP.RegisterTTL,
			Login:      cfg.OTP.LoginTTL,
			ResetToken: cfg.OTP.ResetTokenTTL,
		}),
		Users:   services.NewUserService(repo.Users{DB: db}, files, cfg.ListDefaultLimit),
		Clients: services.NewClientService(clients, files, cfg.ListDefaultLimit),
		Conversations: services.NewConversationService(rooms, repo.Turns{DB: db}, llm.Instrument(completer),
			cfg.LLM.Model, cfg.QuestionMaxLen, cfg.RoomSerialize),
		Rooms:          rooms,
		Idempotency:    idem,
		IdempotencyTTL: cfg.IdempotencyTTL,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		DefaultLimit:   cfg.ListDefaultLimit,
	})

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{Handlers: h, Tokens: tokens, IdempotencyLookup: idem.Lookup}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go purgeIdempotency(ctx, db, lg)

	errCh := make(chan error, 1)
	go func() {
		lg.Info().Str("addr", srv.Addr).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		lg.Info().Msg("shutting down")
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		lg.Error().Err(err).Msg("http shutdown")
	}
	// Handlers are done; flush the emails they queued.
	if err := mail.Close(shCtx); err != nil {
		lg.Error().Err(err).Msg("mail queue not drained")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}

func newStore(ctx context.Context, u config.UploadConfig) (storage.Store, error) {
	if u.Backend == "s3" {
		return storage.NewS3Store(ctx, storage.S3Options{
			Bucket:    u.S3Bucket,
			Region:    u.S3Region,
			Endpoint:  u.S3Endpoint,
			AccessKey: u.S3AccessKey,
			SecretKey: u.S3SecretKey,
			PublicURL: u.PublicURL,
			MaxBytes:  u.MaxBytes,
		})
	}
	return storage.NewDiskStore(u.Dir, u.PublicURL, u.MaxBytes)
}

// purgeIdempotency drops expired Idempotency-Key records until ctx ends.
func purgeIdempotency(ctx context.Context, db *gorm.DB, lg zerolog.Logger) {
	idem := repo.Idempotency{DB: db}
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := idem.Purge(ctx, now.UTC())
			if err != nil {
				lg.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				lg.Debug().Int64("deleted", n).Msg("expired idempotency keys purged")
			}
		}
	}
}
