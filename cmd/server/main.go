package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/Tanishk31/visiting-management/internal/blob"
	"github.com/Tanishk31/visiting-management/internal/config"
	internalhttp "github.com/Tanishk31/visiting-management/internal/http"
	"github.com/Tanishk31/visiting-management/internal/lifecycle"
	"github.com/Tanishk31/visiting-management/internal/notify"
	"github.com/Tanishk31/visiting-management/internal/qr"
	"github.com/Tanishk31/visiting-management/internal/repository"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	store := repository.NewStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		log.Fatalf("blob store init failed: %v", err)
	}

	mailer := notify.NewMailer(notify.Config{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	})

	engine := lifecycle.NewEngine(store, store, mailer, qr.NewIssuer(), cfg.PreApprovalMaxWindow)
	server := internalhttp.NewServer(cfg, store, store, engine, blobs, redisClient)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("visiting-management http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func openBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	switch blob.Driver(cfg.BlobDriver) {
	case blob.DriverS3:
		return blob.NewS3Store(ctx, blob.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case blob.DriverMemory:
		return blob.NewMemoryStore(), nil
	default:
		return blob.NewFSStore(cfg.UploadDir)
	}
}
