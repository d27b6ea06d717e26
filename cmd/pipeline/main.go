package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/image-pipeline/internal/api"
	"github.com/tendant/image-pipeline/pkg/imagepipeline/config"
)

type Config struct {
	Port string `env:"PORT" env-default:"8080"`

	RepositoryType string `env:"REPOSITORY_TYPE" env-default:"memory"`
	DatabaseURL    string `env:"DATABASE_URL" env-default:""`
	TableName      string `env:"IMAGES_TABLE_NAME" env-default:""`

	StoreType  string `env:"STORE_TYPE" env-default:"memory"`
	BucketName string `env:"BUCKET_NAME" env-default:""`
	Region     string `env:"AWS_REGION" env-default:"us-east-1"`

	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:""`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	Endpoint        string `env:"AWS_ENDPOINT" env-default:""`

	EnableNotifications bool   `env:"ENABLE_NOTIFICATIONS" env-default:"true"`
	MailerType          string `env:"MAILER_TYPE" env-default:"memory"`
	EmailFrom           string `env:"SES_EMAIL_FROM" env-default:""`
	EmailTo             string `env:"SES_EMAIL_TO" env-default:""`
	NotificationRegion  string `env:"SES_REGION" env-default:""`

	BatchSize       int `env:"BATCH_SIZE" env-default:"5"`
	MaxReceiveCount int `env:"MAX_RECEIVE_COUNT" env-default:"1"`
}

func main() {
	var envCfg Config
	if err := cleanenv.ReadEnv(&envCfg); err != nil {
		log.Fatalf("Failed to read environment: %v", err)
	}

	pipelineConfig, err := config.Load(func(c *config.PipelineConfig) error {
		c.RepositoryType = envCfg.RepositoryType
		c.DatabaseURL = envCfg.DatabaseURL
		c.TableName = envCfg.TableName
		c.StoreType = envCfg.StoreType
		c.BucketName = envCfg.BucketName
		c.Region = envCfg.Region
		c.AccessKeyID = envCfg.AccessKeyID
		c.SecretAccessKey = envCfg.SecretAccessKey
		c.Endpoint = envCfg.Endpoint
		c.EnableNotifications = envCfg.EnableNotifications
		c.MailerType = envCfg.MailerType
		c.EmailFrom = envCfg.EmailFrom
		c.EmailTo = envCfg.EmailTo
		c.NotificationRegion = envCfg.NotificationRegion
		c.BatchSize = envCfg.BatchSize
		c.MaxReceiveCount = envCfg.MaxReceiveCount
		return nil
	})
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline, err := pipelineConfig.BuildPipeline(ctx)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	// Start consumers
	done := make(chan struct{})
	go func() {
		defer close(done)
		pipeline.Run(ctx)
	}()

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Mount("/", api.NewImageHandler(pipeline).Routes())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", envCfg.Port),
		Handler: r,
	}

	go func() {
		log.Printf("Image pipeline starting on port %s (repository: %s, store: %s)",
			envCfg.Port, envCfg.RepositoryType, envCfg.StoreType)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	cancel()
	select {
	case <-done:
	case <-shutdownCtx.Done():
	}
	log.Println("Pipeline exiting")
}
