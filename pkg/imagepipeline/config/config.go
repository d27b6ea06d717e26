package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/image-pipeline/pkg/imagepipeline"
	memorymailer "github.com/tendant/image-pipeline/pkg/imagepipeline/mailer/memory"
	sesmailer "github.com/tendant/image-pipeline/pkg/imagepipeline/mailer/ses"
	dynamorepo "github.com/tendant/image-pipeline/pkg/imagepipeline/repo/dynamo"
	memoryrepo "github.com/tendant/image-pipeline/pkg/imagepipeline/repo/memory"
	postgresrepo "github.com/tendant/image-pipeline/pkg/imagepipeline/repo/postgres"
	memorystorage "github.com/tendant/image-pipeline/pkg/imagepipeline/storage/memory"
	s3storage "github.com/tendant/image-pipeline/pkg/imagepipeline/storage/s3"
)

// Option applies configuration to a PipelineConfig instance.
type Option func(*PipelineConfig) error

// PipelineConfig represents configuration for the image pipeline service.
type PipelineConfig struct {
	// Repository configuration
	RepositoryType string // "memory", "postgres", "dynamo"
	DatabaseURL    string // required for postgres
	TableName      string // required for dynamo

	// Object store configuration
	StoreType  string // "memory", "s3"
	BucketName string // required for s3
	Region     string

	// AWS credentials shared by the S3 and DynamoDB clients; the default
	// credential chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string // optional custom endpoint (MinIO, local DynamoDB)

	// Notification configuration. When notifications are enabled the email
	// addresses are required; for the SES mailer the region is too.
	EnableNotifications bool
	MailerType          string // "memory", "ses"
	EmailFrom           string
	EmailTo             string
	NotificationRegion  string

	// Delivery policy
	BatchSize         int
	MaxReceiveCount   int
	InvocationTimeout time.Duration
	NotifyTimeout     time.Duration
}

// Load constructs a PipelineConfig by applying the supplied options on top of
// library defaults.
func Load(opts ...Option) (*PipelineConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaults() PipelineConfig {
	return PipelineConfig{
		RepositoryType:      "memory",
		StoreType:           "memory",
		MailerType:          "memory",
		EnableNotifications: true,
		BatchSize:           imagepipeline.DefaultBatchSize,
		MaxReceiveCount:     1,
		InvocationTimeout:   imagepipeline.DefaultInvocationTimeout,
		NotifyTimeout:       3 * time.Second,
	}
}

// Validate validates the pipeline configuration.
func (c *PipelineConfig) Validate() error {
	switch c.RepositoryType {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case "dynamo":
		if c.TableName == "" {
			return errors.New("table_name is required when using dynamo")
		}
	default:
		return errors.New("repository_type must be 'memory', 'postgres' or 'dynamo'")
	}

	switch c.StoreType {
	case "memory":
	case "s3":
		if c.BucketName == "" {
			return errors.New("bucket_name is required when using s3")
		}
	default:
		return errors.New("store_type must be 'memory' or 's3'")
	}

	if c.EnableNotifications {
		if c.EmailFrom == "" || c.EmailTo == "" {
			return errors.New("email_from and email_to are required when notifications are enabled")
		}
		switch c.MailerType {
		case "memory":
		case "ses":
			if c.NotificationRegion == "" {
				return errors.New("notification_region is required when using ses")
			}
		default:
			return errors.New("mailer_type must be 'memory' or 'ses'")
		}
	}
	return nil
}

// BuildPipeline constructs a fully wired pipeline from the configuration.
func (c *PipelineConfig) BuildPipeline(ctx context.Context) (*imagepipeline.Pipeline, error) {
	repo, feed, err := c.buildRepository(ctx)
	if err != nil {
		return nil, err
	}
	store, err := c.buildObjectStore()
	if err != nil {
		return nil, err
	}

	options := []imagepipeline.Option{
		imagepipeline.WithRepository(repo),
		imagepipeline.WithObjectStore(store),
		imagepipeline.WithBatchSize(c.BatchSize),
		imagepipeline.WithMaxReceiveCount(c.MaxReceiveCount),
		imagepipeline.WithInvocationTimeout(c.InvocationTimeout),
		imagepipeline.WithNotifyTimeout(c.NotifyTimeout),
	}
	if feed != nil {
		options = append(options, imagepipeline.WithChangeFeed(feed))
	}

	if c.EnableNotifications {
		mailer, err := c.buildMailer()
		if err != nil {
			return nil, err
		}
		options = append(options, imagepipeline.WithMailer(mailer, c.EmailFrom, c.EmailTo))
	}

	return imagepipeline.New(options...)
}

func (c *PipelineConfig) buildRepository(ctx context.Context) (imagepipeline.Repository, imagepipeline.ChangeFeed, error) {
	switch c.RepositoryType {
	case "postgres":
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		repo := postgresrepo.NewWithPool(pool)
		if err := repo.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		return repo, repo, nil
	case "dynamo":
		// The DynamoDB table's stream is consumed outside this process, so
		// no in-process change feed is wired for it.
		repo, err := dynamorepo.New(dynamorepo.Config{
			Region:          c.Region,
			Table:           c.TableName,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			Endpoint:        c.Endpoint,
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, nil, nil
	default:
		repo := memoryrepo.New()
		return repo, repo, nil
	}
}

func (c *PipelineConfig) buildObjectStore() (imagepipeline.ObjectStore, error) {
	if c.StoreType == "s3" {
		return s3storage.New(s3storage.Config{
			Region:          c.Region,
			Bucket:          c.BucketName,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
			Endpoint:        c.Endpoint,
			UsePathStyle:    c.Endpoint != "",
		})
	}
	return memorystorage.New(), nil
}

func (c *PipelineConfig) buildMailer() (imagepipeline.Mailer, error) {
	if c.MailerType == "ses" {
		return sesmailer.New(sesmailer.Config{
			Region:          c.NotificationRegion,
			AccessKeyID:     c.AccessKeyID,
			SecretAccessKey: c.SecretAccessKey,
		})
	}
	return memorymailer.New(), nil
}
