package ses

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/tendant/image-pipeline/pkg/imagepipeline"
)

const charset = "UTF-8"

// Config options for the SES mailer.
type Config struct {
	Region          string // AWS region the identities are verified in
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
}

// API is the subset of the SES client the mailer uses.
type API interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// Mailer sends notification emails through SES.
type Mailer struct {
	client API
}

// New creates an SES mailer from config.
func New(cfg Config) (*Mailer, error) {
	if cfg.Region == "" {
		return nil, errors.New("notification region is required")
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(ses.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a mailer around an existing client.
func NewWithClient(client API) *Mailer {
	return &Mailer{client: client}
}

// Send delivers the email.
func (m *Mailer) Send(ctx context.Context, email imagepipeline.Email) error {
	_, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(email.From),
		Destination: &types.Destination{
			ToAddresses: []string{email.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Charset: aws.String(charset),
				Data:    aws.String(email.Subject),
			},
			Body: &types.Body{
				Html: &types.Content{
					Charset: aws.String(charset),
					Data:    aws.String(email.HTMLBody),
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", email.To, err)
	}
	return nil
}
