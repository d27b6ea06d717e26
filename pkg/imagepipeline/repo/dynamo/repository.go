package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tendant/image-pipeline/pkg/imagepipeline"
)

// Config options for the DynamoDB repository.
type Config struct {
	Region          string // AWS region
	Table           string // table name
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // optional custom endpoint for DynamoDB-compatible services
}

// API is the subset of the DynamoDB client the repository uses.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Repository implements imagepipeline.Repository against a DynamoDB table
// keyed by imageName. The table's stream is not consumed here; bridge it to
// the pipeline with imagepipeline.WithChangeFeed.
type Repository struct {
	client API
	table  string
}

// New creates a DynamoDB repository from config.
func New(cfg Config) (*Repository, error) {
	if cfg.Table == "" {
		return nil, errors.New("table name is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
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

	var options []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		options = append(options, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewWithClient(dynamodb.NewFromConfig(awsCfg, options...), cfg.Table), nil
}

// NewWithClient creates a repository around an existing client.
func NewWithClient(client API, table string) *Repository {
	return &Repository{client: client, table: table}
}

// CreateImage writes the key-only record. The condition makes a redelivered
// create a no-op instead of wiping attributes an earlier mutator set.
func (r *Repository) CreateImage(ctx context.Context, imageName string) error {
	_, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item: map[string]types.AttributeValue{
			imagepipeline.KeyAttribute: &types.AttributeValueMemberS{Value: imageName},
		},
		ConditionExpression: aws.String("attribute_not_exists(imageName)"),
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil
		}
		return fmt.Errorf("failed to put image record %s: %w", imageName, err)
	}
	return nil
}

// UpdateImageAttribute sets one attribute with an update expression so no
// other attribute is touched. The condition keeps the update from upserting.
func (r *Repository) UpdateImageAttribute(ctx context.Context, imageName, attribute, value string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			imagepipeline.KeyAttribute: &types.AttributeValueMemberS{Value: imageName},
		},
		UpdateExpression: aws.String("SET #attr = :value"),
		ExpressionAttributeNames: map[string]string{
			"#attr": attribute,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":value": &types.AttributeValueMemberS{Value: value},
		},
		ConditionExpression: aws.String("attribute_exists(imageName)"),
	})
	return r.wrapUpdateError(imageName, attribute, err)
}

// UpdateImageStatus sets status and reason in one update expression.
func (r *Repository) UpdateImageStatus(ctx context.Context, imageName, status, reason string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			imagepipeline.KeyAttribute: &types.AttributeValueMemberS{Value: imageName},
		},
		UpdateExpression: aws.String("SET #status = :status, #reason = :reason"),
		ExpressionAttributeNames: map[string]string{
			"#status": imagepipeline.StatusAttribute,
			"#reason": imagepipeline.ReasonAttribute,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: status},
			":reason": &types.AttributeValueMemberS{Value: reason},
		},
		ConditionExpression: aws.String("attribute_exists(imageName)"),
	})
	return r.wrapUpdateError(imageName, "status", err)
}

// GetImage reads the record.
func (r *Repository) GetImage(ctx context.Context, imageName string) (*imagepipeline.ImageRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key: map[string]types.AttributeValue{
			imagepipeline.KeyAttribute: &types.AttributeValueMemberS{Value: imageName},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get image record %s: %w", imageName, err)
	}
	if len(out.Item) == 0 {
		return nil, imagepipeline.ErrImageNotFound
	}

	record := &imagepipeline.ImageRecord{ImageName: imageName}
	record.Caption = stringAttr(out.Item, imagepipeline.CaptionAttribute)
	record.CapturedDate = stringAttr(out.Item, imagepipeline.DateAttribute)
	record.Photographer = stringAttr(out.Item, imagepipeline.PhotographerAttribute)
	record.Status = stringAttr(out.Item, imagepipeline.StatusAttribute)
	record.Reason = stringAttr(out.Item, imagepipeline.ReasonAttribute)
	return record, nil
}

func (r *Repository) wrapUpdateError(imageName, attribute string, err error) error {
	if err == nil {
		return nil
	}
	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return imagepipeline.ErrImageNotFound
	}
	return fmt.Errorf("failed to update %s for image record %s: %w", attribute, imageName, err)
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
