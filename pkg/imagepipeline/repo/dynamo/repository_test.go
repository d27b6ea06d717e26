package dynamo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/image-pipeline/pkg/imagepipeline"
	"github.com/tendant/image-pipeline/pkg/imagepipeline/repo/dynamo"
)

type fakeClient struct {
	putInput    *dynamodb.PutItemInput
	updateInput *dynamodb.UpdateItemInput
	getInput    *dynamodb.GetItemInput

	putErr    error
	updateErr error
	getItem   map[string]types.AttributeValue
	getErr    error
}

func (f *fakeClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putInput = params
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updateInput = params
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.getInput = params
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.getItem}, nil
}

func stringValue(t *testing.T, item map[string]types.AttributeValue, name string) string {
	t.Helper()
	member, ok := item[name].(*types.AttributeValueMemberS)
	require.True(t, ok, "attribute %s is not a string", name)
	return member.Value
}

func TestCreateImage(t *testing.T) {
	ctx := context.Background()

	t.Run("PutsKeyOnlyRecord", func(t *testing.T) {
		client := &fakeClient{}
		repo := dynamo.NewWithClient(client, "images")

		require.NoError(t, repo.CreateImage(ctx, "x.png"))

		require.NotNil(t, client.putInput)
		assert.Equal(t, "images", *client.putInput.TableName)
		assert.Equal(t, "attribute_not_exists(imageName)", *client.putInput.ConditionExpression)
		assert.Len(t, client.putInput.Item, 1)
		assert.Equal(t, "x.png", stringValue(t, client.putInput.Item, imagepipeline.KeyAttribute))
	})

	t.Run("ExistingRecordIsNoOp", func(t *testing.T) {
		client := &fakeClient{putErr: &types.ConditionalCheckFailedException{}}
		repo := dynamo.NewWithClient(client, "images")

		assert.NoError(t, repo.CreateImage(ctx, "x.png"))
	})

	t.Run("TableError", func(t *testing.T) {
		tableErr := errors.New("throttled")
		client := &fakeClient{putErr: tableErr}
		repo := dynamo.NewWithClient(client, "images")

		assert.ErrorIs(t, repo.CreateImage(ctx, "x.png"), tableErr)
	})
}

func TestUpdateImageAttribute(t *testing.T) {
	ctx := context.Background()

	t.Run("SetsSingleAttribute", func(t *testing.T) {
		client := &fakeClient{}
		repo := dynamo.NewWithClient(client, "images")

		require.NoError(t, repo.UpdateImageAttribute(ctx, "x.png", imagepipeline.CaptionAttribute, "sunset"))

		in := client.updateInput
		require.NotNil(t, in)
		assert.Equal(t, "SET #attr = :value", *in.UpdateExpression)
		assert.Equal(t, "attribute_exists(imageName)", *in.ConditionExpression)
		assert.Equal(t, imagepipeline.CaptionAttribute, in.ExpressionAttributeNames["#attr"])
		assert.Equal(t, "sunset", stringValue(t, in.ExpressionAttributeValues, ":value"))
		assert.Equal(t, "x.png", stringValue(t, in.Key, imagepipeline.KeyAttribute))
	})

	t.Run("MissingRecord", func(t *testing.T) {
		client := &fakeClient{updateErr: &types.ConditionalCheckFailedException{}}
		repo := dynamo.NewWithClient(client, "images")

		err := repo.UpdateImageAttribute(ctx, "missing.png", imagepipeline.CaptionAttribute, "v")
		assert.ErrorIs(t, err, imagepipeline.ErrImageNotFound)
	})
}

func TestUpdateImageStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("SetsStatusAndReasonJointly", func(t *testing.T) {
		client := &fakeClient{}
		repo := dynamo.NewWithClient(client, "images")

		require.NoError(t, repo.UpdateImageStatus(ctx, "x.png", "REJECTED", "blurry"))

		in := client.updateInput
		require.NotNil(t, in)
		assert.Equal(t, "SET #status = :status, #reason = :reason", *in.UpdateExpression)
		assert.Equal(t, imagepipeline.StatusAttribute, in.ExpressionAttributeNames["#status"])
		assert.Equal(t, imagepipeline.ReasonAttribute, in.ExpressionAttributeNames["#reason"])
		assert.Equal(t, "REJECTED", stringValue(t, in.ExpressionAttributeValues, ":status"))
		assert.Equal(t, "blurry", stringValue(t, in.ExpressionAttributeValues, ":reason"))
	})

	t.Run("MissingRecord", func(t *testing.T) {
		client := &fakeClient{updateErr: &types.ConditionalCheckFailedException{}}
		repo := dynamo.NewWithClient(client, "images")

		err := repo.UpdateImageStatus(ctx, "missing.png", "APPROVED", "")
		assert.ErrorIs(t, err, imagepipeline.ErrImageNotFound)
	})
}

func TestGetImage(t *testing.T) {
	ctx := context.Background()

	t.Run("MapsAttributes", func(t *testing.T) {
		client := &fakeClient{getItem: map[string]types.AttributeValue{
			imagepipeline.KeyAttribute:          &types.AttributeValueMemberS{Value: "x.png"},
			imagepipeline.CaptionAttribute:      &types.AttributeValueMemberS{Value: "sunset"},
			imagepipeline.DateAttribute:         &types.AttributeValueMemberS{Value: "2024-05-01"},
			imagepipeline.PhotographerAttribute: &types.AttributeValueMemberS{Value: "Ansel"},
			imagepipeline.StatusAttribute:       &types.AttributeValueMemberS{Value: "APPROVED"},
		}}
		repo := dynamo.NewWithClient(client, "images")

		record, err := repo.GetImage(ctx, "x.png")
		require.NoError(t, err)
		assert.Equal(t, "x.png", record.ImageName)
		assert.Equal(t, "sunset", record.Caption)
		assert.Equal(t, "2024-05-01", record.CapturedDate)
		assert.Equal(t, "Ansel", record.Photographer)
		assert.Equal(t, "APPROVED", record.Status)
		assert.Empty(t, record.Reason)

		require.NotNil(t, client.getInput)
		assert.True(t, *client.getInput.ConsistentRead)
	})

	t.Run("MissingRecord", func(t *testing.T) {
		client := &fakeClient{}
		repo := dynamo.NewWithClient(client, "images")

		_, err := repo.GetImage(ctx, "missing.png")
		assert.ErrorIs(t, err, imagepipeline.ErrImageNotFound)
	})
}

func TestNewRequiresTable(t *testing.T) {
	_, err := dynamo.New(dynamo.Config{})
	assert.Error(t, err)
}
