package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/productr-api/internal/config"
	"github.com/productr-api/internal/domain"
)

type fakeAPI struct {
	item      map[string]types.AttributeValue
	items     []map[string]types.AttributeValue
	updateOut map[string]types.AttributeValue
	updateErr error

	lastUpdate *dynamodb.UpdateItemInput
	lastQuery  *dynamodb.QueryInput
}

func (f *fakeAPI) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.item}, nil
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQuery = in
	return &dynamodb.QueryOutput{Items: f.items}, nil
}

func (f *fakeAPI) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.lastUpdate = in
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &dynamodb.UpdateItemOutput{Attributes: f.updateOut}, nil
}

func marshalUser(t *testing.T, u domain.User) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(u)
	require.NoError(t, err)
	return item
}

func TestGetByIdentifier_NotFound(t *testing.T) {
	r := NewUserRepo(&fakeAPI{}, "users")
	_, err := r.GetByIdentifier(context.Background(), "a@b.com")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetByID_QueriesIndex(t *testing.T) {
	email := "a@b.com"
	api := &fakeAPI{items: []map[string]types.AttributeValue{
		marshalUser(t, domain.User{UserID: "u1", Identifier: email, Email: &email}),
	}}
	r := NewUserRepo(api, "users")

	u, err := r.GetByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, email, u.Identifier)
	assert.Equal(t, indexUserID, *api.lastQuery.IndexName)
}

func TestUpsertChallenge_WritesIfAbsentAndRemovesOtherChannel(t *testing.T) {
	email := "a@b.com"
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	exp := now.Add(5 * time.Minute)
	digest := "d1"
	api := &fakeAPI{updateOut: marshalUser(t, domain.User{
		UserID: "u1", Identifier: email, Email: &email,
		OTPDigest: &digest, OTPExpiresAt: &exp, CreatedAt: now, UpdatedAt: now,
	})}
	r := NewUserRepo(api, "users")

	u, err := r.UpsertChallenge(context.Background(), domain.ChallengeInput{
		NewUserID: "u1", Identifier: email, Email: &email,
		Digest: digest, ExpiresAt: exp, Now: now,
	})
	require.NoError(t, err)
	assert.True(t, u.HasActiveChallenge())
	assert.True(t, exp.Equal(*u.OTPExpiresAt))

	in := api.lastUpdate
	assert.Contains(t, *in.UpdateExpression, "if_not_exists")
	assert.Contains(t, *in.UpdateExpression, "REMOVE")
	assert.Contains(t, in.ExpressionAttributeNames, "#f7")
	assert.Equal(t, fieldPhone, in.ExpressionAttributeNames["#f7"])
	assert.Nil(t, in.ConditionExpression)
	assert.Equal(t, types.ReturnValueAllNew, in.ReturnValues)
}

func TestConsumeChallenge_ConditionFailureMapsToNoActiveChallenge(t *testing.T) {
	api := &fakeAPI{updateErr: &types.ConditionalCheckFailedException{Message: strPtr("failed")}}
	r := NewUserRepo(api, "users")

	_, err := r.ConsumeChallenge(context.Background(), "a@b.com", "d1", time.Now())
	assert.True(t, errors.Is(err, domain.ErrNoActiveChallenge))
	require.NotNil(t, api.lastUpdate.ConditionExpression)

	cond := *api.lastUpdate.ConditionExpression
	assert.Equal(t, "#f4 = :v4", cond)
	assert.Equal(t, fieldOTPDigest, api.lastUpdate.ExpressionAttributeNames["#f4"])
}

func TestConsumeChallenge_OtherErrorsWrapped(t *testing.T) {
	api := &fakeAPI{updateErr: errors.New("throttled")}
	r := NewUserRepo(api, "users")

	_, err := r.ConsumeChallenge(context.Background(), "a@b.com", "d1", time.Now())
	assert.ErrorContains(t, err, "consume challenge")
	assert.False(t, errors.Is(err, domain.ErrNoActiveChallenge))
}

type fakeCreator struct {
	err   error
	input *dynamodb.CreateTableInput
}

func (f *fakeCreator) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.input = in
	return &dynamodb.CreateTableOutput{}, f.err
}

func TestBootstrap_ExistingTableIsQuiet(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c := &fakeCreator{err: &types.ResourceInUseException{}}

	Bootstrap(context.Background(), c, config.DynamoTables{Users: "users"}, zap.New(core))

	assert.Equal(t, 0, logs.Len())
	assert.Equal(t, "users", *c.input.TableName)
	assert.Equal(t, fieldIdentifier, *c.input.KeySchema[0].AttributeName)
}

func TestBootstrap_LogsCreation(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Bootstrap(context.Background(), &fakeCreator{}, config.DynamoTables{Users: "users"}, zap.New(core))
	assert.Equal(t, 1, logs.FilterMessage("created table").Len())
}

func strPtr(s string) *string { return &s }
