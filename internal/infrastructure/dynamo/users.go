package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/productr-api/internal/domain"
)

// API is the subset of *dynamodb.Client the user repository calls.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// UserRepo stores credential records in a table keyed on identifier.
type UserRepo struct {
	client    API
	tableName string
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

func (r *UserRepo) GetByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldIdentifier, identifier),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if out.Item == nil {
		return nil, domain.ErrNotFound
	}
	return unmarshalUser(out.Item)
}

func (r *UserRepo) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexUserID),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": fieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: userID}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query user by id: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, domain.ErrNotFound
	}
	return unmarshalUser(out.Items[0])
}

// UpsertChallenge creates the record or overwrites its pending challenge.
// user_id, created_at and is_verified are written only on first insert.
func (r *UserRepo) UpsertChallenge(ctx context.Context, in domain.ChallengeInput) (*domain.User, error) {
	u := update{
		Set: map[string]interface{}{
			fieldOTPDigest:    in.Digest,
			fieldOTPExpiresAt: in.ExpiresAt,
			fieldUpdatedAt:    in.Now,
		},
		SetIfAbsent: map[string]interface{}{
			fieldUserID:     in.NewUserID,
			fieldCreatedAt:  in.Now,
			fieldIsVerified: false,
		},
	}
	setOrRemove(&u, fieldEmail, in.Email)
	setOrRemove(&u, fieldPhone, in.Phone)

	ue, err := buildUpdateExpr(u)
	if err != nil {
		return nil, err
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldIdentifier, in.Identifier),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert challenge: %w", err)
	}
	return unmarshalUser(out.Attributes)
}

// ConsumeChallenge clears the challenge and marks the user verified, provided
// the stored digest still equals digest. A concurrent overwrite or an earlier
// consume makes the condition fail and yields ErrNoActiveChallenge.
func (r *UserRepo) ConsumeChallenge(ctx context.Context, identifier, digest string, at time.Time) (*domain.User, error) {
	ue, err := buildUpdateExpr(update{
		Set: map[string]interface{}{
			fieldIsVerified: true,
			fieldUpdatedAt:  at,
		},
		Remove:    []string{fieldOTPDigest, fieldOTPExpiresAt},
		CondEqual: map[string]interface{}{fieldOTPDigest: digest},
	})
	if err != nil {
		return nil, err
	}
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldIdentifier, identifier),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String(ue.Condition),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, domain.ErrNoActiveChallenge
		}
		return nil, fmt.Errorf("consume challenge: %w", err)
	}
	return unmarshalUser(out.Attributes)
}

func setOrRemove(u *update, field string, v *string) {
	if v != nil {
		u.Set[field] = *v
		return
	}
	u.Remove = append(u.Remove, field)
}

func unmarshalUser(item map[string]types.AttributeValue) (*domain.User, error) {
	var u domain.User
	if err := attributevalue.UnmarshalMap(item, &u); err != nil {
		return nil, fmt.Errorf("unmarshal user: %w", err)
	}
	return &u, nil
}
