package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/relaymsg/messenger-store/internal/store"
)

// NextSequence increments the named counter via an ADD update. ADD is
// commutative and creates the item on first use, so concurrent increments
// from any number of writers merge without a read-modify-write cycle.
func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: sequence name required", store.ErrInvalidArgument)
	}

	out, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.sequencesTable),
		Key:              map[string]types.AttributeValue{"name": strAttr(name)},
		UpdateExpression: aws.String("ADD seq_value :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": numAttr(1),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return 0, unavailable("increment sequence "+name, err)
	}

	value, err := parseNum(out.Attributes, "seq_value")
	if err != nil {
		return 0, unavailable("increment sequence "+name, err)
	}
	return value, nil
}
