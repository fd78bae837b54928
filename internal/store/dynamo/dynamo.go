// Package dynamo implements the storage engine on DynamoDB. Four tables are
// used, provisioned externally:
//
//	<prefix>sequences             PK name (S)
//	<prefix>messages              PK conversation_id (N), SK sort_key (S)
//	<prefix>conversation_summaries PK conversation_id (N)
//	<prefix>user_timeline         PK user_id (N), SK conversation_id (N),
//	                              LSI by-activity on activity_key (S)
//
// sort_key and activity_key encode (timestamp, id) so that one descending
// range scan yields timestamp DESC with ids ASC on ties; see encodeKey.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/relaymsg/messenger-store/internal/store"
)

const activityIndex = "by-activity"

// api is the minimal DynamoDB surface required by Store. Defined here for
// testability.
type api interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Store is a DynamoDB implementation of store.Store.
type Store struct {
	api            api
	sequencesTable string
	messagesTable  string
	summariesTable string
	timelineTable  string
}

// New creates a DynamoDB store over the given client and table name prefix.
func New(client api, tablePrefix string) (*Store, error) {
	if client == nil {
		return nil, errors.New("dynamo: client must not be nil")
	}
	if strings.ContainsAny(tablePrefix, " \t\n") {
		return nil, errors.New("dynamo: invalid table prefix")
	}
	return &Store{
		api:            client,
		sequencesTable: tablePrefix + "sequences",
		messagesTable:  tablePrefix + "messages",
		summariesTable: tablePrefix + "conversation_summaries",
		timelineTable:  tablePrefix + "user_timeline",
	}, nil
}

// Ping checks that the sequences table is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.api.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.sequencesTable),
	})
	if err != nil {
		return unavailable("describe table", err)
	}
	return nil
}

// encodeKey renders (timestamp ms, id) as a fixed-width sort key. The id is
// complemented against MaxInt64 so that a descending scan over the key yields
// timestamps descending with ids ascending on ties.
func encodeKey(tsMilli, id int64) string {
	return fmt.Sprintf("%013d#%019d", tsMilli, math.MaxInt64-id)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", store.ErrUnavailable, op, err)
}

func numAttr(id int64) *types.AttributeValueMemberN {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)}
}

func strAttr(v string) *types.AttributeValueMemberS {
	return &types.AttributeValueMemberS{Value: v}
}

func parseNum(item map[string]types.AttributeValue, name string) (int64, error) {
	av, ok := item[name].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("missing numeric attribute %q", name)
	}
	return strconv.ParseInt(av.Value, 10, 64)
}

func parseStr(item map[string]types.AttributeValue, name string) string {
	if av, ok := item[name].(*types.AttributeValueMemberS); ok {
		return av.Value
	}
	return ""
}
