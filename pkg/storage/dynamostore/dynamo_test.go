package dynamostore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/entitystore/pkg/storage"
)

// mockClient is an in-memory DynamoDB mock. Scan returns pageSize items per
// page to exercise pagination.
type mockClient struct {
	mu       sync.RWMutex
	items    map[string]map[string]types.AttributeValue
	pageSize int
	scans    int
}

func newMockClient() *mockClient {
	return &mockClient{items: make(map[string]map[string]types.AttributeValue), pageSize: 2}
}

func keyOf(item map[string]types.AttributeValue) string {
	return item[attrKey].(*types.AttributeValueMemberS).Value
}

func (m *mockClient) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return &dynamodb.GetItemOutput{Item: m.items[keyOf(params.Key)]}, nil
}

func (m *mockClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[keyOf(params.Item)] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockClient) DeleteItem(_ context.Context, params *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, keyOf(params.Key))
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *mockClient) Scan(_ context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans++

	var all []string
	for k := range m.items {
		all = append(all, k)
	}
	sort.Strings(all)

	start := 0
	if params.ExclusiveStartKey != nil {
		after := keyOf(params.ExclusiveStartKey)
		start = sort.SearchStrings(all, after) + 1
	}

	prefix := ""
	if p, ok := params.ExpressionAttributeValues[":p"].(*types.AttributeValueMemberS); ok {
		prefix = p.Value
	}

	out := &dynamodb.ScanOutput{}
	end := min(start+m.pageSize, len(all))
	for _, k := range all[start:end] {
		if strings.HasPrefix(k, prefix) {
			out.Items = append(out.Items, map[string]types.AttributeValue{
				attrKey: &types.AttributeValueMemberS{Value: k},
			})
		}
	}
	if end < len(all) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			attrKey: &types.AttributeValueMemberS{Value: all[end-1]},
		}
	}
	return out, nil
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMockClient(), "blobs")

	_, err := s.Get(ctx, "attr-index")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "attr-index", []byte("v1")))
	require.NoError(t, s.Set(ctx, "attr-index", []byte("v2")))

	got, err := s.Get(ctx, "attr-index")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))

	require.NoError(t, s.Delete(ctx, "attr-index"))
	_, err = s.Get(ctx, "attr-index")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.ErrorIs(t, s.Set(ctx, "", nil), storage.ErrInvalidKey)
}

func TestListFollowsPagination(t *testing.T) {
	ctx := context.Background()
	client := newMockClient()
	s := NewStore(client, "blobs")

	for _, k := range []string{"idx/a", "idx/b", "other", "idx/c", "idx/d"} {
		require.NoError(t, s.Set(ctx, k, []byte(k)))
	}

	keys, err := s.List(ctx, "idx/")
	require.NoError(t, err)
	assert.Equal(t, []string{"idx/a", "idx/b", "idx/c", "idx/d"}, keys)
	assert.Equal(t, 3, client.scans)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestGetRejectsMalformedItem(t *testing.T) {
	ctx := context.Background()
	client := newMockClient()
	client.items["bad"] = map[string]types.AttributeValue{
		attrKey:  &types.AttributeValueMemberS{Value: "bad"},
		attrData: &types.AttributeValueMemberS{Value: "not binary"},
	}

	_, err := NewStore(client, "blobs").Get(ctx, "bad")
	assert.ErrorIs(t, err, storage.ErrCorrupted)
}
