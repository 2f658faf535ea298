package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Revenue-Intelligence/internal/domain/customer"
	"github.com/turtacn/Revenue-Intelligence/internal/testutil"
	pkgerrors "github.com/turtacn/Revenue-Intelligence/pkg/errors"
)

type fakeConn struct {
	created    []kafka.TopicConfig
	createErr  error
	partitions []kafka.Partition
}

func (c *fakeConn) CreateTopics(topics ...kafka.TopicConfig) error {
	if c.createErr != nil {
		return c.createErr
	}
	c.created = append(c.created, topics...)
	return nil
}

func (c *fakeConn) DeleteTopics(...string) error { return nil }

func (c *fakeConn) ReadPartitions(topics ...string) ([]kafka.Partition, error) {
	if len(topics) == 0 {
		return c.partitions, nil
	}
	var out []kafka.Partition
	for _, p := range c.partitions {
		for _, t := range topics {
			if p.Topic == t {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (c *fakeConn) Close() error { return nil }

func TestEventEnvelope_RoundTripBatchRequest(t *testing.T) {
	payload := BatchRequestedPayload{
		BatchID:            "b-7",
		Customers:          []customer.Input{{Record: customer.Record{CustomerID: "CUST_001"}}},
		MaxRecommendations: 5,
	}
	env, err := NewEventEnvelope(EventBatchRequested, "revintel-api", payload)
	require.NoError(t, err)
	env.TraceID = "trace-1"

	pm, err := env.ToMessage(TopicBatchRequested, "b-7")
	require.NoError(t, err)
	assert.Equal(t, "b-7", string(pm.Key))
	assert.Equal(t, EventBatchRequested, pm.Headers["event_type"])
	assert.Equal(t, "trace-1", pm.Headers["trace_id"])

	got, err := DecodeBatchRequest(&Message{Topic: pm.Topic, Value: pm.Value})
	require.NoError(t, err)
	assert.Equal(t, "b-7", got.BatchID)
	assert.Equal(t, 5, got.MaxRecommendations)
	require.Len(t, got.Customers, 1)
	assert.Equal(t, "CUST_001", got.Customers[0].Record.CustomerID)
}

func TestDecodeBatchRequest_DefaultsBatchIDToEventID(t *testing.T) {
	env, err := NewEventEnvelope(EventBatchRequested, "cli", BatchRequestedPayload{})
	require.NoError(t, err)
	raw, _ := json.Marshal(env)

	got, err := DecodeBatchRequest(&Message{Value: raw})
	require.NoError(t, err)
	assert.Equal(t, env.EventID, got.BatchID)
}

func TestDecodeBatchRequest_MalformedCustomerFieldIsKept(t *testing.T) {
	env, err := NewEventEnvelope(EventBatchRequested, "cli", json.RawMessage(`{"batch_id":"b-9","customers":[
		{"record":{"customer_id":"GOOD"}},
		{"record":{"customer_id":"BAD","monthly_spend":{"hkd":100}}}
	]}`))
	require.NoError(t, err)
	raw, _ := json.Marshal(env)

	got, err := DecodeBatchRequest(&Message{Value: raw})
	require.NoError(t, err)
	require.Len(t, got.Customers, 2)
	bad := got.Customers[1].Record
	assert.Equal(t, "BAD", bad.CustomerID)
	assert.Nil(t, bad.MonthlySpend)
	require.Len(t, bad.Warnings, 1)
	assert.Equal(t, "monthly_spend", bad.Warnings[0].Field)
}

func TestDecodeBatchRequest_Rejects(t *testing.T) {
	_, err := DecodeBatchRequest(&Message{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeValidation))

	_, err = DecodeBatchRequest(&Message{Value: []byte("{")})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))

	env, _ := NewEventEnvelope(EventRecommendationGenerated, "x", map[string]int{"a": 1})
	raw, _ := json.Marshal(env)
	_, err = DecodeBatchRequest(&Message{Value: raw})
	assert.Error(t, err)

	empty := EventEnvelope{EventType: EventBatchRequested}
	raw, _ = json.Marshal(empty)
	_, err = DecodeBatchRequest(&Message{Value: raw})
	assert.Error(t, err)
}

func TestTopicManager_EnsureTopics(t *testing.T) {
	conn := &fakeConn{}
	m := NewTopicManagerWithConn(conn, testutil.NewMockLogger())

	err := m.EnsureTopics(context.Background(), DefaultTopics(TopicBatchRequested, TopicRecommendations, TopicDeadLetter))

	require.NoError(t, err)
	require.Len(t, conn.created, 3)
	assert.Equal(t, TopicDeadLetter, conn.created[2].Topic)
	assert.Equal(t, "retention.ms", conn.created[0].ConfigEntries[0].ConfigName)
}

func TestTopicManager_CreateTopic(t *testing.T) {
	ctx := context.Background()

	m := NewTopicManagerWithConn(&fakeConn{}, nil)
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{}))
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{Name: "t"}))
	assert.Error(t, m.CreateTopic(ctx, TopicConfig{Name: "t", NumPartitions: 1}))

	exists := NewTopicManagerWithConn(&fakeConn{createErr: kafka.TopicAlreadyExists}, nil)
	assert.NoError(t, exists.CreateTopic(ctx, TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1}))

	failing := NewTopicManagerWithConn(&fakeConn{createErr: errors.New("not controller")}, nil)
	err := failing.CreateTopic(ctx, TopicConfig{Name: "t", NumPartitions: 1, ReplicationFactor: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.ErrCodeMessageQueue))
}

func TestTopicManager_ListAndExists(t *testing.T) {
	conn := &fakeConn{partitions: []kafka.Partition{
		{Topic: TopicBatchRequested, ID: 0},
		{Topic: TopicBatchRequested, ID: 1},
		{Topic: TopicRecommendations, ID: 0},
	}}
	m := NewTopicManagerWithConn(conn, nil)
	ctx := context.Background()

	topics, err := m.ListTopics(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{TopicBatchRequested, TopicRecommendations}, topics)

	ok, _ := m.TopicExists(ctx, TopicRecommendations)
	assert.True(t, ok)
	ok, _ = m.TopicExists(ctx, TopicDeadLetter)
	assert.False(t, ok)
	assert.NoError(t, m.Close())
}
