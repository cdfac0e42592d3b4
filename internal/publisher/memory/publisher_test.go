package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New(0)
	id1, err := pub.Publish(context.Background(), "topic-a", map[string]string{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "topic-b", "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "topic-a", msgs[0].Topic)
	assert.JSONEq(t, `{"k":"v"}`, string(msgs[0].Payload))
	assert.JSONEq(t, `"payload"`, string(msgs[1].Payload))

	msgs[0].Topic = "modified"
	assert.Equal(t, "topic-a", pub.Messages()[0].Topic, "Messages returns a copy")
}

func TestPublisherLimit(t *testing.T) {
	t.Parallel()

	pub := New(2)
	for i := 0; i < 3; i++ {
		_, err := pub.Publish(context.Background(), "status", i)
		require.NoError(t, err)
	}
	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.JSONEq(t, "1", string(msgs[0].Payload))
}

func TestPublisherRejectsUnmarshalable(t *testing.T) {
	t.Parallel()

	_, err := New(0).Publish(context.Background(), "status", make(chan int))
	require.Error(t, err)
	assert.Empty(t, New(0).Messages())
}
