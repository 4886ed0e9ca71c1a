package broker

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_NilClientFallsBackToLocalDelivery(t *testing.T) {
	var gotChannel string
	var gotPayload []byte
	b := New(nil, logrus.NewEntry(logrus.New()), func(channel string, payload []byte) {
		gotChannel = channel
		gotPayload = payload
	})

	b.Publish(context.Background(), "chat:42", []byte(`{"type":"message"}`))

	assert.Equal(t, "chat:42", gotChannel)
	assert.JSONEq(t, `{"type":"message"}`, string(gotPayload))
}

func TestPublish_FallbackPreservesPerChannelOrder(t *testing.T) {
	var order []string
	b := New(nil, logrus.NewEntry(logrus.New()), func(channel string, payload []byte) {
		order = append(order, string(payload))
	})

	b.Publish(context.Background(), "chat:1", []byte("first"))
	b.Publish(context.Background(), "chat:1", []byte("second"))

	require.Len(t, order, 2)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestSubscribe_NilClientIsANoOp(t *testing.T) {
	b := New(nil, logrus.NewEntry(logrus.New()), func(string, []byte) {})

	b.Subscribe("chat:1", func(string, []byte) {
		t.Fatal("handler must not fire without a broker connection")
	})

	assert.Zero(t, b.SubscriptionCount())
}
