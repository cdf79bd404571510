package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch, exchange: "appointments", source: "appointment-service"}

	err := p.Publish(context.Background(), "appointment.booked", map[string]any{"appointment_id": 5})
	require.NoError(t, err)

	assert.Equal(t, "appointments", ch.exchange)
	assert.Equal(t, "appointment.booked", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "appointment-service", ch.msg.AppId)
	assert.NotEmpty(t, ch.msg.MessageId)

	var body map[string]int
	require.NoError(t, json.Unmarshal(ch.msg.Body, &body))
	assert.Equal(t, 5, body["appointment_id"])
}

func TestPublisher_PublishError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := &Publisher{ch: ch, exchange: "appointments"}

	err := p.Publish(context.Background(), "appointment.failed", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "appointment.failed")
}

func TestPublisher_Close(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{ch: ch}

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}
