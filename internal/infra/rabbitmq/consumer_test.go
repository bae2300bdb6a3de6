package rabbitmq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestAttemptFromHeaders(t *testing.T) {
	assert.Equal(t, 1, attemptFromHeaders(nil))
	assert.Equal(t, 1, attemptFromHeaders(amqp.Table{"other": "x"}))
	assert.Equal(t, 3, attemptFromHeaders(amqp.Table{
		"x-death": []interface{}{amqp.Table{}, amqp.Table{}, amqp.Table{}},
	}))
	assert.Equal(t, 1, attemptFromHeaders(amqp.Table{"x-death": "garbage"}))
}

func TestBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, backoff(base, 1))
	assert.Equal(t, 400*time.Millisecond, backoff(base, 3))
	assert.Equal(t, 100*time.Millisecond, backoff(base, 0))
	assert.Equal(t, maxBackoff, backoff(base, 20))
	assert.Equal(t, maxBackoff, backoff(time.Second, 200))
}
