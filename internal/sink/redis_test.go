// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// setupTestRedis connects to a local Redis on DB 15 and skips the test when
// none is running. The integration build tag runs the same checks against a
// container.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

// checkRedisStream writes three outcomes and reads them back from the
// stream in order.
func checkRedisStream(t *testing.T, client *redis.Client) {
	t.Helper()
	ctx := context.Background()
	s := NewRedisSink(client, "test:outcomes", "run-1")
	assert.Equal(t, "test:outcomes", s.Stream())

	require.NoError(t, s.Write(ctx, record(7, "Ada", "Lovelace")))
	require.NoError(t, s.Write(ctx, partial(8, "Alan", "Turing")))
	require.NoError(t, s.Write(ctx, failure(9)))
	require.NoError(t, s.Close())
	require.NoError(t, client.Ping(ctx).Err(), "borrowed client stays open")

	msgs, err := client.XRange(ctx, "test:outcomes", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "run-1", msgs[0].Values["run_id"])
	assert.Equal(t, "7", msgs[0].Values["target_id"])
	assert.Equal(t, "partial", msgs[1].Values["status"])

	out, err := DecodeEntry(msgs[2])
	require.NoError(t, err)
	require.NotNil(t, out.Failure)
	assert.Equal(t, types.FailureTransient, out.Failure.Kind)
	assert.Equal(t, types.Identifier(9), out.Target.ID)
}

func TestRedisSink(t *testing.T) {
	checkRedisStream(t, setupTestRedis(t))
}

func TestRedisSinkDefaultStream(t *testing.T) {
	s := NewRedisSink(nil, "", "run")
	assert.Equal(t, DefaultStream, s.Stream())
	assert.NoError(t, s.Close(), "borrowed client is not closed")
}

func TestDecodeEntryRejectsForeignEntries(t *testing.T) {
	_, err := DecodeEntry(redis.XMessage{ID: "1-0", Values: map[string]any{"foo": "bar"}})
	assert.Error(t, err)
	_, err = DecodeEntry(redis.XMessage{ID: "1-1", Values: map[string]any{"outcome": "{"}})
	assert.Error(t, err)
}
