// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/scholars-harvest/pkg/types"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "scholars:outcomes"

// RedisSink appends every outcome to a Redis stream with XADD so downstream
// consumers can process records while the run is still going.
type RedisSink struct {
	client *redis.Client
	stream string
	runID  string
	owned  bool
}

// NewRedisSink writes to stream through client. The caller keeps ownership
// of client.
func NewRedisSink(client *redis.Client, stream, runID string) *RedisSink {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisSink{client: client, stream: stream, runID: runID}
}

// DialRedis connects to addr and verifies the connection with PING. The
// returned sink closes the client on Close.
func DialRedis(ctx context.Context, addr, password, stream, runID string) (*RedisSink, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis sink needs an address")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	s := NewRedisSink(client, stream, runID)
	s.owned = true
	return s, nil
}

// Stream is the key outcomes are appended to.
func (s *RedisSink) Stream() string { return s.stream }

func (s *RedisSink) Write(ctx context.Context, out types.FetchOutcome) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return observe(FormatRedis, fmt.Errorf("encoding outcome for %s: %w", out.Target.ID, err))
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"run_id":    s.runID,
			"target_id": out.Target.ID.String(),
			"status":    string(out.Status()),
			"outcome":   string(payload),
		},
	}).Err()
	if err != nil {
		err = fmt.Errorf("xadd %s for %s: %w", s.stream, out.Target.ID, err)
	}
	return observe(FormatRedis, err)
}

func (s *RedisSink) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// DecodeEntry turns a stream entry written by RedisSink back into an
// outcome.
func DecodeEntry(msg redis.XMessage) (types.FetchOutcome, error) {
	var out types.FetchOutcome
	raw, ok := msg.Values["outcome"].(string)
	if !ok {
		return out, fmt.Errorf("stream entry %s has no outcome field", msg.ID)
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("decoding stream entry %s: %w", msg.ID, err)
	}
	return out, nil
}
