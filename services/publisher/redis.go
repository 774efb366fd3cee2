package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"hash/fnv"

	"github.com/redis/go-redis/v9"

	"yoktez/tezworker/internal/thesis"
	"yoktez/tezworker/logger"
	"yoktez/tezworker/pkg/errors"
)

// RedisPublisher writes thesis summaries to redis streams. Entries are
// JSON encoded then base64 wrapped so consumers never have to worry about
// field separators, and sharded across a fixed number of streams keyed by
// thesis id so consumers can scale horizontally.
type RedisPublisher struct {
	client       *redis.Client
	streamPrefix string
	shardCount   int
	maxStreamLen int64
	log          *logger.Logger
}

// NewRedisPublisher connects to redis and verifies the connection.
func NewRedisPublisher(addr, password string, db int, streamPrefix string, shardCount int, maxStreamLen int64) (*RedisPublisher, error) {
	if shardCount <= 0 {
		shardCount = 1
	}
	if streamPrefix == "" {
		streamPrefix = "theses"
	}
	if maxStreamLen <= 0 {
		maxStreamLen = 500
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("redis unreachable at %s", addr), err)
	}

	return &RedisPublisher{
		client:       client,
		streamPrefix: streamPrefix,
		shardCount:   shardCount,
		maxStreamLen: maxStreamLen,
		log:          logger.ForPublisher(),
	}, nil
}

// Publish implements Publisher.Publish
func (p *RedisPublisher) Publish(ctx context.Context, summary thesis.Summary) error {
	payload, err := EncodeSummary(summary)
	if err != nil {
		return err
	}

	stream := p.streamFor(summary.ID)
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"thesis": payload},
	}).Err()
	if err != nil {
		return errors.NewCache("publish", "stream append failed", err)
	}

	p.log.Debug().
		Str("thesis_id", summary.ID).
		Str("stream", stream).
		Msg("Published thesis")
	return nil
}

// TrimStreams implements Publisher.TrimStreams
func (p *RedisPublisher) TrimStreams(ctx context.Context) error {
	for shard := 0; shard < p.shardCount; shard++ {
		stream := fmt.Sprintf("%s:%d", p.streamPrefix, shard)
		if err := p.client.XTrimMaxLen(ctx, stream, p.maxStreamLen).Err(); err != nil {
			return errors.NewCache("trim", fmt.Sprintf("trim failed for %s", stream), err)
		}
	}
	return nil
}

// Close implements Publisher.Close
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

func (p *RedisPublisher) streamFor(thesisID string) string {
	return fmt.Sprintf("%s:%d", p.streamPrefix, ShardFor(thesisID, p.shardCount))
}

// ShardFor maps a thesis id onto a shard index.
func ShardFor(thesisID string, shardCount int) int {
	if shardCount <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(thesisID))
	return int(h.Sum32() % uint32(shardCount))
}

// EncodeSummary renders a summary as base64 wrapped JSON, the on-stream
// format consumers decode.
func EncodeSummary(summary thesis.Summary) (string, error) {
	raw, err := json.Marshal(summary)
	if err != nil {
		return "", errors.NewCache("encode", "summary encoding failed", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeSummary reverses EncodeSummary.
func DecodeSummary(payload string) (thesis.Summary, error) {
	var summary thesis.Summary
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return summary, errors.NewCache("decode", "payload is not base64", err)
	}
	if err := json.Unmarshal(raw, &summary); err != nil {
		return summary, errors.NewCache("decode", "payload is not a summary", err)
	}
	return summary, nil
}
