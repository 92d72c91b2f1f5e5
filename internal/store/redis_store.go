package store

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/micic-mihajlo/semantic-cache/internal/breaker"
	"github.com/micic-mihajlo/semantic-cache/internal/classifier"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultIndexName = "cache_idx"
	defaultKeyPrefix = "cache:"
)

// redisCommander is the minimal surface EnsureSchema and Search dispatch
// their FT.* commands through. It exists so the RediSearch command
// shapes and RESP2 reply parsing can be exercised by a fake in tests,
// without a live Redis + RediSearch instance — the rest of the service
// still only ever sees the Store interface.
type redisCommander interface {
	Do(ctx context.Context, args ...interface{}) (interface{}, error)
}

// redisClientCommander adapts *redis.Client's Do (which returns a
// *redis.Cmd) to the plain (interface{}, error) shape redisCommander
// expects.
type redisClientCommander struct {
	client *redis.Client
}

func (c redisClientCommander) Do(ctx context.Context, args ...interface{}) (interface{}, error) {
	return c.client.Do(ctx, args...).Result()
}

// RedisStore is the production Store backed by Redis + RediSearch. All
// FT.* command shapes live in this file, dispatched through cmd (a
// redisCommander) so the rest of the service never depends on a
// particular typed RediSearch client surface.
type RedisStore struct {
	rdb     *redis.Client
	cmd     redisCommander
	breaker *breaker.Breaker
	log     zerolog.Logger

	indexName string
	keyPrefix string
	dim       int
}

// NewRedisStore wraps an already-connected go-redis client. Call
// EnsureSchema once at startup before serving traffic.
func NewRedisStore(rdb *redis.Client, br *breaker.Breaker, log zerolog.Logger, dim int) *RedisStore {
	if dim <= 0 {
		dim = 384
	}
	return &RedisStore{
		rdb:       rdb,
		cmd:       redisClientCommander{client: rdb},
		breaker:   br,
		log:       log,
		indexName: defaultIndexName,
		keyPrefix: defaultKeyPrefix,
		dim:       dim,
	}
}

// newRedisStoreWithCommander builds a RedisStore around a fake
// redisCommander for unit tests, bypassing the real go-redis client and
// TxPipeline-based Store path entirely — it exercises EnsureSchema and
// Search/knnSearch/parseSearchReply only.
func newRedisStoreWithCommander(cmd redisCommander, br *breaker.Breaker, dim int) *RedisStore {
	if dim <= 0 {
		dim = 384
	}
	return &RedisStore{
		cmd:       cmd,
		breaker:   br,
		log:       zerolog.Nop(),
		indexName: defaultIndexName,
		keyPrefix: defaultKeyPrefix,
		dim:       dim,
	}
}

// EnsureSchema configures shortest-TTL-first eviction and creates the
// RediSearch index if it does not already exist. A failure to set the
// eviction policy is logged and does not prevent startup — some
// managed Redis deployments disallow runtime CONFIG SET.
func (s *RedisStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.cmd.Do(ctx, "CONFIG", "SET", "maxmemory-policy", "volatile-ttl"); err != nil {
		s.log.Warn().Err(err).Msg("could not set volatile-ttl eviction policy, continuing")
	}

	if _, err := s.cmd.Do(ctx, "FT.INFO", s.indexName); err == nil {
		return nil
	}

	if _, err := s.cmd.Do(ctx, s.createIndexArgs()...); err != nil {
		return fmt.Errorf("create cache index: %w", err)
	}
	s.log.Info().Str("index", s.indexName).Msg("created cache vector index")
	return nil
}

// createIndexArgs builds the FT.CREATE argument list for this store's
// index: a FLAT vector field over embedding (float32, cosine distance),
// topic as a filterable TAG field, query/response/class as TEXT fields
// and created_at as a NUMERIC field.
func (s *RedisStore) createIndexArgs() []interface{} {
	return []interface{}{
		"FT.CREATE", s.indexName,
		"ON", "HASH",
		"PREFIX", "1", s.keyPrefix,
		"SCHEMA",
		"query", "TEXT",
		"response", "TEXT",
		"class", "TEXT",
		"topic", "TAG",
		"created_at", "NUMERIC",
		"embedding", "VECTOR", "FLAT", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(s.dim),
		"DISTANCE_METRIC", "COSINE",
	}
}

func cacheKey(prefix, query string) string {
	sum := sha256.Sum256([]byte(query))
	return prefix + hex.EncodeToString(sum[:])
}

func packFloat32(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// Store writes the entry at its content-addressed key and sets its
// TTL. Overwriting an existing key (same query) replaces the hash
// fields and refreshes the expiration — it never creates a duplicate
// entry for the same query.
func (s *RedisStore) Store(ctx context.Context, entry CacheEntry, ttl time.Duration) error {
	if !s.breaker.Allow() {
		s.log.Warn().Msg("store breaker open, skipping cache write")
		return nil
	}

	key := cacheKey(s.keyPrefix, entry.Query)
	fields := map[string]interface{}{
		"query":      entry.Query,
		"response":   entry.Response,
		"class":      string(entry.Class),
		"topic":      string(entry.Topic),
		"created_at": entry.CreatedAt.Unix(),
		"embedding":  packFloat32(entry.Embedding),
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		s.breaker.RecordFailure()
		s.log.Error().Err(err).Msg("cache store write failed")
		return err
	}
	s.breaker.RecordSuccess()
	return nil
}

// Search implements the two-phase partitioned-then-global policy from
// the vector store's design: a topic-filtered KNN-1 search first (when
// topic is a specific partition), falling back to an unfiltered KNN-1
// search when the partitioned search has no eligible match.
func (s *RedisStore) Search(ctx context.Context, embedding []float32, threshold float64, topic classifier.Topic) (*SearchResult, error) {
	if !s.breaker.Allow() {
		return nil, nil
	}

	vec := packFloat32(embedding)

	if topic != classifier.TopicGeneral && topic != "" {
		res, err := s.knnSearch(ctx, vec, threshold, topic)
		if err != nil {
			s.breaker.RecordFailure()
			return nil, err
		}
		if res != nil {
			s.breaker.RecordSuccess()
			return res, nil
		}
	}

	res, err := s.knnSearch(ctx, vec, threshold, "")
	if err != nil {
		s.breaker.RecordFailure()
		return nil, err
	}
	s.breaker.RecordSuccess()
	return res, nil
}

// knnSearch runs a single FT.SEARCH KNN-1 query, optionally filtered to
// a topic tag, and returns nil (no error) when the result set is empty
// or the nearest neighbor exceeds threshold.
func (s *RedisStore) knnSearch(ctx context.Context, vec []byte, threshold float64, topic classifier.Topic) (*SearchResult, error) {
	filter := "*"
	if topic != "" {
		filter = fmt.Sprintf("(@topic:{%s})", string(topic))
	}
	queryStr := fmt.Sprintf("%s=>[KNN 1 @embedding $vec AS distance]", filter)

	args := []interface{}{
		"FT.SEARCH", s.indexName, queryStr,
		"PARAMS", "2", "vec", vec,
		"SORTBY", "distance",
		"RETURN", "4", "query", "response", "topic", "distance",
		"DIALECT", "2",
	}

	reply, err := s.cmd.Do(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseSearchReply(reply, threshold)
}

// parseSearchReply decodes the RESP2 shape of FT.SEARCH's reply:
// [count, key1, [field, value, field, value, ...], key2, ...]. It is
// defensive about shape mismatches — any unexpected reply is treated
// as no hit rather than an error, since a parsing surprise should not
// masquerade as a store outage.
func parseSearchReply(reply interface{}, threshold float64) (*SearchResult, error) {
	arr, ok := reply.([]interface{})
	if !ok || len(arr) < 3 {
		return nil, nil
	}

	fieldsRaw, ok := arr[2].([]interface{})
	if !ok {
		return nil, nil
	}

	fields := make(map[string]string, len(fieldsRaw)/2)
	for i := 0; i+1 < len(fieldsRaw); i += 2 {
		k, _ := fieldsRaw[i].(string)
		v, _ := fieldsRaw[i+1].(string)
		fields[k] = v
	}

	distance, err := strconv.ParseFloat(fields["distance"], 64)
	if err != nil {
		return nil, nil
	}
	if distance > threshold {
		return nil, nil
	}

	entry := CacheEntry{
		Query:    fields["query"],
		Response: fields["response"],
		Topic:    classifier.NormalizeTopic(fields["topic"]),
	}
	return &SearchResult{Entry: entry, Distance: distance}, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
