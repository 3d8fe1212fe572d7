package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	redisMaxTxRetries = 32
	redisMGetChunk    = 256
)

// RedisStore keeps each document as a JSON string under
// {prefix}:{collection}:doc:{id} and indexes ids, in insertion order, in the
// sorted set {prefix}:{collection}:ids.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "jobboard"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Collection(name string) Collection {
	return &redisCollection{
		client: s.client,
		base:   fmt.Sprintf("%s:%s", s.prefix, name),
	}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

type redisCollection struct {
	client *redis.Client
	base   string
}

func (c *redisCollection) docKey(id string) string { return c.base + ":doc:" + id }
func (c *redisCollection) idsKey() string { return c.base + ":ids" }
func (c *redisCollection) seqKey() string { return c.base + ":seq" }

func (c *redisCollection) Find(ctx context.Context, filter Filter) ([]Document, error) {
	ids, err := c.client.ZRange(ctx, c.idsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}

	out := make([]Document, 0, len(ids))
	for start := 0; start < len(ids); start += redisMGetChunk {
		end := start + redisMGetChunk
		if end > len(ids) {
			end = len(ids)
		}
		keys := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, c.docKey(id))
		}

		vals, err := c.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("load documents: %w", err)
		}
		for _, v := range vals {
			raw, ok := v.(string)
			if !ok {
				// index entry without a document
				continue
			}
			doc, err := decode([]byte(raw))
			if err != nil {
				return nil, err
			}
			if matches(doc, filter) {
				out = append(out, doc)
			}
		}
	}
	return out, nil
}

func (c *redisCollection) FindOne(ctx context.Context, id string) (Document, error) {
	raw, err := c.client.Get(ctx, c.docKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return decode(raw)
}

func (c *redisCollection) InsertOne(ctx context.Context, doc Document) (*InsertResult, error) {
	stored, err := prepareInsert(doc)
	if err != nil {
		return nil, err
	}
	id := stored.ID()
	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	seq, err := c.client.Incr(ctx, c.seqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("next sequence: %w", err)
	}

	var setCmd *redis.BoolCmd
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		setCmd = pipe.SetNX(ctx, c.docKey(id), data, 0)
		pipe.ZAddNX(ctx, c.idsKey(), redis.Z{Score: float64(seq), Member: id})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	if !setCmd.Val() {
		return nil, ErrConflict
	}
	return &InsertResult{Acknowledged: true, InsertedID: id}, nil
}

func (c *redisCollection) UpdateOne(ctx context.Context, id string, set Document, mode UpdateMode) (*UpdateResult, error) {
	fields, err := normalize(set)
	if err != nil {
		return nil, err
	}

	var res *UpdateResult
	err = c.watch(ctx, id, func(tx *redis.Tx, doc Document, exists bool) error {
		if !exists {
			if mode != UpsertCreate {
				res = &UpdateResult{Acknowledged: true}
				return nil
			}
			doc = Document{IDField: id}
			applySet(doc, fields)
			res = &UpdateResult{Acknowledged: true, UpsertedCount: 1, UpsertedID: stringPtr(id)}
			return c.write(ctx, tx, id, doc, true)
		}

		res = &UpdateResult{Acknowledged: true, MatchedCount: 1}
		if !applySet(doc, fields) {
			return nil
		}
		res.ModifiedCount = 1
		return c.write(ctx, tx, id, doc, false)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *redisCollection) Increment(ctx context.Context, id, field string, delta int64) (*UpdateResult, error) {
	var res *UpdateResult
	err := c.watch(ctx, id, func(tx *redis.Tx, doc Document, exists bool) error {
		if !exists {
			res = &UpdateResult{Acknowledged: true}
			return nil
		}
		if err := incrementField(doc, field, delta); err != nil {
			return err
		}
		res = &UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}
		return c.write(ctx, tx, id, doc, false)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *redisCollection) UpdateIf(ctx context.Context, id, field string, expected interface{}, set Document) (*UpdateResult, error) {
	fields, err := normalize(set)
	if err != nil {
		return nil, err
	}

	var res *UpdateResult
	err = c.watch(ctx, id, func(tx *redis.Tx, doc Document, exists bool) error {
		res = &UpdateResult{Acknowledged: true}
		if !exists {
			return nil
		}
		same, err := fieldEquals(doc, field, expected)
		if err != nil || !same {
			return err
		}
		res.MatchedCount = 1
		if !applySet(doc, fields) {
			return nil
		}
		res.ModifiedCount = 1
		return c.write(ctx, tx, id, doc, false)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *redisCollection) DeleteOne(ctx context.Context, id string) (*DeleteResult, error) {
	var delCmd *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		delCmd = pipe.Del(ctx, c.docKey(id))
		pipe.ZRem(ctx, c.idsKey(), id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("delete document: %w", err)
	}
	return &DeleteResult{Acknowledged: true, DeletedCount: delCmd.Val()}, nil
}

// watch runs fn inside an optimistic WATCH/MULTI transaction on the document
// key, retrying when another client modified the key in between.
func (c *redisCollection) watch(ctx context.Context, id string, fn func(tx *redis.Tx, doc Document, exists bool) error) error {
	key := c.docKey(id)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fn(tx, nil, false)
		}
		if err != nil {
			return fmt.Errorf("get document: %w", err)
		}
		doc, err := decode(raw)
		if err != nil {
			return err
		}
		return fn(tx, doc, true)
	}

	for i := 0; i < redisMaxTxRetries; i++ {
		err := c.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (c *redisCollection) write(ctx context.Context, tx *redis.Tx, id string, doc Document, created bool) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	var seq int64
	if created {
		if seq, err = c.client.Incr(ctx, c.seqKey()).Result(); err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.docKey(id), data, 0)
		if created {
			pipe.ZAddNX(ctx, c.idsKey(), redis.Z{Score: float64(seq), Member: id})
		}
		return nil
	})
	return err
}
