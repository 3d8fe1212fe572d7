package docstore

import (
	"context"
	"sync"
)

// MemoryStore keeps collections in process memory. Documents are copied on
// the way in and out so callers never share maps with the store.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]*memoryCollection
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memoryCollection)}
}

func (s *MemoryStore) Collection(name string) Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		c = &memoryCollection{docs: make(map[string]Document)}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

type memoryCollection struct {
	mu    sync.RWMutex
	order []string
	docs  map[string]Document
}

func (c *memoryCollection) Find(ctx context.Context, filter Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		doc := c.docs[id]
		if !matches(doc, filter) {
			continue
		}
		cp, err := normalize(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

func (c *memoryCollection) FindOne(ctx context.Context, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return normalize(doc)
}

func (c *memoryCollection) InsertOne(ctx context.Context, doc Document) (*InsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stored, err := prepareInsert(doc)
	if err != nil {
		return nil, err
	}
	id := stored.ID()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.docs[id]; exists {
		return nil, ErrConflict
	}
	c.docs[id] = stored
	c.order = append(c.order, id)
	return &InsertResult{Acknowledged: true, InsertedID: id}, nil
}

func (c *memoryCollection) UpdateOne(ctx context.Context, id string, set Document, mode UpdateMode) (*UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields, err := normalize(set)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		if mode != UpsertCreate {
			return &UpdateResult{Acknowledged: true}, nil
		}
		doc = Document{IDField: id}
		applySet(doc, fields)
		c.docs[id] = doc
		c.order = append(c.order, id)
		return &UpdateResult{Acknowledged: true, UpsertedCount: 1, UpsertedID: stringPtr(id)}, nil
	}

	res := &UpdateResult{Acknowledged: true, MatchedCount: 1}
	if applySet(doc, fields) {
		res.ModifiedCount = 1
	}
	return res, nil
}

func (c *memoryCollection) Increment(ctx context.Context, id, field string, delta int64) (*UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return &UpdateResult{Acknowledged: true}, nil
	}
	if err := incrementField(doc, field, delta); err != nil {
		return nil, err
	}
	return &UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}, nil
}

func (c *memoryCollection) UpdateIf(ctx context.Context, id, field string, expected interface{}, set Document) (*UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fields, err := normalize(set)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	doc, ok := c.docs[id]
	if !ok {
		return &UpdateResult{Acknowledged: true}, nil
	}
	same, err := fieldEquals(doc, field, expected)
	if err != nil || !same {
		return &UpdateResult{Acknowledged: true}, err
	}

	res := &UpdateResult{Acknowledged: true, MatchedCount: 1}
	if applySet(doc, fields) {
		res.ModifiedCount = 1
	}
	return res, nil
}

func (c *memoryCollection) DeleteOne(ctx context.Context, id string) (*DeleteResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[id]; !ok {
		return &DeleteResult{Acknowledged: true}, nil
	}
	delete(c.docs, id)
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return &DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}
