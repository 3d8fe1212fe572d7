// Package docstore is a small collection-oriented document store used by the
// job and application repositories. Documents are JSON objects keyed by an
// opaque string id held in the "_id" field.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

const IDField = "_id"

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("document changed concurrently")
)

// Document is a schemaless JSON object.
type Document map[string]interface{}

// ID returns the document identifier, or "" when absent.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Filter selects documents whose top-level fields equal the given values.
// An empty filter matches every document.
type Filter map[string]interface{}

// UpdateMode states what UpdateOne does when no document has the given id.
type UpdateMode int

const (
	// Update leaves the collection unchanged when the id is unknown.
	Update UpdateMode = iota
	// UpsertCreate creates a document with the given id and the set fields.
	UpsertCreate
)

func (m UpdateMode) String() string {
	if m == UpsertCreate {
		return "upsert"
	}
	return "update"
}

type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

type UpdateResult struct {
	Acknowledged  bool    `json:"acknowledged"`
	MatchedCount  int64   `json:"matchedCount"`
	ModifiedCount int64   `json:"modifiedCount"`
	UpsertedCount int64   `json:"upsertedCount"`
	UpsertedID    *string `json:"upsertedId"`
}

type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

// Collection is a named set of documents.
type Collection interface {
	Find(ctx context.Context, filter Filter) ([]Document, error)
	// FindOne returns ErrNotFound when no document has the id.
	FindOne(ctx context.Context, id string) (Document, error)
	InsertOne(ctx context.Context, doc Document) (*InsertResult, error)
	UpdateOne(ctx context.Context, id string, set Document, mode UpdateMode) (*UpdateResult, error)
	// Increment atomically adds delta to a numeric field, treating an absent
	// field as zero. It never creates documents.
	Increment(ctx context.Context, id, field string, delta int64) (*UpdateResult, error)
	// UpdateIf applies set only while field still holds expected, an absent
	// field counting as nil. MatchedCount is 0 when the id is unknown or the
	// value differs. It never creates documents.
	UpdateIf(ctx context.Context, id, field string, expected interface{}, set Document) (*UpdateResult, error)
	DeleteOne(ctx context.Context, id string) (*DeleteResult, error)
}

// Store hands out collections. Stores do not own their connections; the
// caller that opened the pool or client closes it.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
}

// normalize round-trips doc through JSON so every backend sees the same
// value types (float64, string, bool, []interface{}, map[string]interface{}).
func normalize(doc Document) (Document, error) {
	if doc == nil {
		return Document{}, nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return decode(b)
}

func decode(b []byte) (Document, error) {
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if out == nil {
		out = Document{}
	}
	return out, nil
}

// prepareInsert copies doc and assigns an id when the caller did not supply one.
func prepareInsert(doc Document) (Document, error) {
	out, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	if out.ID() == "" {
		out[IDField] = uuid.New().String()
	}
	return out, nil
}

// applySet merges set into doc and reports whether any field changed.
func applySet(doc, set Document) bool {
	changed := false
	for k, v := range set {
		if k == IDField {
			continue
		}
		if cur, ok := doc[k]; ok && reflect.DeepEqual(cur, v) {
			continue
		}
		doc[k] = v
		changed = true
	}
	return changed
}

func matches(doc Document, filter Filter) bool {
	if len(filter) == 0 {
		return true
	}
	norm, err := normalize(Document(filter))
	if err != nil {
		return false
	}
	for k, want := range norm {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// fieldEquals compares doc[field] with expected after JSON normalization.
func fieldEquals(doc Document, field string, expected interface{}) (bool, error) {
	want, err := normalize(Document{"v": expected})
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(doc[field], want["v"]), nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// incrementField applies field += delta on doc in place.
func incrementField(doc Document, field string, delta int64) error {
	cur, ok := toFloat(doc[field])
	if !ok {
		return fmt.Errorf("field %q is not numeric", field)
	}
	doc[field] = cur + float64(delta)
	return nil
}

func stringPtr(s string) *string { return &s }
