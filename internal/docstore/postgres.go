package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`
create table if not exists documents (
  seq        bigserial,
  collection text        not null,
  id         text        not null,
  body       jsonb       not null,
  created_at timestamptz not null default now(),
  primary key (collection, id)
);
`,
	`create index if not exists documents_body_gin on documents using gin (body jsonb_path_ops);`,
	`create index if not exists documents_seq_idx on documents (collection, seq);`,
}

// PostgresStore keeps every collection in a single jsonb table.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the documents table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate documents: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Collection(name string) Collection {
	return &pgCollection{db: s.db, name: name}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

type pgCollection struct {
	db   *pgxpool.Pool
	name string
}

func (c *pgCollection) Find(ctx context.Context, filter Filter) ([]Document, error) {
	if filter == nil {
		filter = Filter{}
	}
	f, err := json.Marshal(filter)
	if err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}

	const q = `
select body
from documents
where collection = $1 and body @> $2::jsonb
order by seq;
`
	rows, err := c.db.Query(ctx, q, c.name, string(f))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Document, 0, 16)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		// @> is containment, so arrays in the filter could match supersets
		if matches(doc, filter) {
			out = append(out, doc)
		}
	}
	return out, rows.Err()
}

func (c *pgCollection) FindOne(ctx context.Context, id string) (Document, error) {
	const q = `select body from documents where collection = $1 and id = $2;`

	var raw []byte
	err := c.db.QueryRow(ctx, q, c.name, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (c *pgCollection) InsertOne(ctx context.Context, doc Document) (*InsertResult, error) {
	stored, err := prepareInsert(doc)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}

	const q = `insert into documents (collection, id, body) values ($1, $2, $3::jsonb);`
	if _, err := c.db.Exec(ctx, q, c.name, stored.ID(), string(body)); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrConflict
		}
		return nil, err
	}
	return &InsertResult{Acknowledged: true, InsertedID: stored.ID()}, nil
}

func (c *pgCollection) UpdateOne(ctx context.Context, id string, set Document, mode UpdateMode) (*UpdateResult, error) {
	fields, err := normalize(set)
	if err != nil {
		return nil, err
	}
	delete(fields, IDField)
	patch, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode update: %w", err)
	}

	// An upsert that loses an insert race against another upsert retries the
	// update once the row exists.
	for attempt := 0; attempt < 3; attempt++ {
		res, err := c.update(ctx, id, string(patch))
		if err != nil {
			return nil, err
		}
		if res.MatchedCount > 0 || mode != UpsertCreate {
			return res, nil
		}

		created, err := c.upsertInsert(ctx, id, string(patch))
		if err != nil {
			return nil, err
		}
		if created {
			return &UpdateResult{Acknowledged: true, UpsertedCount: 1, UpsertedID: stringPtr(id)}, nil
		}
	}
	return nil, ErrConflict
}

func (c *pgCollection) update(ctx context.Context, id, patch string) (*UpdateResult, error) {
	const q = `
update documents d
set body = d.body || $3::jsonb
from (select body from documents where collection = $1 and id = $2 for update) prev
where d.collection = $1 and d.id = $2
returning (prev.body || $3::jsonb) <> prev.body;
`
	var modified bool
	err := c.db.QueryRow(ctx, q, c.name, id, patch).Scan(&modified)
	if errors.Is(err, pgx.ErrNoRows) {
		return &UpdateResult{Acknowledged: true}, nil
	}
	if err != nil {
		return nil, err
	}

	res := &UpdateResult{Acknowledged: true, MatchedCount: 1}
	if modified {
		res.ModifiedCount = 1
	}
	return res, nil
}

func (c *pgCollection) upsertInsert(ctx context.Context, id, patch string) (bool, error) {
	const q = `
insert into documents (collection, id, body)
values ($1, $2, jsonb_build_object('_id', $2::text) || $3::jsonb)
on conflict (collection, id) do nothing;
`
	ct, err := c.db.Exec(ctx, q, c.name, id, patch)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (c *pgCollection) Increment(ctx context.Context, id, field string, delta int64) (*UpdateResult, error) {
	const q = `
update documents
set body = jsonb_set(body, array[$3::text], to_jsonb(coalesce((body->>$3::text)::numeric, 0) + $4::bigint))
where collection = $1 and id = $2;
`
	ct, err := c.db.Exec(ctx, q, c.name, id, field, delta)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return &UpdateResult{Acknowledged: true}, nil
	}
	return &UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}, nil
}

func (c *pgCollection) UpdateIf(ctx context.Context, id, field string, expected interface{}, set Document) (*UpdateResult, error) {
	fields, err := normalize(set)
	if err != nil {
		return nil, err
	}
	delete(fields, IDField)
	patch, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode update: %w", err)
	}
	want, err := json.Marshal(expected)
	if err != nil {
		return nil, fmt.Errorf("encode expected value: %w", err)
	}

	// an absent field and a JSON null both compare as 'null'
	const q = `
update documents d
set body = d.body || $4::jsonb
from (select body from documents where collection = $1 and id = $2 for update) prev
where d.collection = $1 and d.id = $2
  and coalesce(prev.body->$3::text, 'null'::jsonb) = $5::jsonb
returning (prev.body || $4::jsonb) <> prev.body;
`
	var modified bool
	err = c.db.QueryRow(ctx, q, c.name, id, field, string(patch), string(want)).Scan(&modified)
	if errors.Is(err, pgx.ErrNoRows) {
		return &UpdateResult{Acknowledged: true}, nil
	}
	if err != nil {
		return nil, err
	}

	res := &UpdateResult{Acknowledged: true, MatchedCount: 1}
	if modified {
		res.ModifiedCount = 1
	}
	return res, nil
}

func (c *pgCollection) DeleteOne(ctx context.Context, id string) (*DeleteResult, error) {
	const q = `delete from documents where collection = $1 and id = $2;`
	ct, err := c.db.Exec(ctx, q, c.name, id)
	if err != nil {
		return nil, err
	}
	return &DeleteResult{Acknowledged: true, DeletedCount: ct.RowsAffected()}, nil
}
