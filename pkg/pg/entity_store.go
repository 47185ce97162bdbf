package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/storekit/storekit/pkg/lifecycle"
	"github.com/storekit/storekit/pkg/stategraph"
)

// EntityStore implements lifecycle.Store on PostgreSQL. The transition
// commit runs the revision check, the entity update and the record insert
// in one transaction, so a crash between them cannot split the state from
// its audit trail.
type EntityStore struct {
	pool *pgxpool.Pool
}

// NewEntityStore creates a Postgres-backed entity store. The schema comes
// from the embedded migrations; run Migrate before first use.
func NewEntityStore(pool *pgxpool.Pool) *EntityStore {
	return &EntityStore{pool: pool}
}

// CreateEntity implements lifecycle.Store.
func (s *EntityStore) CreateEntity(ctx context.Context, e *lifecycle.Entity) error {
	payload, err := marshalPayload(e.Payload)
	if err != nil {
		return err
	}

	revision := e.Revision
	if revision == 0 {
		revision = 1
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO entities (entity_type, entity_id, state, revision, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		e.Type, e.ID, string(e.State), revision, payload)
	if IsDuplicateKeyError(err) {
		return lifecycle.ErrEntityExists
	}
	return err
}

// GetEntity implements lifecycle.Store.
func (s *EntityStore) GetEntity(ctx context.Context, ref lifecycle.EntityRef) (*lifecycle.Entity, error) {
	return scanEntity(s.pool.QueryRow(ctx, `
		SELECT entity_type, entity_id, state, revision, payload, created_at, updated_at
		FROM entities
		WHERE entity_type = $1 AND entity_id = $2`,
		ref.Type, ref.ID))
}

// ApplyTransition implements lifecycle.Store. The compare-and-swap is the
// WHERE revision clause on the update: with two racing transitions exactly
// one matches and the other sees zero rows.
func (s *EntityStore) ApplyTransition(ctx context.Context, p lifecycle.ApplyTransitionParams) (*lifecycle.Entity, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	current, err := scanEntity(tx.QueryRow(ctx, `
		SELECT entity_type, entity_id, state, revision, payload, created_at, updated_at
		FROM entities
		WHERE entity_type = $1 AND entity_id = $2
		FOR UPDATE`,
		p.Ref.Type, p.Ref.ID))
	if err != nil {
		return nil, err
	}
	if current.Revision != p.ExpectedRevision {
		return nil, lifecycle.ErrConcurrencyConflict
	}

	payload := current.Payload
	if len(p.Mutation) > 0 {
		if payload == nil {
			payload = make(map[string]any, len(p.Mutation))
		}
		for k, v := range p.Mutation {
			if v == nil {
				delete(payload, k)
			} else {
				payload[k] = v
			}
		}
	}
	encoded, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}

	updated, err := scanEntity(tx.QueryRow(ctx, `
		UPDATE entities
		SET state = $3, revision = revision + 1, payload = $4, updated_at = now()
		WHERE entity_type = $1 AND entity_id = $2 AND revision = $5
		RETURNING entity_type, entity_id, state, revision, payload, created_at, updated_at`,
		p.Ref.Type, p.Ref.ID, string(p.ToState), encoded, p.ExpectedRevision))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, lifecycle.ErrConcurrencyConflict
		}
		return nil, err
	}

	if p.Record != nil {
		if err := insertRecord(ctx, tx, p.Record); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

// AppendRecord implements lifecycle.Store.
func (s *EntityStore) AppendRecord(ctx context.Context, r *lifecycle.TransitionRecord) error {
	return insertRecord(ctx, s.pool, r)
}

// History implements lifecycle.Store.
func (s *EntityStore) History(ctx context.Context, ref lifecycle.EntityRef) ([]lifecycle.TransitionRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, entity_type, entity_id, from_state, to_state, event, outcome, reason, guards, created_at
		FROM transition_records
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY seq`,
		ref.Type, ref.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []lifecycle.TransitionRecord
	for rows.Next() {
		var (
			r                         lifecycle.TransitionRecord
			state, toState, eventName string
			outcome                   string
			guards                    []byte
		)
		if err := rows.Scan(&r.ID, &r.EntityType, &r.EntityID, &state, &toState, &eventName, &outcome, &r.Reason, &guards, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.FromState = stategraph.State(state)
		r.ToState = stategraph.State(toState)
		r.Event = stategraph.Event(eventName)
		r.Outcome = lifecycle.Outcome(outcome)
		if len(guards) > 0 {
			if err := json.Unmarshal(guards, &r.Guards); err != nil {
				return nil, fmt.Errorf("decode guard diagnostics: %w", err)
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// execer is the slice of pgx shared by *pgxpool.Pool and pgx.Tx, letting
// record inserts run standalone or inside a transition's transaction.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertRecord(ctx context.Context, db execer, r *lifecycle.TransitionRecord) error {
	var guards []byte
	if len(r.Guards) > 0 {
		var err error
		if guards, err = json.Marshal(r.Guards); err != nil {
			return fmt.Errorf("encode guard diagnostics: %w", err)
		}
	}

	_, err := db.Exec(ctx, `
		INSERT INTO transition_records (id, entity_type, entity_id, from_state, to_state, event, outcome, reason, guards, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		r.ID, r.EntityType, r.EntityID, string(r.FromState), string(r.ToState), string(r.Event),
		string(r.Outcome), r.Reason, guards, r.CreatedAt)
	return err
}

func scanEntity(row pgx.Row) (*lifecycle.Entity, error) {
	var (
		e       lifecycle.Entity
		state   string
		payload []byte
	)
	if err := row.Scan(&e.Type, &e.ID, &state, &e.Revision, &payload, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lifecycle.ErrEntityNotFound
		}
		return nil, err
	}
	e.State = stategraph.State(state)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("decode entity payload: %w", err)
		}
	}
	return &e, nil
}

func marshalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode entity payload: %w", err)
	}
	return encoded, nil
}
