package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// UsageAggregate is the outbox aggregate name for usage events.
const UsageAggregate = "usage"

// OutboxRepository appends transactional outbox rows. Debezium's outbox SMT
// relays each row to Kafka using the topic column; this service never reads
// the table back.
type OutboxRepository interface {
	// Insert writes one outbox event. With a nil tx it opens and commits its
	// own transaction; otherwise it joins the caller's.
	Insert(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload []byte) error
}

type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

func (r *OutboxRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *OutboxRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload []byte) error {
	const q = `
		INSERT INTO outbox (aggregate, aggregate_id, topic, payload, created_at)
		VALUES (?, ?, ?, ?, NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, aggregate, aggregateID, topic, payload)
		return err
	})
}
