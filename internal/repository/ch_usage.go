package repository

import (
	"context"
	"strings"

	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHUsageRepository reads and batch-writes usage rows in ClickHouse (the
// analytics view; MySQL remains the source of truth).
type CHUsageRepository interface {
	ListByAccount(ctx context.Context, accountID int64, feature model.OperationType, limit, offset int) ([]model.UsageRecord, error)
	InsertBatch(ctx context.Context, rows []model.UsageRecord) error
}

type chUsageRepository struct {
	ch *sqlx.DB
}

func NewCHUsageRepository(ch *sqlx.DB) CHUsageRepository {
	return &chUsageRepository{ch: ch}
}

func (r *chUsageRepository) ListByAccount(ctx context.Context, accountID int64, feature model.OperationType, limit, offset int) ([]model.UsageRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	q := `
		SELECT id, account_id, feature, credits_used, detail, created_at
		FROM creditgw.usage_records
		WHERE account_id = ?
	`
	args := []any{accountID}

	if feature != "" {
		q += " AND feature = ?"
		args = append(args, feature.String())
	}

	q += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	var rows []model.UsageRecord
	if err := r.ch.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *chUsageRepository) InsertBatch(ctx context.Context, rows []model.UsageRecord) error {
	if len(rows) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]any, 0, len(rows)*6)

	sb.WriteString(`INSERT INTO creditgw.usage_records (id, account_id, feature, credits_used, detail, created_at) VALUES `)
	for i, rw := range rows {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, rw.ID, rw.AccountID, rw.Feature.String(), rw.Credits, rw.Detail, rw.CreatedAt)
	}

	_, err := r.ch.ExecContext(ctx, sb.String(), args...)
	return err
}
