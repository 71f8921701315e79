package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/creditwise/credit-gateway/internal/kafka"
	"github.com/creditwise/credit-gateway/internal/logger"
	"github.com/creditwise/credit-gateway/internal/metrics"
	"github.com/creditwise/credit-gateway/internal/model"
	"github.com/creditwise/credit-gateway/internal/repository"
	"go.uber.org/zap"
)

// UsageIngest:
// - fetches usage events from Kafka (relayed off the outbox table),
// - batches them by size/time,
// - appends them to the ClickHouse analytics table.
//
// Offsets are committed only after a successful flush, so a crash replays the
// tail. ClickHouse inserts are append-only; duplicate rows from a replay are
// collapsed by the table's ReplacingMergeTree key.
type UsageIngest struct {
	Consumer *kafka.Consumer
	Usage    repository.CHUsageRepository

	BatchSize int           // max buffered events per flush
	BatchWait time.Duration // max time to wait before flush
}

func NewUsageIngest(consumer *kafka.Consumer, usage repository.CHUsageRepository, batchSize int, batchWait time.Duration) *UsageIngest {
	return &UsageIngest{
		Consumer:  consumer,
		Usage:     usage,
		BatchSize: batchSize,
		BatchWait: batchWait,
	}
}

// Run starts the ingest loop and blocks until ctx is cancelled.
func (w *UsageIngest) Run(ctx context.Context) error {
	if w.BatchSize <= 0 {
		w.BatchSize = 200
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 300 * time.Millisecond
	}

	msgCh := make(chan kafka.Message, w.BatchSize*2)

	// Fetcher goroutine
	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				m, err := w.Consumer.Fetch(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Log.Warn("kafka fetch failed", zap.Error(err))
					time.Sleep(200 * time.Millisecond)
					continue
				}
				msgCh <- m
			}
		}
	}()

	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var (
		rows []model.UsageRecord
		last kafka.Message
		have bool
	)

	flush := func() {
		if len(rows) == 0 {
			return
		}
		if err := w.Usage.InsertBatch(ctx, rows); err != nil {
			logger.Log.Error("clickhouse insert failed", zap.Int("rows", len(rows)), zap.Error(err))
			// keep the buffer and the uncommitted offsets; retry next tick
			return
		}
		metrics.UsageIngestedTotal.Add(float64(len(rows)))
		if have {
			if err := w.Consumer.Commit(ctx, last); err != nil {
				logger.Log.Warn("kafka commit failed", zap.Error(err))
			}
		}
		logger.Log.Debug("usage flushed", zap.Int("rows", len(rows)))
		rows = rows[:0]
		have = false
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return nil

		case m, ok := <-msgCh:
			if !ok {
				flush()
				return nil
			}
			rec, perr := decodeUsage(m.Value)
			if perr != nil {
				// poison message: commit and skip
				logger.Log.Warn("bad usage event", zap.Error(perr))
				_ = w.Consumer.Commit(ctx, m)
				continue
			}
			rows = append(rows, rec)
			last, have = m, true

			if len(rows) >= w.BatchSize {
				flush()
			}

		case <-tick.C:
			flush()
		}
	}
}

// decodeUsage parses an outbox-relayed event. Debezium's outbox SMT may wrap
// the row payload in {"payload": "<json string>"}; both shapes are accepted.
func decodeUsage(raw []byte) (model.UsageRecord, error) {
	var ev model.UsageEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return model.UsageRecord{}, err
	}
	if ev.ID == "" {
		var wrapped struct {
			Payload string `json:"payload"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Payload == "" {
			return model.UsageRecord{}, errEmptyEvent
		}
		if err := json.Unmarshal([]byte(wrapped.Payload), &ev); err != nil {
			return model.UsageRecord{}, err
		}
		if ev.ID == "" {
			return model.UsageRecord{}, errEmptyEvent
		}
	}

	feature, err := model.ParseOperationType(ev.Feature)
	if err != nil {
		return model.UsageRecord{}, err
	}

	return model.UsageRecord{
		ID:        ev.ID,
		AccountID: ev.AccountID,
		Feature:   feature,
		Credits:   ev.Credits,
		Detail:    ev.Detail,
		CreatedAt: ev.CreatedAt,
	}, nil
}

type usageDecodeError string

func (e usageDecodeError) Error() string { return string(e) }

const errEmptyEvent = usageDecodeError("usage event missing id")
