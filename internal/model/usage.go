package model

import "time"

// UsageRecord is one append-only row per successful billable operation.
// Never updated or deleted by normal flow.
type UsageRecord struct {
	ID        string        `db:"id"` // ULID
	AccountID int64         `db:"account_id"`
	Feature   OperationType `db:"feature"`
	Credits   int64         `db:"credits_used"`
	Detail    string        `db:"detail"` // free-form JSON payload
	CreatedAt time.Time     `db:"created_at"`
}

// UsageEvent is the payload published to Kafka (Debezium outbox SMT relays
// the outbox table based on the topic column).
type UsageEvent struct {
	ID        string    `json:"id"`
	AccountID int64     `json:"account_id"`
	Feature   string    `json:"feature"`
	Credits   int64     `json:"credits_used"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
