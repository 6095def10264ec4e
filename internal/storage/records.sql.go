package storage

import (
	"context"
	"database/sql"
)

const getRecord = `-- name: GetRecord :one
SELECT partition_key, payload, version, created_at, updated_at
FROM ledger_records
WHERE partition_key = ?
`

type LedgerRecord struct {
	PartitionKey string
	Payload      string
	Version      int64
	CreatedAt    sql.NullTime
	UpdatedAt    sql.NullTime
}

func (q *Queries) GetRecord(ctx context.Context, partitionKey string) (LedgerRecord, error) {
	row := q.db.QueryRowContext(ctx, getRecord, partitionKey)
	var i LedgerRecord
	err := row.Scan(
		&i.PartitionKey,
		&i.Payload,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const upsertRecord = `-- name: UpsertRecord :exec
INSERT INTO ledger_records (partition_key, payload)
VALUES (?, ?)
ON CONFLICT (partition_key) DO UPDATE SET
    payload = excluded.payload,
    version = ledger_records.version + 1,
    updated_at = CURRENT_TIMESTAMP
`

type UpsertRecordParams struct {
	PartitionKey string
	Payload      string
}

func (q *Queries) UpsertRecord(ctx context.Context, arg UpsertRecordParams) error {
	_, err := q.db.ExecContext(ctx, upsertRecord, arg.PartitionKey, arg.Payload)
	return err
}

const deleteRecord = `-- name: DeleteRecord :exec
DELETE FROM ledger_records
WHERE partition_key = ?
`

func (q *Queries) DeleteRecord(ctx context.Context, partitionKey string) error {
	_, err := q.db.ExecContext(ctx, deleteRecord, partitionKey)
	return err
}
