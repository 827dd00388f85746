package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

// PurchaseRecordRow mirrors one row of purchase_records.
type PurchaseRecordRow struct {
	ID         string
	Fornecedor string
	Categoria  string
	Base       string
	Documento  string
	Descricao  string
	Pedido     string
	Valor      string
	Vencimento string
	CreatedAt  string
	UpdatedAt  sql.NullString
	SyncStatus string
	SyncedAt   sql.NullString
}

const recordColumns = `id, fornecedor, categoria, base, documento, descricao, pedido, valor, vencimento,
       created_at, updated_at, sync_status, synced_at`

func scanRecordRow(scanner interface{ Scan(...any) error }) (PurchaseRecordRow, error) {
	var i PurchaseRecordRow
	err := scanner.Scan(
		&i.ID,
		&i.Fornecedor,
		&i.Categoria,
		&i.Base,
		&i.Documento,
		&i.Descricao,
		&i.Pedido,
		&i.Valor,
		&i.Vencimento,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.SyncStatus,
		&i.SyncedAt,
	)
	return i, err
}

const createRecord = `-- name: CreateRecord :exec
INSERT INTO purchase_records (
    id, fornecedor, categoria, base, documento, descricao, pedido, valor, vencimento, created_at, sync_status
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending')
`

type CreateRecordParams struct {
	ID         string
	Fornecedor string
	Categoria  string
	Base       string
	Documento  string
	Descricao  string
	Pedido     string
	Valor      string
	Vencimento string
	CreatedAt  string
}

func (q *Queries) CreateRecord(ctx context.Context, arg CreateRecordParams) error {
	_, err := q.db.ExecContext(ctx, createRecord,
		arg.ID,
		arg.Fornecedor,
		arg.Categoria,
		arg.Base,
		arg.Documento,
		arg.Descricao,
		arg.Pedido,
		arg.Valor,
		arg.Vencimento,
		arg.CreatedAt,
	)
	return err
}

const updateRecord = `-- name: UpdateRecord :execrows
UPDATE purchase_records
SET fornecedor = ?, categoria = ?, base = ?, documento = ?, descricao = ?, pedido = ?,
    valor = ?, vencimento = ?, updated_at = ?, sync_status = 'pending'
WHERE id = ?
`

type UpdateRecordParams struct {
	Fornecedor string
	Categoria  string
	Base       string
	Documento  string
	Descricao  string
	Pedido     string
	Valor      string
	Vencimento string
	UpdatedAt  string
	ID         string
}

func (q *Queries) UpdateRecord(ctx context.Context, arg UpdateRecordParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateRecord,
		arg.Fornecedor,
		arg.Categoria,
		arg.Base,
		arg.Documento,
		arg.Descricao,
		arg.Pedido,
		arg.Valor,
		arg.Vencimento,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteRecord = `-- name: DeleteRecord :execrows
DELETE FROM purchase_records WHERE id = ?
`

func (q *Queries) DeleteRecord(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRecord, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getRecord = `-- name: GetRecord :one
SELECT ` + recordColumns + `
FROM purchase_records
WHERE id = ?
`

func (q *Queries) GetRecord(ctx context.Context, id string) (PurchaseRecordRow, error) {
	row := q.db.QueryRowContext(ctx, getRecord, id)
	return scanRecordRow(row)
}

const listRecords = `-- name: ListRecords :many
SELECT ` + recordColumns + `
FROM purchase_records
ORDER BY created_at, rowid
`

func (q *Queries) ListRecords(ctx context.Context) ([]PurchaseRecordRow, error) {
	return q.queryRows(ctx, listRecords)
}

const getPendingSyncRecords = `-- name: GetPendingSyncRecords :many
SELECT ` + recordColumns + `
FROM purchase_records
WHERE sync_status IN ('pending', 'error')
ORDER BY created_at, rowid
LIMIT ?
`

func (q *Queries) GetPendingSyncRecords(ctx context.Context, limit int64) ([]PurchaseRecordRow, error) {
	return q.queryRows(ctx, getPendingSyncRecords, limit)
}

const markRecordSynced = `-- name: MarkRecordSynced :exec
UPDATE purchase_records SET sync_status = 'synced', synced_at = ? WHERE id = ?
`

func (q *Queries) MarkRecordSynced(ctx context.Context, syncedAt, id string) error {
	_, err := q.db.ExecContext(ctx, markRecordSynced, syncedAt, id)
	return err
}

const markRecordSyncError = `-- name: MarkRecordSyncError :exec
UPDATE purchase_records SET sync_status = 'error' WHERE id = ?
`

func (q *Queries) MarkRecordSyncError(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, markRecordSyncError, id)
	return err
}

func (q *Queries) queryRows(ctx context.Context, query string, args ...interface{}) ([]PurchaseRecordRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PurchaseRecordRow
	for rows.Next() {
		i, err := scanRecordRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
