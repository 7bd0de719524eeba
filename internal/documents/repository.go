package documents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/journals"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TxRepository is the unit of work shared by posting, cancellation and
// reposting. It composes the journal, period and stock views of one transaction.
type TxRepository interface {
	journals.TxRepository
	periods.TxRepository
	inventory.TxRepository
	LockLedgerShared(ctx context.Context, companyID int64) error
	LockLedgerExclusive(ctx context.Context, companyID int64) error
	InsertDocument(ctx context.Context, doc Document) (Document, error)
	GetForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Document, error)
	UpdatePosting(ctx context.Context, id uuid.UUID, profile PostingProfile, total decimal.Decimal) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, cancelledAt *time.Time) error
	// ListInRange returns documents dated in [from, to] with their items, ordered by date.
	ListInRange(ctx context.Context, companyID int64, from, to time.Time) ([]Document, error)
}

// Repository provides document persistence.
type Repository interface {
	Get(ctx context.Context, companyID int64, id uuid.UUID) (Document, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

const uniqueNumberConstraint = "uq_documents_series_number"

const selectDocument = `SELECT id, company_id, kind, series, number, document_date, counterparty_name, warehouse_name,
operation_type, currency_code, status, debit_account_id, credit_account_id, total_amount, cancelled_at,
created_by, created_at, updated_at FROM documents`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the Postgres repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, companyID int64, id uuid.UUID) (Document, error) {
	return getDocument(ctx, r.pool, selectDocument+` WHERE company_id=$1 AND id=$2`, companyID, id)
}

// WithTx runs fn at READ COMMITTED: every statement after a lock wait sees
// the rows committed by the previous holder.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			LedgerTx:   journals.NewLedgerTx(tx),
			PeriodTx:   periods.NewPeriodTx(tx),
			MovementTx: inventory.NewMovementTx(tx),
			tx:         tx,
		})
	})
}

type txRepository struct {
	*journals.LedgerTx
	*periods.PeriodTx
	*inventory.MovementTx
	tx pgx.Tx
}

func (r *txRepository) LockLedgerShared(ctx context.Context, companyID int64) error {
	return db.LockShared(ctx, r.tx, shared.LedgerLockKey(companyID))
}

func (r *txRepository) LockLedgerExclusive(ctx context.Context, companyID int64) error {
	return db.LockExclusive(ctx, r.tx, shared.LedgerLockKey(companyID))
}

func (r *txRepository) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO documents (id, company_id, kind, series, number, document_date, counterparty_name,
warehouse_name, operation_type, currency_code, status, total_amount, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING created_at, updated_at`,
		doc.ID, doc.CompanyID, doc.Kind, doc.Series, doc.Number, doc.DocumentDate, doc.CounterpartyName,
		doc.WarehouseName, doc.OperationType, doc.CurrencyCode, doc.Status, doc.TotalAmount, nullInt(doc.CreatedBy)).
		Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, uniqueNumberConstraint) {
			return Document{}, duplicateDocument(doc)
		}
		return Document{}, err
	}
	batch := &pgx.Batch{}
	for _, item := range doc.Items {
		batch.Queue(`INSERT INTO document_items (document_id, position, item_name, item_code, quantity, price_without_vat, vat_rate)
VALUES ($1,$2,$3,$4,$5,$6,$7)`, doc.ID, item.Position, item.ItemName, nullString(item.ItemCode), item.Quantity, item.PriceWithoutVAT, item.VATRate)
	}
	if err := r.tx.SendBatch(ctx, batch).Close(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Document, error) {
	return getDocument(ctx, r.tx, selectDocument+` WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id)
}

func (r *txRepository) UpdatePosting(ctx context.Context, id uuid.UUID, profile PostingProfile, total decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE documents SET debit_account_id=$2, credit_account_id=$3, total_amount=$4, updated_at=NOW() WHERE id=$1`,
		id, profile.DebitAccountID, profile.CreditAccountID, total)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *txRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, cancelledAt *time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE documents SET status=$2, cancelled_at=COALESCE($3, cancelled_at), updated_at=NOW() WHERE id=$1`,
		id, status, cancelledAt)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *txRepository) ListInRange(ctx context.Context, companyID int64, from, to time.Time) ([]Document, error) {
	rows, err := r.tx.Query(ctx, selectDocument+`
WHERE company_id=$1 AND document_date BETWEEN $2 AND $3
ORDER BY document_date, kind, series, number`, companyID, from, to)
	if err != nil {
		return nil, err
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, err
	}
	if err := attachItems(ctx, r.tx, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func getDocument(ctx context.Context, q querier, query string, args ...any) (Document, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return Document{}, err
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return Document{}, err
	}
	if len(docs) == 0 {
		return Document{}, ErrDocumentNotFound
	}
	if err := attachItems(ctx, q, docs); err != nil {
		return Document{}, err
	}
	return docs[0], nil
}

func collectDocuments(rows pgx.Rows) ([]Document, error) {
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var (
			d             Document
			debit, credit *int64
			createdBy     *int64
		)
		if err := rows.Scan(&d.ID, &d.CompanyID, &d.Kind, &d.Series, &d.Number, &d.DocumentDate, &d.CounterpartyName,
			&d.WarehouseName, &d.OperationType, &d.CurrencyCode, &d.Status, &debit, &credit, &d.TotalAmount,
			&d.CancelledAt, &createdBy, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if debit != nil {
			d.Profile.DebitAccountID = *debit
		}
		if credit != nil {
			d.Profile.CreditAccountID = *credit
		}
		if createdBy != nil {
			d.CreatedBy = *createdBy
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func attachItems(ctx context.Context, q querier, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(docs))
	index := make(map[uuid.UUID]int, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
		index[d.ID] = i
	}
	rows, err := q.Query(ctx, `SELECT document_id, position, item_name, COALESCE(item_code, ''), quantity, price_without_vat, vat_rate
FROM document_items WHERE document_id = ANY($1) ORDER BY document_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			docID uuid.UUID
			item  Item
		)
		if err := rows.Scan(&docID, &item.Position, &item.ItemName, &item.ItemCode, &item.Quantity, &item.PriceWithoutVAT, &item.VATRate); err != nil {
			return err
		}
		i, ok := index[docID]
		if !ok {
			return errors.New("documents: item for unknown document")
		}
		docs[i].Items = append(docs[i].Items, item)
	}
	return rows.Err()
}

func duplicateDocument(doc Document) error {
	return ErrDuplicateDocument.Detailf(map[string]any{
		"kind":   doc.Kind,
		"series": doc.Series,
		"number": doc.Number,
	}, "%s %s-%s already exists", doc.Kind, doc.Series, doc.Number)
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func nullString(val string) any {
	if val == "" {
		return nil
	}
	return val
}
