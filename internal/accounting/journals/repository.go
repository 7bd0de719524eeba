package journals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// TxRepository exposes the journal store inside a caller's transaction.
type TxRepository interface {
	// AccountsInCompany maps each id owned by the company to its active flag.
	AccountsInCompany(ctx context.Context, companyID int64, ids []int64) (map[int64]bool, error)
	InsertJournalEntry(ctx context.Context, in EntryInput) (Entry, error)
	InsertJournalLines(ctx context.Context, entryID int64, lines []LineInput) ([]Line, error)
	// FindByDocument returns the latest entry of the document type with its lines.
	FindByDocument(ctx context.Context, companyID int64, documentType string, documentID uuid.UUID) (Entry, error)
	// DeleteSystemEntries removes SYSTEM entries dated in [from, to]. Only reposting calls it.
	DeleteSystemEntries(ctx context.Context, companyID int64, from, to time.Time) (int, error)
}

// PostingTx is the unit of work of a manual posting.
type PostingTx interface {
	TxRepository
	periods.TxRepository
	LockLedgerShared(ctx context.Context, companyID int64) error
}

// AccountTotal is the raw turnover of one account.
type AccountTotal struct {
	AccountID int64
	Code      string
	Name      string
	Type      string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

// Repository encapsulates journal reads and the manual posting unit of work.
type Repository interface {
	List(ctx context.Context, companyID int64, filter ListFilter) ([]Entry, error)
	AccountTotals(ctx context.Context, companyID int64, from, to time.Time) ([]AccountTotal, error)
	IntegrityIssues(ctx context.Context, limit int) ([]IntegrityIssue, error)
	WithTx(ctx context.Context, fn func(context.Context, PostingTx) error) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, companyID int64, filter ListFilter) ([]Entry, error) {
	where := []string{"company_id=$1"}
	args := []any{companyID}
	if filter.From != nil {
		args = append(args, *filter.From)
		where = append(where, fmt.Sprintf("entry_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where = append(where, fmt.Sprintf("entry_date <= $%d", len(args)))
	}
	if filter.DocumentType != "" {
		args = append(args, filter.DocumentType)
		where = append(where, fmt.Sprintf("document_type = $%d", len(args)))
	}
	if filter.Source != "" {
		args = append(args, filter.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	args = append(args, filter.Limit)
	query := `SELECT id, company_id, entry_date, document_type, document_id, source, memo, COALESCE(created_by, 0), created_at
FROM journal_entries WHERE ` + strings.Join(where, " AND ") + fmt.Sprintf(` ORDER BY entry_date, id LIMIT $%d`, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	entries, err := collectEntries(rows)
	if err != nil || len(entries) == 0 {
		return entries, err
	}
	ids := make([]int64, len(entries))
	index := make(map[int64]int, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		index[e.ID] = i
	}
	lineRows, err := r.pool.Query(ctx, `SELECT id, entry_id, position, account_id, debit, credit
FROM journal_lines WHERE entry_id = ANY($1) ORDER BY entry_id, position`, ids)
	if err != nil {
		return nil, err
	}
	lines, err := collectLines(lineRows)
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		i := index[line.EntryID]
		entries[i].Lines = append(entries[i].Lines, line)
	}
	return entries, nil
}

func (r *repository) AccountTotals(ctx context.Context, companyID int64, from, to time.Time) ([]AccountTotal, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.code, a.name_de, a.type,
       COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_lines l
JOIN journal_entries e ON e.id = l.entry_id
JOIN accounts a ON a.id = l.account_id
WHERE e.company_id=$1 AND e.entry_date BETWEEN $2 AND $3
GROUP BY a.id, a.code, a.name_de, a.type
ORDER BY a.code`, companyID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountTotal
	for rows.Next() {
		var t AccountTotal
		if err := rows.Scan(&t.AccountID, &t.Code, &t.Name, &t.Type, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repository) IntegrityIssues(ctx context.Context, limit int) ([]IntegrityIssue, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.id, e.company_id, COUNT(l.id),
       COALESCE(SUM(l.debit), 0), COALESCE(SUM(l.credit), 0)
FROM journal_entries e
LEFT JOIN journal_lines l ON l.entry_id = e.id
GROUP BY e.id, e.company_id
HAVING COUNT(l.id) = 0 OR COALESCE(SUM(l.debit), 0) <> COALESCE(SUM(l.credit), 0)
ORDER BY e.id
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []IntegrityIssue
	for rows.Next() {
		var issue IntegrityIssue
		var count int
		if err := rows.Scan(&issue.EntryID, &issue.CompanyID, &count, &issue.Debit, &issue.Credit); err != nil {
			return nil, err
		}
		issue.Problem = ProblemUnbalanced
		if count == 0 {
			issue.Problem = ProblemNoLines
		}
		out = append(out, issue)
	}
	return out, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, PostingTx) error) error {
	return db.WithTxOptions(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &postingTx{LedgerTx: NewLedgerTx(tx), PeriodTx: periods.NewPeriodTx(tx), tx: tx})
	})
}

type postingTx struct {
	*LedgerTx
	*periods.PeriodTx
	tx pgx.Tx
}

func (r *postingTx) LockLedgerShared(ctx context.Context, companyID int64) error {
	return db.LockShared(ctx, r.tx, shared.LedgerLockKey(companyID))
}

// LedgerTx implements TxRepository on a pgx transaction.
type LedgerTx struct {
	tx pgx.Tx
}

// NewLedgerTx wraps tx.
func NewLedgerTx(tx pgx.Tx) *LedgerTx {
	return &LedgerTx{tx: tx}
}

func (r *LedgerTx) AccountsInCompany(ctx context.Context, companyID int64, ids []int64) (map[int64]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, is_active FROM accounts WHERE company_id=$1 AND id = ANY($2)`, companyID, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]bool, len(ids))
	for rows.Next() {
		var id int64
		var active bool
		if err := rows.Scan(&id, &active); err != nil {
			return nil, err
		}
		out[id] = active
	}
	return out, rows.Err()
}

func (r *LedgerTx) InsertJournalEntry(ctx context.Context, in EntryInput) (Entry, error) {
	entry := Entry{
		CompanyID:    in.CompanyID,
		Date:         in.Date,
		DocumentType: in.DocumentType,
		DocumentID:   in.DocumentID,
		Source:       in.Source,
		Memo:         in.Memo,
		CreatedBy:    in.CreatedBy,
	}
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, entry_date, document_type, document_id, source, memo, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
		in.CompanyID, in.Date, in.DocumentType, in.DocumentID, in.Source, in.Memo, nullInt(in.CreatedBy)).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

func (r *LedgerTx) InsertJournalLines(ctx context.Context, entryID int64, lines []LineInput) ([]Line, error) {
	batch := &pgx.Batch{}
	for idx, line := range lines {
		batch.Queue(`INSERT INTO journal_lines (entry_id, position, account_id, debit, credit)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, entryID, idx+1, line.AccountID, line.Debit, line.Credit)
	}
	results := r.tx.SendBatch(ctx, batch)
	out := make([]Line, 0, len(lines))
	for idx, line := range lines {
		stored := Line{EntryID: entryID, Position: idx + 1, AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit}
		if err := results.QueryRow().Scan(&stored.ID); err != nil {
			_ = results.Close()
			return nil, err
		}
		out = append(out, stored)
	}
	return out, results.Close()
}

func (r *LedgerTx) FindByDocument(ctx context.Context, companyID int64, documentType string, documentID uuid.UUID) (Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, company_id, entry_date, document_type, document_id, source, memo, COALESCE(created_by, 0), created_at
FROM journal_entries WHERE company_id=$1 AND document_type=$2 AND document_id=$3
ORDER BY id DESC LIMIT 1`, companyID, documentType, documentID)
	if err != nil {
		return Entry{}, err
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return Entry{}, err
	}
	if len(entries) == 0 {
		return Entry{}, ErrEntryNotFound
	}
	entry := entries[0]
	lineRows, err := r.tx.Query(ctx, `SELECT id, entry_id, position, account_id, debit, credit
FROM journal_lines WHERE entry_id=$1 ORDER BY position`, entry.ID)
	if err != nil {
		return Entry{}, err
	}
	entry.Lines, err = collectLines(lineRows)
	return entry, err
}

func (r *LedgerTx) DeleteSystemEntries(ctx context.Context, companyID int64, from, to time.Time) (int, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM journal_entries
WHERE company_id=$1 AND source='SYSTEM' AND entry_date BETWEEN $2 AND $3`, companyID, from, to)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.Date, &e.DocumentType, &e.DocumentID, &e.Source, &e.Memo, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func collectLines(rows pgx.Rows) ([]Line, error) {
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.EntryID, &l.Position, &l.AccountID, &l.Debit, &l.Credit); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
