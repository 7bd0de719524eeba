package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository provides account persistence.
type Repository interface {
	List(ctx context.Context, companyID int64) ([]Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes account operations inside a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, companyID, id int64) (Account, error)
	FindByIDs(ctx context.Context, companyID int64, ids []int64) ([]Account, error)
	UsedAccountIDs(ctx context.Context, ids []int64) (map[int64]bool, error)
	CodeExists(ctx context.Context, companyID int64, code string, excludeID int64) (bool, error)
	Codes(ctx context.Context, companyID int64) (map[string]bool, error)
	Insert(ctx context.Context, companyID int64, in CreateInput) (Account, error)
	Save(ctx context.Context, acc Account) (Account, error)
	Delete(ctx context.Context, companyID int64, ids []int64) (int, error)
}

const uniqueCodeConstraint = "uq_accounts_company_code"

const selectAccount = `SELECT id, company_id, code, name_de, name_en, type, is_active, created_at, updated_at FROM accounts`

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, selectAccount+` WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetForUpdate(ctx context.Context, companyID, id int64) (Account, error) {
	row := r.tx.QueryRow(ctx, selectAccount+` WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id)
	acc, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrAccountNotFound
	}
	return acc, err
}

func (r *txRepository) FindByIDs(ctx context.Context, companyID int64, ids []int64) ([]Account, error) {
	rows, err := r.tx.Query(ctx, selectAccount+` WHERE company_id=$1 AND id = ANY($2) ORDER BY code`, companyID, ids)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (r *txRepository) UsedAccountIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT account_id FROM journal_lines WHERE account_id = ANY($1)
UNION SELECT debit_account_id FROM documents WHERE debit_account_id = ANY($1)
UNION SELECT credit_account_id FROM documents WHERE credit_account_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	used := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		used[id] = true
	}
	return used, rows.Err()
}

func (r *txRepository) CodeExists(ctx context.Context, companyID int64, code string, excludeID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE company_id=$1 AND code=$2 AND id<>$3)`, companyID, code, excludeID).Scan(&exists)
	return exists, err
}

func (r *txRepository) Codes(ctx context.Context, companyID int64) (map[string]bool, error) {
	rows, err := r.tx.Query(ctx, `SELECT code FROM accounts WHERE company_id=$1`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	codes := make(map[string]bool)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes[code] = true
	}
	return codes, rows.Err()
}

func (r *txRepository) Insert(ctx context.Context, companyID int64, in CreateInput) (Account, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name_de, name_en, type, is_active)
VALUES ($1,$2,$3,$4,$5,TRUE)
RETURNING id, company_id, code, name_de, name_en, type, is_active, created_at, updated_at`,
		companyID, in.Code, in.NameDE, in.NameEN, in.Type)
	acc, err := scanAccount(row)
	if db.IsUniqueViolation(err, uniqueCodeConstraint) {
		return Account{}, ErrDuplicateAccount
	}
	return acc, err
}

func (r *txRepository) Save(ctx context.Context, acc Account) (Account, error) {
	row := r.tx.QueryRow(ctx, `UPDATE accounts SET code=$3, name_de=$4, name_en=$5, type=$6, is_active=$7, updated_at=NOW()
WHERE company_id=$1 AND id=$2
RETURNING id, company_id, code, name_de, name_en, type, is_active, created_at, updated_at`,
		acc.CompanyID, acc.ID, acc.Code, acc.NameDE, acc.NameEN, acc.Type, acc.IsActive)
	saved, err := scanAccount(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Account{}, ErrAccountNotFound
	case db.IsUniqueViolation(err, uniqueCodeConstraint):
		return Account{}, ErrDuplicateAccount
	}
	return saved, err
}

func (r *txRepository) Delete(ctx context.Context, companyID int64, ids []int64) (int, error) {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM accounts WHERE company_id=$1 AND id = ANY($2)`, companyID, ids)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return 0, ErrAccountInUse
		}
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.NameDE, &a.NameEN, &a.Type, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}
