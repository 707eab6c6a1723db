package repository

import (
	"context"
	"database/sql"

	"github.com/maheshrc27/threadcraft/internal/apperr"
	"github.com/maheshrc27/threadcraft/internal/models"
	"go.uber.org/zap"
)

// LedgerEntry is one balance change to apply atomically.
type LedgerEntry struct {
	Scope       models.CreditScope
	UserID      int64
	Amount      models.Credits
	Operation   string
	ReferenceID string
}

type CreditRepository interface {
	GetBalance(ctx context.Context, scope models.CreditScope) (models.Credits, error)
	Apply(ctx context.Context, entry LedgerEntry) (models.Credits, error)
	ListTransactions(ctx context.Context, scope models.CreditScope, limit, offset int) ([]*models.CreditTransaction, int, error)
	NetSpend(ctx context.Context, scope models.CreditScope) (models.Credits, error)
	SumByReference(ctx context.Context, scope models.CreditScope, referenceID string) (models.Credits, error)
}

type creditRepository struct {
	db *sql.DB
}

func NewCreditRepository(db *sql.DB) CreditRepository {
	return &creditRepository{db: db}
}

func (r *creditRepository) GetBalance(ctx context.Context, scope models.CreditScope) (models.Credits, error) {
	query := `SELECT balance FROM credit_accounts WHERE scope_type = $1 AND scope_id = $2`

	var balance models.Credits
	err := r.db.QueryRowContext(ctx, query, scope.Type, scope.ID).Scan(&balance)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		zap.L().Error("read credit balance", zap.String("scope", scope.String()), zap.Error(err))
		return 0, err
	}
	return balance, nil
}

// Apply changes a scope's balance by entry.Amount and appends the matching
// transaction row in one transaction. The balance row stays locked from the
// read to the commit, so concurrent changes to one scope serialize and a
// debit that would go negative fails without writing anything.
func (r *creditRepository) Apply(ctx context.Context, entry LedgerEntry) (models.Credits, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		zap.L().Error("begin ledger transaction", zap.Error(err))
		return 0, err
	}
	defer tx.Rollback()

	ensureQuery := `
		INSERT INTO credit_accounts (scope_type, scope_id, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (scope_type, scope_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, ensureQuery, entry.Scope.Type, entry.Scope.ID); err != nil {
		zap.L().Error("ensure credit account", zap.String("scope", entry.Scope.String()), zap.Error(err))
		return 0, err
	}

	lockQuery := `SELECT balance FROM credit_accounts WHERE scope_type = $1 AND scope_id = $2 FOR UPDATE`
	var balance models.Credits
	if err := tx.QueryRowContext(ctx, lockQuery, entry.Scope.Type, entry.Scope.ID).Scan(&balance); err != nil {
		zap.L().Error("lock credit account", zap.String("scope", entry.Scope.String()), zap.Error(err))
		return 0, err
	}

	next := balance + entry.Amount
	if next < 0 {
		return balance, &apperr.InsufficientCreditsError{
			Required:  int64(-entry.Amount),
			Available: int64(balance),
			ScopeType: entry.Scope.Type,
			ScopeID:   entry.Scope.ID,
		}
	}

	updateQuery := `UPDATE credit_accounts SET balance = $3, updated_at = NOW() WHERE scope_type = $1 AND scope_id = $2`
	if _, err := tx.ExecContext(ctx, updateQuery, entry.Scope.Type, entry.Scope.ID, next); err != nil {
		zap.L().Error("update credit balance", zap.String("scope", entry.Scope.String()), zap.Error(err))
		return 0, err
	}

	insertQuery := `
		INSERT INTO credit_transactions (scope_type, scope_id, user_id, amount, operation, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(ctx, insertQuery, entry.Scope.Type, entry.Scope.ID, entry.UserID, entry.Amount, entry.Operation, entry.ReferenceID); err != nil {
		zap.L().Error("insert credit transaction", zap.String("scope", entry.Scope.String()), zap.Error(err))
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		zap.L().Error("commit ledger transaction", zap.Error(err))
		return 0, err
	}
	return next, nil
}

func (r *creditRepository) ListTransactions(ctx context.Context, scope models.CreditScope, limit, offset int) ([]*models.CreditTransaction, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM credit_transactions WHERE scope_type = $1 AND scope_id = $2`
	if err := r.db.QueryRowContext(ctx, countQuery, scope.Type, scope.ID).Scan(&total); err != nil {
		zap.L().Error("count credit transactions", zap.Error(err))
		return nil, 0, err
	}

	query := `
		SELECT id, scope_type, scope_id, user_id, amount, operation, reference_id, created_at
		FROM credit_transactions
		WHERE scope_type = $1 AND scope_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.QueryContext(ctx, query, scope.Type, scope.ID, limit, offset)
	if err != nil {
		zap.L().Error("list credit transactions", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	var txs []*models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		if err := rows.Scan(&t.ID, &t.ScopeType, &t.ScopeID, &t.UserID, &t.Amount, &t.Operation, &t.ReferenceID, &t.CreatedAt); err != nil {
			zap.L().Error("scan credit transaction", zap.Error(err))
			return nil, 0, err
		}
		txs = append(txs, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// NetSpend is the total debited from a scope less everything refunded to
// it. Grants are not spend.
func (r *creditRepository) NetSpend(ctx context.Context, scope models.CreditScope) (models.Credits, error) {
	query := `
		SELECT COALESCE(-SUM(amount), 0)
		FROM credit_transactions
		WHERE scope_type = $1 AND scope_id = $2 AND operation <> $3
	`

	var spend models.Credits
	if err := r.db.QueryRowContext(ctx, query, scope.Type, scope.ID, models.OpGrant).Scan(&spend); err != nil {
		zap.L().Error("compute net spend", zap.Error(err))
		return 0, err
	}
	return spend, nil
}

// SumByReference is the signed total of every transaction tagged with a
// reference, e.g. a generation request or a scheduled post.
func (r *creditRepository) SumByReference(ctx context.Context, scope models.CreditScope, referenceID string) (models.Credits, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM credit_transactions
		WHERE scope_type = $1 AND scope_id = $2 AND reference_id = $3
	`
	var sum models.Credits
	if err := r.db.QueryRowContext(ctx, query, scope.Type, scope.ID, referenceID).Scan(&sum); err != nil {
		zap.L().Error("sum transactions by reference", zap.Error(err))
		return 0, err
	}
	return sum, nil
}
