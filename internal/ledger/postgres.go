package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists the credit ledger in PostgreSQL. The schema enforces
// credits >= 0 with a CHECK constraint as the last line of defence; the
// guarded UPDATEs below are what callers actually rely on.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed ledger store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Balance returns the user's balance, defaulting to zero when no row exists.
func (s *PostgresStore) Balance(ctx context.Context, userID string) (Balance, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Balance{}, fmt.Errorf("parse user id: %w", err)
	}

	row := s.db.QueryRow(ctx, `SELECT credits, updated_at FROM user_balances WHERE user_id = $1`, uid)

	var credits int64
	var updatedAt time.Time
	if err := row.Scan(&credits, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Balance{UserID: userID, Credits: 0}, nil
		}
		return Balance{}, fmt.Errorf("select balance: %w", err)
	}

	updatedAt = updatedAt.UTC()
	return Balance{UserID: userID, Credits: credits, UpdatedAt: &updatedAt}, nil
}

// CreateTransaction records a new pending checkout attempt.
func (s *PostgresStore) CreateTransaction(ctx context.Context, tx CreditTransaction) error {
	uid, err := uuid.Parse(tx.UserID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}

	_, err = s.db.Exec(ctx, `INSERT INTO credit_transactions
        (checkout_ref, user_id, credits, unit_amount, currency, quantity, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		tx.CheckoutRef, uid, tx.Credits, tx.UnitAmount, tx.Currency, tx.Quantity, StatusPending, tx.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrDuplicateCheckout, tx.CheckoutRef)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// TransactionByCheckout fetches the transaction for a checkout reference.
func (s *PostgresStore) TransactionByCheckout(ctx context.Context, checkoutRef string) (CreditTransaction, error) {
	row := s.db.QueryRow(ctx, `SELECT checkout_ref, user_id, credits, unit_amount, currency, quantity, status, created_at, updated_at
        FROM credit_transactions WHERE checkout_ref = $1`, checkoutRef)
	return scanTransaction(row)
}

// TransactionsByUser lists a user's checkout attempts, newest first.
func (s *PostgresStore) TransactionsByUser(ctx context.Context, userID string) ([]CreditTransaction, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}

	rows, err := s.db.Query(ctx, `SELECT checkout_ref, user_id, credits, unit_amount, currency, quantity, status, created_at, updated_at
        FROM credit_transactions WHERE user_id = $1 ORDER BY created_at DESC`, uid)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []CreditTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// SettleTransaction flips pending -> succeeded and credits the balance
// atomically. The conditional UPDATE is the compare-and-swap: a concurrent
// redelivery finds zero affected rows and takes the replay path.
func (s *PostgresStore) SettleTransaction(ctx context.Context, checkoutRef string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var userID uuid.UUID
	var credits int64
	err = tx.QueryRow(ctx, `UPDATE credit_transactions
        SET status = $2, updated_at = now()
        WHERE checkout_ref = $1 AND status = $3
        RETURNING user_id, credits`,
		checkoutRef, StatusSucceeded, StatusPending).Scan(&userID, &credits)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("settle transaction: %w", err)
		}
		// Lost the CAS: either a replay of a settled transaction or an
		// invalid transition from expired.
		var status string
		if err := tx.QueryRow(ctx, `SELECT status FROM credit_transactions WHERE checkout_ref = $1`, checkoutRef).Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return false, ErrTransactionNotFound
			}
			return false, fmt.Errorf("select transaction status: %w", err)
		}
		if status == StatusSucceeded {
			return false, nil
		}
		return false, fmt.Errorf("%w: cannot settle %s transaction %s", ErrConcurrencyConflict, status, checkoutRef)
	}

	_, err = tx.Exec(ctx, `INSERT INTO user_balances (user_id, credits, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (user_id) DO UPDATE
        SET credits = user_balances.credits + EXCLUDED.credits, updated_at = now()`,
		userID, credits)
	if err != nil {
		return false, fmt.Errorf("credit balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

// ExpireTransaction flips pending -> expired with no balance effect.
func (s *PostgresStore) ExpireTransaction(ctx context.Context, checkoutRef string) error {
	cmd, err := s.db.Exec(ctx, `UPDATE credit_transactions
        SET status = $2, updated_at = now()
        WHERE checkout_ref = $1 AND status = $3`,
		checkoutRef, StatusExpired, StatusPending)
	if err != nil {
		return fmt.Errorf("expire transaction: %w", err)
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}

	var status string
	if err := s.db.QueryRow(ctx, `SELECT status FROM credit_transactions WHERE checkout_ref = $1`, checkoutRef).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTransactionNotFound
		}
		return fmt.Errorf("select transaction status: %w", err)
	}
	if status == StatusExpired {
		return nil
	}
	return fmt.Errorf("%w: cannot expire %s transaction %s", ErrConcurrencyConflict, status, checkoutRef)
}

// PurchaseResource inserts the purchase record and debits the balance in one
// database transaction. A concurrent purchase of the same pair blocks on the
// primary key until the winner commits, then observes the existing row.
func (s *PostgresStore) PurchaseResource(ctx context.Context, userID, resourceID string, cost int64) (ResourcePurchase, bool, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return ResourcePurchase{}, false, fmt.Errorf("parse user id: %w", err)
	}
	if cost < 0 {
		return ResourcePurchase{}, false, fmt.Errorf("cost must not be negative")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return ResourcePurchase{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var createdAt time.Time
	err = tx.QueryRow(ctx, `INSERT INTO resource_purchases (resource_id, user_id, credits_spent, created_at)
        VALUES ($1, $2, $3, now())
        ON CONFLICT (resource_id, user_id) DO NOTHING
        RETURNING created_at`,
		resourceID, uid, cost).Scan(&createdAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return ResourcePurchase{}, false, fmt.Errorf("insert purchase: %w", err)
		}
		// Already owned: return the existing record unchanged.
		existing, err := s.purchaseTx(ctx, tx, uid, resourceID)
		if err != nil {
			return ResourcePurchase{}, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return ResourcePurchase{}, false, fmt.Errorf("commit tx: %w", err)
		}
		return existing, true, nil
	}

	if cost > 0 {
		cmd, err := tx.Exec(ctx, `UPDATE user_balances
            SET credits = credits - $2, updated_at = now()
            WHERE user_id = $1 AND credits >= $2`,
			uid, cost)
		if err != nil {
			return ResourcePurchase{}, false, fmt.Errorf("debit balance: %w", err)
		}
		if cmd.RowsAffected() == 0 {
			// Rolling back removes the purchase row inserted above.
			return ResourcePurchase{}, false, ErrInsufficientBalance
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ResourcePurchase{}, false, fmt.Errorf("commit tx: %w", err)
	}

	return ResourcePurchase{
		ResourceID:   resourceID,
		UserID:       userID,
		CreditsSpent: cost,
		CreatedAt:    createdAt.UTC(),
	}, false, nil
}

// Purchase fetches the purchase record for a (resource, user) pair.
func (s *PostgresStore) Purchase(ctx context.Context, userID, resourceID string) (ResourcePurchase, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return ResourcePurchase{}, fmt.Errorf("parse user id: %w", err)
	}

	row := s.db.QueryRow(ctx, `SELECT resource_id, user_id, credits_spent, created_at
        FROM resource_purchases WHERE resource_id = $1 AND user_id = $2`, resourceID, uid)
	return scanPurchase(row)
}

// PurchasesByUser lists a user's purchases, newest first.
func (s *PostgresStore) PurchasesByUser(ctx context.Context, userID string) ([]ResourcePurchase, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}

	rows, err := s.db.Query(ctx, `SELECT resource_id, user_id, credits_spent, created_at
        FROM resource_purchases WHERE user_id = $1 ORDER BY created_at DESC`, uid)
	if err != nil {
		return nil, fmt.Errorf("select purchases: %w", err)
	}
	defer rows.Close()

	var res []ResourcePurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func (s *PostgresStore) purchaseTx(ctx context.Context, tx pgx.Tx, uid uuid.UUID, resourceID string) (ResourcePurchase, error) {
	row := tx.QueryRow(ctx, `SELECT resource_id, user_id, credits_spent, created_at
        FROM resource_purchases WHERE resource_id = $1 AND user_id = $2`, resourceID, uid)
	return scanPurchase(row)
}

func scanTransaction(row pgx.Row) (CreditTransaction, error) {
	var tx CreditTransaction
	var uid uuid.UUID
	var createdAt, updatedAt time.Time
	err := row.Scan(&tx.CheckoutRef, &uid, &tx.Credits, &tx.UnitAmount, &tx.Currency, &tx.Quantity, &tx.Status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CreditTransaction{}, ErrTransactionNotFound
		}
		return CreditTransaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	tx.UserID = uid.String()
	tx.CreatedAt = createdAt.UTC()
	tx.UpdatedAt = updatedAt.UTC()
	return tx, nil
}

func scanPurchase(row pgx.Row) (ResourcePurchase, error) {
	var p ResourcePurchase
	var uid uuid.UUID
	var createdAt time.Time
	err := row.Scan(&p.ResourceID, &uid, &p.CreditsSpent, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResourcePurchase{}, ErrPurchaseNotFound
		}
		return ResourcePurchase{}, fmt.Errorf("scan purchase: %w", err)
	}
	p.UserID = uid.String()
	p.CreatedAt = createdAt.UTC()
	return p, nil
}
