package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"week_notification_agent/internal/domain/contract"

	"github.com/lib/pq"
)

// Custom errors
var ErrContractNotFound = errors.New("contract not found")

type PostgresContractRepository struct {
	db *sql.DB
}

func NewPostgresContractRepository(db *sql.DB) *PostgresContractRepository {
	return &PostgresContractRepository{db: db}
}

const contractColumns = `id, start_date, presets, created_at, updated_at`

// Upsert inserts the contract or reactivates the existing row with the same id.
// A missing start date never erases a stored one.
func (r *PostgresContractRepository) Upsert(ctx context.Context, c *contract.Contract) error {
	query := `INSERT INTO contracts (id, start_date, presets)
               VALUES ($1, $2, $3)
               ON CONFLICT (id) DO UPDATE
               SET presets = EXCLUDED.presets,
                   start_date = COALESCE(EXCLUDED.start_date, contracts.start_date),
                   updated_at = NOW()
               RETURNING start_date, created_at, updated_at`

	presets := []string(c.Presets)
	if presets == nil {
		presets = []string{}
	}
	err := r.db.QueryRowContext(ctx, query, c.ID, nullDate(c.StartDate), pq.Array(presets)).
		Scan(&c.StartDate, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error upserting contract %d: %w", c.ID, err)
	}
	return nil
}

// Remove deletes delivery records and the contract in one transaction.
func (r *PostgresContractRepository) Remove(ctx context.Context, id int64) error {
	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for contract removal: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	if _, err := txn.ExecContext(ctx, `DELETE FROM sent_notifications WHERE contract_id = $1`, id); err != nil {
		return fmt.Errorf("error purging deliveries of contract %d: %w", id, err)
	}
	if _, err := txn.ExecContext(ctx, `DELETE FROM contracts WHERE id = $1`, id); err != nil {
		return fmt.Errorf("error deleting contract %d: %w", id, err)
	}
	return txn.Commit()
}

func (r *PostgresContractRepository) GetByID(ctx context.Context, id int64) (*contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE id = $1`
	c, err := scanContract(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContractNotFound
		}
		return nil, fmt.Errorf("error getting contract by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresContractRepository) ListActive(ctx context.Context) ([]*contract.Contract, error) {
	query := `SELECT ` + contractColumns + ` FROM contracts WHERE start_date IS NOT NULL ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active contracts: %w", err)
	}
	defer rows.Close()

	contracts := make([]*contract.Contract, 0)
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning active contract: %w", err)
		}
		contracts = append(contracts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active contracts: %w", err)
	}
	return contracts, nil
}

func (r *PostgresContractRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM contracts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error listing contract ids: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning contract id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contract ids: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContract(row rowScanner) (*contract.Contract, error) {
	c := &contract.Contract{}
	var presets []string
	if err := row.Scan(&c.ID, &c.StartDate, pq.Array(&presets), &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Presets = contract.NewPresets(presets...)
	return c, nil
}
