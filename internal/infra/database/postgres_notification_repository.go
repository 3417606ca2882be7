// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"week_notification_agent/internal/domain/notification"
)

// Custom errors specific to notification repository
var ErrAlreadyDelivered = errors.New("notification already delivered to contract (notification_id, contract_id)")

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

// --- Catalog Methods ---

func (r *PostgresNotificationRepository) ListRules(ctx context.Context) ([]*notification.Rule, error) {
	query := `SELECT id, preset, week, text, info_materials
               FROM notifications
               ORDER BY week, id` // Earlier weeks are delivered first within a tick
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying notification rules: %w", err)
	}
	defer rows.Close()

	rules := make([]*notification.Rule, 0)
	for rows.Next() {
		rule := &notification.Rule{}
		if err := rows.Scan(&rule.ID, &rule.Preset, &rule.WeekOffset, &rule.Text, &rule.InfoMaterials); err != nil {
			return nil, fmt.Errorf("error scanning notification rule row: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rule rows: %w", err)
	}
	return rules, nil
}

func (r *PostgresNotificationRepository) UpsertRules(ctx context.Context, rules []*notification.Rule) error {
	if len(rules) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for rule upsert: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	stmt, err := txn.PrepareContext(ctx, `INSERT INTO notifications (id, preset, week, text, info_materials)
                                         VALUES ($1, $2, $3, $4, $5)
                                         ON CONFLICT (id) DO UPDATE
                                         SET preset = EXCLUDED.preset, week = EXCLUDED.week,
                                             text = EXCLUDED.text, info_materials = EXCLUDED.info_materials`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for rule upsert: %w", err)
	}
	defer stmt.Close()

	for _, rule := range rules {
		if _, err := stmt.ExecContext(ctx, rule.ID, rule.Preset, rule.WeekOffset, rule.Text, rule.InfoMaterials); err != nil {
			return fmt.Errorf("error upserting notification rule %d: %w", rule.ID, err)
		}
	}

	return txn.Commit()
}

// --- Ledger Methods ---

func (r *PostgresNotificationRepository) Has(ctx context.Context, notificationID, contractID int64) (bool, error) {
	query := `SELECT EXISTS (
                   SELECT 1 FROM sent_notifications WHERE notification_id = $1 AND contract_id = $2
               )`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, notificationID, contractID).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking delivery (N:%d, C:%d): %w", notificationID, contractID, err)
	}
	return exists, nil
}

// Record inserts the delivery pair. The primary key keeps it unique; a repeated
// insert changes nothing and reports ErrAlreadyDelivered.
func (r *PostgresNotificationRepository) Record(ctx context.Context, notificationID, contractID int64) error {
	query := `INSERT INTO sent_notifications (notification_id, contract_id)
               VALUES ($1, $2)
               ON CONFLICT ON CONSTRAINT sent_notifications_pkey DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, notificationID, contractID)
	if err != nil {
		return fmt.Errorf("error recording delivery (N:%d, C:%d): %w", notificationID, contractID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows for delivery (N:%d, C:%d): %w", notificationID, contractID, err)
	}
	if affected == 0 {
		return ErrAlreadyDelivered
	}
	return nil
}

func (r *PostgresNotificationRepository) Purge(ctx context.Context, contractID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sent_notifications WHERE contract_id = $1`, contractID); err != nil {
		return fmt.Errorf("error purging deliveries of contract %d: %w", contractID, err)
	}
	return nil
}

func (r *PostgresNotificationRepository) ListDelivered(ctx context.Context, contractID int64) ([]*notification.Delivery, error) {
	query := `SELECT notification_id, contract_id, sent_at
               FROM sent_notifications
               WHERE contract_id = $1 ORDER BY sent_at, notification_id`
	rows, err := r.db.QueryContext(ctx, query, contractID)
	if err != nil {
		return nil, fmt.Errorf("error querying deliveries of contract %d: %w", contractID, err)
	}
	defer rows.Close()

	deliveries := make([]*notification.Delivery, 0)
	for rows.Next() {
		d := &notification.Delivery{}
		if err := rows.Scan(&d.NotificationID, &d.ContractID, &d.SentAt); err != nil {
			return nil, fmt.Errorf("error scanning delivery row: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery rows: %w", err)
	}
	return deliveries, nil
}
