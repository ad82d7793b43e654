package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/brisastore/checkout/internal/domain"
)

const statusEventColumns = `id, payment_id, order_id, status, status_detail,
	notification_id, received_at`

// StatusEvent is one gateway notification about a payment, stored before
// interpretation. The notification id carries the gateway's own dedupe key.
type StatusEvent struct {
	ID             uuid.UUID
	PaymentID      string
	OrderID        string
	Status         domain.PaymentStatus
	StatusDetail   string
	NotificationID string
	ReceivedAt     time.Time
}

// StatusEventRepository records gateway status notifications append-only. A
// delayed settlement produces several rows per payment; none is ever updated
// or deleted.
type StatusEventRepository struct {
	db *sql.DB
}

func NewStatusEventRepository(db *sql.DB) *StatusEventRepository {
	return &StatusEventRepository{db: db}
}

// Append stores one notification. A replayed notification id trips the unique
// index and surfaces as ErrDuplicateNotification so the caller can ack without
// reprocessing.
func (r *StatusEventRepository) Append(ctx context.Context, e *StatusEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_status_events (
			id, payment_id, order_id, status, status_detail, notification_id, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, e.PaymentID, e.OrderID, e.Status, e.StatusDetail, e.NotificationID, e.ReceivedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("Append: %w", domain.ErrDuplicateNotification)
		}
		return fmt.Errorf("Append: %w", err)
	}
	return nil
}

// ListByPayment returns the full status history for a payment, oldest first.
func (r *StatusEventRepository) ListByPayment(ctx context.Context, paymentID string) ([]StatusEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+statusEventColumns+` FROM payment_status_events
		WHERE payment_id = $1 ORDER BY received_at, id`, paymentID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByPayment: %w", err)
	}
	defer rows.Close()

	var events []StatusEvent
	for rows.Next() {
		e, err := scanStatusEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByPayment: scan: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByPayment: rows: %w", err)
	}
	return events, nil
}

func scanStatusEvent(s scanner) (*StatusEvent, error) {
	var e StatusEvent
	err := s.Scan(
		&e.ID, &e.PaymentID, &e.OrderID, &e.Status, &e.StatusDetail,
		&e.NotificationID, &e.ReceivedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func isDuplicateKey(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
