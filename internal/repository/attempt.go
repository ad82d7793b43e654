package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/brisastore/checkout/internal/domain"
)

const attemptColumns = `attempt_id, session_id, order_id, method_id, amount,
	status, status_detail, payment_id, created_at`

// PaymentAttemptRepository is the append-only audit trail of submissions.
// One row per attempt id; a resubmission after a decline is a new row, never
// an update of the declined one.
type PaymentAttemptRepository struct {
	db *sql.DB
}

func NewPaymentAttemptRepository(db *sql.DB) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{db: db}
}

func (r *PaymentAttemptRepository) Create(ctx context.Context, a *domain.PaymentAttempt) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_attempts (
			attempt_id, session_id, order_id, method_id, amount,
			status, status_detail, payment_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.AttemptID, a.SessionID, a.OrderID, a.MethodID, a.Amount,
		a.Status, a.StatusDetail, nullable(a.PaymentID), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *PaymentAttemptRepository) GetByAttemptID(ctx context.Context, attemptID uuid.UUID) (*domain.PaymentAttempt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts WHERE attempt_id = $1`, attemptID,
	)
	a, err := scanAttempt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByAttemptID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByAttemptID: %w", err)
	}
	return a, nil
}

// ListByOrder returns every attempt for an order in submission order.
func (r *PaymentAttemptRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentAttempt, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM payment_attempts WHERE order_id = $1 ORDER BY created_at`, orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByOrder: %w", err)
	}
	defer rows.Close()

	var attempts []domain.PaymentAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByOrder: scan: %w", err)
		}
		attempts = append(attempts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByOrder: rows: %w", err)
	}
	return attempts, nil
}

func scanAttempt(s scanner) (*domain.PaymentAttempt, error) {
	var a domain.PaymentAttempt
	var paymentID sql.NullString

	err := s.Scan(
		&a.AttemptID, &a.SessionID, &a.OrderID, &a.MethodID, &a.Amount,
		&a.Status, &a.StatusDetail, &paymentID, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if paymentID.Valid {
		a.PaymentID = paymentID.String
	}
	return &a, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
