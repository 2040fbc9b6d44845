package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/emberthread/storefront/pkg/models"
)

var ErrNotFound = sql.ErrNoRows

// Store is the single system of record for orders, payments, confirmations
// and persisted carts.
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

func New(db *sql.DB, logger *logrus.Logger) *Store {
	return &Store{db: db, logger: logger}
}

func (s *Store) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(255) PRIMARY KEY,
			customer_name VARCHAR(255) NOT NULL,
			customer_email VARCHAR(255) NOT NULL,
			customer_phone VARCHAR(50),
			item TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			color VARCHAR(100),
			size VARCHAR(20),
			special_instructions TEXT,
			total_amount BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			status VARCHAR(50) NOT NULL,
			processor_payment_id VARCHAR(255),
			submission_id VARCHAR(255),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_submission_id
			ON orders(submission_id) WHERE submission_id IS NOT NULL AND submission_id <> ''`,
		`CREATE TABLE IF NOT EXISTS payments (
			id VARCHAR(255) PRIMARY KEY,
			order_id VARCHAR(255) NOT NULL REFERENCES orders(id),
			amount BIGINT NOT NULL,
			currency VARCHAR(3) NOT NULL,
			payment_method VARCHAR(50),
			status VARCHAR(50) NOT NULL,
			processor_payment_id VARCHAR(255),
			reference VARCHAR(255),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments(order_id)`,
		`CREATE TABLE IF NOT EXISTS order_confirmations (
			id VARCHAR(255) PRIMARY KEY,
			order_id VARCHAR(255) NOT NULL REFERENCES orders(id) UNIQUE,
			confirmation_number VARCHAR(100) NOT NULL UNIQUE,
			status VARCHAR(50) NOT NULL,
			estimated_delivery TIMESTAMP,
			tracking_number VARCHAR(255),
			notes TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cart_items (
			id VARCHAR(255) PRIMARY KEY,
			user_id VARCHAR(255),
			product_id VARCHAR(255) NOT NULL,
			product_title VARCHAR(255) NOT NULL,
			product_image TEXT,
			product_price VARCHAR(50),
			size VARCHAR(20),
			color VARCHAR(100),
			quantity INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cart_items_user_id ON cart_items(user_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// CreateOrderWithPayment persists a pending order and its pending payment in
// one transaction. The payment amount must equal the order total; nothing is
// written otherwise. This runs before any processor call so the store never
// charges for an order it cannot record.
func (s *Store) CreateOrderWithPayment(ctx context.Context, order *models.Order, payment *models.Payment) error {
	if payment.Amount != order.TotalAmount {
		return fmt.Errorf("payment amount %d does not match order total %d", payment.Amount, order.TotalAmount)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_name, customer_email, customer_phone, item, quantity,
			color, size, special_instructions, total_amount, currency, status,
			processor_payment_id, submission_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, order.ID, order.CustomerName, order.CustomerEmail, order.CustomerPhone, order.Item,
		order.Quantity, order.Color, order.Size, order.SpecialInstructions, order.TotalAmount,
		order.Currency, order.Status, order.ProcessorPaymentID, order.SubmissionID,
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, order_id, amount, currency, payment_method, status,
			processor_payment_id, reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, payment.ID, payment.OrderID, payment.Amount, payment.Currency, payment.Method,
		payment.Status, payment.ProcessorPaymentID, payment.Reference,
		payment.CreatedAt, payment.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order := &models.Order{}
	var phone, color, instructions, processorID, submissionID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_name, customer_email, customer_phone, item, quantity, color, size,
			special_instructions, total_amount, currency, status, processor_payment_id,
			submission_id, created_at, updated_at
		FROM orders WHERE id = $1
	`, orderID).Scan(
		&order.ID, &order.CustomerName, &order.CustomerEmail, &phone, &order.Item,
		&order.Quantity, &color, &order.Size, &instructions, &order.TotalAmount,
		&order.Currency, &order.Status, &processorID, &submissionID,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.CustomerPhone = phone.String
	order.Color = color.String
	order.SpecialInstructions = instructions.String
	order.ProcessorPaymentID = processorID.String
	order.SubmissionID = submissionID.String
	return order, nil
}

// FindOrderBySubmission looks up a prior order keyed to the same submission
// attempt, so a retried submit never creates a second order.
func (s *Store) FindOrderBySubmission(ctx context.Context, submissionID string) (*models.Order, error) {
	var orderID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM orders WHERE submission_id = $1`, submissionID).Scan(&orderID)
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, orderID)
}

func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	payment := &models.Payment{}
	var method, processorID, reference sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, amount, currency, payment_method, status, processor_payment_id,
			reference, created_at, updated_at
		FROM payments WHERE order_id = $1
	`, orderID).Scan(
		&payment.ID, &payment.OrderID, &payment.Amount, &payment.Currency, &method,
		&payment.Status, &processorID, &reference, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	payment.Method = models.PaymentMethod(method.String)
	payment.ProcessorPaymentID = processorID.String
	payment.Reference = reference.String
	return payment, nil
}

// AttachProcessorID records the processor's session identifier on the order
// and its payment once a checkout session has been opened.
func (s *Store) AttachProcessorID(ctx context.Context, orderID, processorID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE orders SET processor_payment_id = $2, updated_at = $3 WHERE id = $1`,
		orderID, processorID, now); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE payments SET processor_payment_id = $2, updated_at = $3 WHERE order_id = $1`,
		orderID, processorID, now); err != nil {
		return err
	}

	return tx.Commit()
}

// MarkPaid transitions the order to paid and its payment to completed.
// The guarded WHERE clauses make the transition monotonic: applying paid
// twice is a no-op, and a paid order can never regress. Returns true only
// for the call that performed the transition, so post-payment work runs
// exactly once however many callbacks and webhooks arrive.
func (s *Store) MarkPaid(ctx context.Context, orderID, processorID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, processor_payment_id = COALESCE(NULLIF($3, ''), processor_payment_id), updated_at = $4
		WHERE id = $1 AND status NOT IN ($2, $5)
	`, orderID, models.OrderStatusPaid, processorID, now, models.OrderStatusCompleted)
	if err != nil {
		return false, err
	}
	transitioned, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payments SET status = $2, processor_payment_id = COALESCE(NULLIF($3, ''), processor_payment_id), updated_at = $4
		WHERE order_id = $1 AND status <> $2
	`, orderID, models.PaymentStatusCompleted, processorID, now); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	return transitioned > 0, nil
}

// MarkFailed moves a pending order to payment_failed. Success is sticky: an
// order already paid or completed is left untouched.
func (s *Store) MarkFailed(ctx context.Context, orderID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4
	`, orderID, models.OrderStatusPaymentFailed, now, models.OrderStatusPending)
	if err != nil {
		return false, err
	}
	transitioned, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if transitioned > 0 {
		if _, err := tx.ExecContext(ctx, `
			UPDATE payments SET status = $2, updated_at = $3
			WHERE order_id = $1 AND status = $4
		`, orderID, models.PaymentStatusFailed, now, models.PaymentStatusPending); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}

	return transitioned > 0, nil
}

// CreateConfirmation inserts the confirmation record for an order. The
// order_id unique constraint plus ON CONFLICT DO NOTHING makes it safe to
// call from racing triggers; only the first caller gets true.
func (s *Store) CreateConfirmation(ctx context.Context, conf *models.OrderConfirmation) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO order_confirmations (id, order_id, confirmation_number, status,
			estimated_delivery, tracking_number, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (order_id) DO NOTHING
	`, conf.ID, conf.OrderID, conf.ConfirmationNumber, conf.Status, conf.EstimatedDelivery,
		conf.TrackingNumber, conf.Notes, conf.CreatedAt, conf.UpdatedAt)
	if err != nil {
		return false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted > 0, nil
}

func (s *Store) GetConfirmationByOrderID(ctx context.Context, orderID string) (*models.OrderConfirmation, error) {
	conf := &models.OrderConfirmation{}
	var delivery sql.NullTime
	var tracking, notes sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, order_id, confirmation_number, status, estimated_delivery, tracking_number,
			notes, created_at, updated_at
		FROM order_confirmations WHERE order_id = $1
	`, orderID).Scan(
		&conf.ID, &conf.OrderID, &conf.ConfirmationNumber, &conf.Status, &delivery,
		&tracking, &notes, &conf.CreatedAt, &conf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	conf.EstimatedDelivery = delivery.Time
	conf.TrackingNumber = tracking.String
	conf.Notes = notes.String
	return conf, nil
}

func (s *Store) AddCartItem(ctx context.Context, item *models.CartItem) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, product_title, product_image,
			product_price, size, color, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, item.ID, item.UserID, item.ProductID, item.ProductTitle, item.ProductImage,
		item.ProductPrice, item.Size, item.Color, item.Quantity, item.CreatedAt, item.UpdatedAt)
	return err
}

func (s *Store) ListCartItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, product_title, product_image, product_price,
			size, color, quantity, created_at, updated_at
		FROM cart_items WHERE user_id = $1 ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.CartItem
	for rows.Next() {
		var item models.CartItem
		var image, price, size, color sql.NullString
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.ProductTitle,
			&image, &price, &size, &color, &item.Quantity,
			&item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.ProductImage = image.String
		item.ProductPrice = price.String
		item.Size = size.String
		item.Color = color.String
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) RemoveCartItem(ctx context.Context, userID, itemID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	return err
}

// ReplaceCart swaps the persisted cart for the merge result in one
// transaction.
func (s *Store) ReplaceCart(ctx context.Context, userID string, items []models.CartItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return err
	}

	for _, item := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO cart_items (id, user_id, product_id, product_title, product_image,
				product_price, size, color, quantity, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, item.ID, userID, item.ProductID, item.ProductTitle, item.ProductImage,
			item.ProductPrice, item.Size, item.Color, item.Quantity,
			item.CreatedAt, item.UpdatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) ClearCart(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

func (s *Store) Ping() error {
	return s.db.Ping()
}
