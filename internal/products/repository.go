package products

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zeynabmousavii/week08/internal/domain"
)

var (
	ErrProductNotFound       = errors.New("product not found")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrOrderAlreadyProcessed = errors.New("order already processed")
)

// restockThreshold is the stock level at or below which a deduction raises a
// restock alert.
const restockThreshold = 5

type ListFilter struct {
	Search string
	Skip   int
	Limit  int
}

// StockAlert reports a product whose stock dropped to or below the restock
// threshold after a deduction.
type StockAlert struct {
	ProductID string
	Name      string
	Remaining int
}

// DeductionOutcome is the result of an all-or-nothing order deduction. A
// non-empty Failures slice means nothing was deducted.
type DeductionOutcome struct {
	Failures []domain.DeductionFailure
	Alerts   []StockAlert
}

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, stock_quantity, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, product.ID, product.Name, product.Description, product.Price, product.StockQuantity, product.ImageURL, product.CreatedAt, product.UpdatedAt)

	return err
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	product := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, price, stock_quantity, image_url, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(&product.ID, &product.Name, &product.Description, &product.Price,
		&product.StockQuantity, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return product, nil
}

func (r *ProductRepository) List(ctx context.Context, filter ListFilter) ([]domain.Product, error) {
	query := `
		SELECT id, name, description, price, stock_quantity, image_url, created_at, updated_at
		FROM products
	`
	args := []any{}

	if filter.Search != "" {
		query += ` WHERE name ILIKE '%' || $1 || '%' OR description ILIKE '%' || $1 || '%'`
		args = append(args, filter.Search)
	}

	query += " ORDER BY name"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, filter.Skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ID, &product.Name, &product.Description, &product.Price,
			&product.StockQuantity, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *ProductRepository) Update(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	product.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, description = $3, price = $4, stock_quantity = $5, image_url = $6, updated_at = $7
		WHERE id = $1
	`, product.ID, product.Name, product.Description, product.Price, product.StockQuantity, product.ImageURL, product.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, product.ID)
}

func (r *ProductRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rowsAffected > 0, nil
}

// Deduct removes quantity from a single product's stock. The decrement is
// conditional on sufficient stock, so concurrent deductions can never drive
// stock_quantity negative. It returns the updated product on success.
func (r *ProductRepository) Deduct(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	product := &domain.Product{}

	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING id, name, description, price, stock_quantity, image_url, created_at, updated_at
	`, id, quantity).Scan(&product.ID, &product.Name, &product.Description, &product.Price,
		&product.StockQuantity, &product.ImageURL, &product.CreatedAt, &product.UpdatedAt)
	if err == nil {
		return product, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// Zero rows updated: distinguish an unknown product from one with too
	// little stock.
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrProductNotFound
	}
	return nil, fmt.Errorf("%w: product %s has %d, requested %d", ErrInsufficientStock, id, existing.StockQuantity, quantity)
}

// DeductOrder applies every line of an order inside one transaction, or none
// of them. The processed_orders ledger row is written in the same
// transaction, so a redelivered event for an already deducted order returns
// ErrOrderAlreadyProcessed instead of deducting twice.
func (r *ProductRepository) DeductOrder(ctx context.Context, orderID string, items []domain.OrderPlacedItem) (*DeductionOutcome, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO processed_orders (order_id, processed_at)
		VALUES ($1, NOW())
		ON CONFLICT (order_id) DO NOTHING
	`, orderID)
	if err != nil {
		return nil, err
	}
	claimed, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if claimed == 0 {
		return nil, ErrOrderAlreadyProcessed
	}

	outcome := &DeductionOutcome{}
	for _, item := range items {
		var name string
		var remaining int

		err := tx.QueryRowContext(ctx, `
			UPDATE products
			SET stock_quantity = stock_quantity - $2, updated_at = NOW()
			WHERE id = $1 AND stock_quantity >= $2
			RETURNING name, stock_quantity
		`, item.ProductID, item.Quantity).Scan(&name, &remaining)
		if err == nil {
			if remaining <= restockThreshold {
				outcome.Alerts = append(outcome.Alerts, StockAlert{ProductID: item.ProductID, Name: name, Remaining: remaining})
			}
			continue
		}
		if err != sql.ErrNoRows {
			return nil, err
		}

		failure, err := r.classifyFailure(ctx, tx, item)
		if err != nil {
			return nil, err
		}
		outcome.Failures = append(outcome.Failures, failure)
	}

	if len(outcome.Failures) > 0 {
		// Roll back every deduction made so far; the ledger row goes with
		// it, so a retried order is re-evaluated against current stock.
		return outcome, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return outcome, nil
}

func (r *ProductRepository) classifyFailure(ctx context.Context, tx *sql.Tx, item domain.OrderPlacedItem) (domain.DeductionFailure, error) {
	var available int
	err := tx.QueryRowContext(ctx, `
		SELECT stock_quantity FROM products WHERE id = $1
	`, item.ProductID).Scan(&available)
	if err == sql.ErrNoRows {
		return domain.DeductionFailure{
			ProductID: item.ProductID,
			Reason:    domain.DeductionReasonProductNotFound,
			Message:   fmt.Sprintf("product %s does not exist", item.ProductID),
		}, nil
	}
	if err != nil {
		return domain.DeductionFailure{}, err
	}

	return domain.DeductionFailure{
		ProductID:      item.ProductID,
		Reason:         domain.DeductionReasonInsufficientStock,
		AvailableStock: &available,
		Message:        fmt.Sprintf("product %s has %d in stock, order needs %d", item.ProductID, available, item.Quantity),
	}, nil
}

// Restore adds quantity back to a product's stock on behalf of a cancelled
// order. The reversal ledger keyed on (order_id, product_id) makes repeated
// calls for the same order a no-op, so callers may retry freely.
func (r *ProductRepository) Restore(ctx context.Context, id string, quantity int, orderID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO stock_reversals (order_id, product_id, quantity, reversed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (order_id, product_id) DO NOTHING
	`, orderID, id, quantity)
	if err != nil {
		return err
	}
	claimed, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if claimed == 0 {
		// Already reversed for this order.
		return nil
	}

	updated, err := tx.ExecContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		WHERE id = $1
	`, id, quantity)
	if err != nil {
		return err
	}
	rowsAffected, err := updated.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrProductNotFound
	}

	return tx.Commit()
}
