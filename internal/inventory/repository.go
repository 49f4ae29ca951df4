package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-hotel/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, item_name, category, current_quantity, min_threshold, unit, updated_at`

// List returns items ordered by name, then id.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Item, error) {
	if r == nil || r.pool == nil {
		return nil, db.ErrNoPool
	}
	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.MaxQuantity != nil {
		args = append(args, *filter.MaxQuantity)
		where = append(where, fmt.Sprintf("current_quantity <= $%d", len(args)))
	}
	query := `SELECT ` + itemColumns + ` FROM inventory_items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY item_name ASC, id ASC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Get loads a single item.
func (r *Repository) Get(ctx context.Context, id string) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id=$1`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	return item, nil
}

// Insert stores a new item, generating an id when missing.
func (r *Repository) Insert(ctx context.Context, item Item) (Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO inventory_items (id, item_name, category, current_quantity, min_threshold, unit, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING `+itemColumns,
		item.ID, item.ItemName, item.Category, item.CurrentQuantity, item.MinThreshold, item.Unit)
	stored, err := scanItem(row)
	if err != nil {
		return Item{}, mapWriteError(err)
	}
	return stored, nil
}

// Update replaces the mutable columns of an item.
func (r *Repository) Update(ctx context.Context, item Item) (Item, error) {
	row := r.pool.QueryRow(ctx, `UPDATE inventory_items
SET item_name=$2, category=$3, current_quantity=$4, min_threshold=$5, unit=$6, updated_at=NOW()
WHERE id=$1 RETURNING `+itemColumns,
		item.ID, item.ItemName, item.Category, item.CurrentQuantity, item.MinThreshold, item.Unit)
	stored, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, mapWriteError(err)
	}
	return stored, nil
}

// Delete removes an item by id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM inventory_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// deductTx runs at read committed so FOR UPDATE re-reads the row a competing
// batch just committed instead of failing the snapshot.
var deductTx = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

const deductAttempts = 3

// DeductBatch decrements every item in one transaction, or none of them.
// Rows are locked in id order so concurrent batches cannot deadlock.
func (r *Repository) DeductBatch(ctx context.Context, deductions []Deduction) error {
	merged, err := mergeDeductions(deductions)
	if err != nil {
		return err
	}
	if len(merged) == 0 {
		return nil
	}
	ids := make([]string, 0, len(merged))
	for _, d := range merged {
		ids = append(ids, d.ItemID)
	}
	err = db.Retry(ctx, deductAttempts, func() error {
		return db.WithTxOptions(ctx, r.pool, deductTx, func(tx pgx.Tx) error {
			return deductLocked(ctx, tx, ids, merged)
		})
	})
	return mapDeductError(err)
}

func deductLocked(ctx context.Context, tx pgx.Tx, ids []string, merged []Deduction) error {
	rows, err := tx.Query(ctx, `SELECT id, current_quantity FROM inventory_items WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return err
	}
	stock := make(map[string]float64, len(ids))
	for rows.Next() {
		var (
			id  string
			qty float64
		)
		if err := rows.Scan(&id, &qty); err != nil {
			rows.Close()
			return err
		}
		stock[id] = qty
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if shortages := findShortages(merged, stock); len(shortages) > 0 {
		return &ShortageError{Shortages: shortages}
	}
	for _, d := range merged {
		// The shortage check tolerates float dust; clamp so it cannot trip the
		// non-negative check.
		if _, err := tx.Exec(ctx, `UPDATE inventory_items SET current_quantity = GREATEST(current_quantity - $2, 0), updated_at=NOW() WHERE id=$1`, d.ItemID, d.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// mapDeductError turns exhausted retries and check violations into domain errors.
func mapDeductError(err error) error {
	if err == nil {
		return nil
	}
	if db.IsRetryable(err) {
		return fmt.Errorf("%w: %v", ErrConcurrentUpdate, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23514" {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, pgErr.ConstraintName)
	}
	return err
}

// mergeDeductions folds repeated ids together and orders the batch by id.
func mergeDeductions(deductions []Deduction) ([]Deduction, error) {
	totals := make(map[string]float64, len(deductions))
	for _, d := range deductions {
		if d.ItemID == "" {
			return nil, fmt.Errorf("%w: item id required", ErrInvalidItem)
		}
		if d.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		totals[d.ItemID] += d.Quantity
	}
	merged := make([]Deduction, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Deduction{ItemID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ItemID < merged[j].ItemID })
	return merged, nil
}

// findShortages treats a missing row as zero stock.
func findShortages(deductions []Deduction, stock map[string]float64) []Shortage {
	var shortages []Shortage
	for _, d := range deductions {
		available := stock[d.ItemID]
		if available+1e-9 < d.Quantity {
			shortages = append(shortages, Shortage{ItemID: d.ItemID, Requested: d.Quantity, Available: available})
		}
	}
	return shortages
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.ItemName, &item.Category, &item.CurrentQuantity, &item.MinThreshold, &item.Unit, &item.UpdatedAt)
	return item, err
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		case "23514":
			return fmt.Errorf("%w: %s", ErrInvalidItem, pgErr.ConstraintName)
		}
	}
	return err
}
