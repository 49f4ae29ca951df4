package recipes

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-hotel/internal/platform/db"
)

// IngredientSource loads the ingredient list of a recipe.
type IngredientSource interface {
	Ingredients(ctx context.Context, recipeID string) ([]Requirement, error)
}

// Repository reads recipe ingredients from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Ingredients returns the recipe lines in their recorded order.
func (r *Repository) Ingredients(ctx context.Context, recipeID string) ([]Requirement, error) {
	if r == nil || r.pool == nil {
		return nil, db.ErrNoPool
	}
	rows, err := r.pool.Query(ctx, `SELECT ri.inventory_item_id, ri.quantity_needed, ri.unit, COALESCE(ii.item_name, ri.name)
FROM recipe_ingredients ri
LEFT JOIN inventory_items ii ON ii.id = ri.inventory_item_id
WHERE ri.recipe_id = $1
ORDER BY ri.position, ri.inventory_item_id`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var reqs []Requirement
	for rows.Next() {
		var req Requirement
		if err := rows.Scan(&req.InventoryItemID, &req.QuantityNeeded, &req.Unit, &req.Name); err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, ErrRecipeNotFound
	}
	return reqs, nil
}

// MemoryRepository keeps recipes in process, for the memory store driver and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	recipes map[string][]Requirement
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{recipes: make(map[string][]Requirement)}
}

// Put stores the ingredient list of recipeID.
func (m *MemoryRepository) Put(recipeID string, reqs []Requirement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipes[recipeID] = append([]Requirement(nil), reqs...)
}

// Ingredients returns a copy of the recipe lines.
func (m *MemoryRepository) Ingredients(_ context.Context, recipeID string) ([]Requirement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	reqs, ok := m.recipes[recipeID]
	if !ok || len(reqs) == 0 {
		return nil, ErrRecipeNotFound
	}
	return append([]Requirement(nil), reqs...), nil
}
