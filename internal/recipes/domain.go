// Package recipes checks whether recipes can be produced from current stock and
// deducts their ingredients.
package recipes

import (
	"errors"

	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
)

// Requirement is one ingredient line of a recipe.
type Requirement struct {
	InventoryItemID string  `json:"inventory_item_id" validate:"required"`
	QuantityNeeded  float64 `json:"quantity_needed" validate:"gt=0"`
	Unit            string  `json:"unit,omitempty"`
	Name            string  `json:"name,omitempty"`
}

// Availability reports one requirement against the snapshot.
type Availability struct {
	ItemID         string  `json:"item_id"`
	ItemName       string  `json:"item_name"`
	QuantityNeeded float64 `json:"quantity_needed"`
	CurrentStock   float64 `json:"current_stock"`
	Shortfall      float64 `json:"shortfall"`
	Available      bool    `json:"available"`
}

// CheckResult is the outcome of a producibility check.
type CheckResult struct {
	CanMake      bool           `json:"can_make"`
	MissingItems []string       `json:"missing_items"`
	Availability []Availability `json:"availability"`
}

var (
	// ErrInsufficientStock is returned when a deduction cannot be covered.
	ErrInsufficientStock = inventory.ErrInsufficientStock
	// ErrInvalidRequirement indicates a malformed ingredient list or multiplier.
	ErrInvalidRequirement = errors.New("recipes: invalid requirement")
	// ErrRecipeNotFound indicates the recipe has no ingredients on record.
	ErrRecipeNotFound = errors.New("recipes: recipe not found")
	// ErrDuplicateRequest indicates the idempotency key was already used.
	ErrDuplicateRequest = errors.New("recipes: request already processed")
)
