package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// TableItems is the store table mirrored by the snapshot cache.
const TableItems = "inventory_items"

// Item models a stocked inventory row.
type Item struct {
	ID              string    `json:"id"`
	ItemName        string    `json:"item_name" validate:"required,max=120"`
	Category        string    `json:"category" validate:"max=60"`
	CurrentQuantity float64   `json:"current_quantity" validate:"gte=0"`
	MinThreshold    float64   `json:"min_threshold" validate:"gte=0"`
	Unit            string    `json:"unit" validate:"max=20"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Filter narrows inventory reads.
type Filter struct {
	Category    string
	MaxQuantity *float64
	Limit       int
}

// Deduction is a single conditional decrement request.
type Deduction struct {
	ItemID   string
	Quantity float64
}

// Shortage describes an item that could not cover a deduction.
type Shortage struct {
	ItemID    string
	Requested float64
	Available float64
}

// ShortageError reports every item that blocked a batch deduction.
type ShortageError struct {
	Shortages []Shortage
}

func (e *ShortageError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s (need %.3f, have %.3f)", s.ItemID, s.Requested, s.Available))
	}
	return "inventory: insufficient stock: " + strings.Join(parts, ", ")
}

// Is lets errors.Is match ErrInsufficientStock.
func (e *ShortageError) Is(target error) bool {
	return target == ErrInsufficientStock
}

var (
	// ErrNotFound indicates the item does not exist in the store.
	ErrNotFound = errors.New("inventory: item not found")
	// ErrDuplicate indicates a conflicting item id or name.
	ErrDuplicate = errors.New("inventory: duplicate item")
	// ErrInvalidItem indicates the item failed validation.
	ErrInvalidItem = errors.New("inventory: invalid item")
	// ErrInsufficientStock triggered when a deduction would drive stock negative.
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInvalidQuantity indicates a non-positive deduction quantity.
	ErrInvalidQuantity = errors.New("inventory: quantity must be positive")
	// ErrConcurrentUpdate indicates the batch kept colliding with other writers.
	ErrConcurrentUpdate = errors.New("inventory: concurrent stock update")
)
