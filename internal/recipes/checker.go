package recipes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-hotel/internal/inventory"
	"github.com/odyssey-erp/odyssey-hotel/internal/shared"
	"github.com/odyssey-erp/odyssey-hotel/internal/sound"
)

// idempotencyModule scopes deduction keys in the idempotency store.
const idempotencyModule = "recipes.deduct"

// SnapshotSource yields the current inventory snapshot.
type SnapshotSource interface {
	Snapshot() inventory.Snapshot
}

// Deductor applies an atomic batch decrement in the store.
type Deductor interface {
	Deduct(ctx context.Context, actor, ref string, deductions []inventory.Deduction) error
}

// IdempotencyPort claims and releases request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Check evaluates requirements scaled by multiplier against snap. Items missing
// from the snapshot count as zero stock. Lines naming the same item share its stock.
func Check(snap inventory.Snapshot, requirements []Requirement, multiplier float64) CheckResult {
	totals := make(map[string]float64, len(requirements))
	for _, req := range requirements {
		totals[req.InventoryItemID] += req.QuantityNeeded * multiplier
	}

	res := CheckResult{
		CanMake:      true,
		MissingItems: []string{},
		Availability: make([]Availability, 0, len(requirements)),
	}
	missing := make(map[string]bool)
	for _, req := range requirements {
		needed := req.QuantityNeeded * multiplier
		av := Availability{ItemID: req.InventoryItemID, ItemName: req.Name, QuantityNeeded: needed}
		if e, ok := snap.Lookup(req.InventoryItemID); ok {
			av.CurrentStock = e.Item.CurrentQuantity
			if e.Item.ItemName != "" {
				av.ItemName = e.Item.ItemName
			}
		}
		av.Available = av.CurrentStock >= totals[req.InventoryItemID]
		if !av.Available {
			av.Shortfall = totals[req.InventoryItemID] - av.CurrentStock
			res.CanMake = false
			if !missing[req.InventoryItemID] {
				missing[req.InventoryItemID] = true
				res.MissingItems = append(res.MissingItems, req.InventoryItemID)
			}
		}
		res.Availability = append(res.Availability, av)
	}
	return res
}

// Deductions converts requirements into store decrements.
func Deductions(requirements []Requirement, multiplier float64) []inventory.Deduction {
	out := make([]inventory.Deduction, 0, len(requirements))
	for _, req := range requirements {
		out = append(out, inventory.Deduction{ItemID: req.InventoryItemID, Quantity: req.QuantityNeeded * multiplier})
	}
	return out
}

// CheckerConfig groups optional collaborators.
type CheckerConfig struct {
	Idempotency IdempotencyPort
	// Announcer, when set, plays a success cue to the caller's session after
	// each committed deduction.
	Announcer Announcer
	Logger    *slog.Logger
}

// Announcer plays cues to sessions that have sound enabled.
type Announcer interface {
	Cue(kind sound.Kind, sessionIDs ...string)
}

// Checker runs producibility checks and deductions.
type Checker struct {
	source   SnapshotSource
	deductor Deductor
	idem     IdempotencyPort
	validate *validator.Validate
	announce Announcer
	logger   *slog.Logger
}

// NewChecker builds a Checker.
func NewChecker(source SnapshotSource, deductor Deductor, cfg CheckerConfig) *Checker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{source: source, deductor: deductor, idem: cfg.Idempotency, validate: validator.New(), announce: cfg.Announcer, logger: logger}
}

// Check validates the input and checks it against the current snapshot.
func (c *Checker) Check(requirements []Requirement, multiplier float64) (CheckResult, error) {
	if err := c.validateInput(requirements, multiplier); err != nil {
		return CheckResult{}, err
	}
	return Check(c.source.Snapshot(), requirements, multiplier), nil
}

// Deduct re-checks against the latest snapshot and then decrements every
// ingredient in one store transaction. The snapshot check is advisory; the
// store rejects the whole batch if any item fell short in the meantime.
// A non-empty key makes repeated calls with the same key fail with ErrDuplicateRequest.
func (c *Checker) Deduct(ctx context.Context, actor, key string, requirements []Requirement, multiplier float64) (CheckResult, error) {
	res, err := c.Check(requirements, multiplier)
	if err != nil {
		return CheckResult{}, err
	}
	if !res.CanMake {
		return res, &inventory.ShortageError{Shortages: shortagesOf(res)}
	}
	if key != "" && c.idem != nil {
		if err := c.idem.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return res, ErrDuplicateRequest
			}
			return res, fmt.Errorf("claim idempotency key: %w", err)
		}
	}
	if err := c.deductor.Deduct(ctx, actor, key, Deductions(requirements, multiplier)); err != nil {
		if key != "" && c.idem != nil {
			if derr := c.idem.Delete(ctx, key); derr != nil {
				c.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", derr))
			}
		}
		return res, err
	}
	if id, ok := shared.IdentityFromContext(ctx); ok && c.announce != nil {
		c.announce.Cue(sound.KindSuccess, id.SessionID)
	}
	return res, nil
}

func (c *Checker) validateInput(requirements []Requirement, multiplier float64) error {
	if len(requirements) == 0 {
		return fmt.Errorf("%w: no ingredients", ErrInvalidRequirement)
	}
	if multiplier <= 0 {
		return fmt.Errorf("%w: multiplier must be positive", ErrInvalidRequirement)
	}
	for i, req := range requirements {
		if err := c.validate.Struct(req); err != nil {
			var fieldErrs validator.ValidationErrors
			if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
				return fmt.Errorf("%w: line %d %s failed %s", ErrInvalidRequirement, i+1, fieldErrs[0].Field(), fieldErrs[0].Tag())
			}
			return fmt.Errorf("%w: %v", ErrInvalidRequirement, err)
		}
	}
	return nil
}

func shortagesOf(res CheckResult) []inventory.Shortage {
	seen := make(map[string]bool)
	var out []inventory.Shortage
	for _, av := range res.Availability {
		if av.Available || seen[av.ItemID] {
			continue
		}
		seen[av.ItemID] = true
		out = append(out, inventory.Shortage{ItemID: av.ItemID, Requested: av.CurrentStock + av.Shortfall, Available: av.CurrentStock})
	}
	return out
}
