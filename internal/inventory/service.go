package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-hotel/internal/changefeed"
	"github.com/odyssey-erp/odyssey-hotel/internal/shared"
)

// RepositoryPort abstracts the data store gateway used by the service and the cache.
type RepositoryPort interface {
	List(ctx context.Context, filter Filter) ([]Item, error)
	Get(ctx context.Context, id string) (Item, error)
	Insert(ctx context.Context, item Item) (Item, error)
	Update(ctx context.Context, item Item) (Item, error)
	Delete(ctx context.Context, id string) error
	DeductBatch(ctx context.Context, deductions []Deduction) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	// Publisher is set when the store cannot emit change events itself.
	Publisher changefeed.Publisher
	Logger    *slog.Logger
}

// Service coordinates inventory mutations.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	publisher changefeed.Publisher
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, publisher: cfg.Publisher, validate: validator.New(), logger: logger}
}

// List reads items straight from the store.
func (s *Service) List(ctx context.Context, filter Filter) ([]Item, error) {
	return s.repo.List(ctx, filter)
}

// Get reads one item from the store.
func (s *Service) Get(ctx context.Context, id string) (Item, error) {
	return s.repo.Get(ctx, id)
}

// Create validates and inserts a new item.
func (s *Service) Create(ctx context.Context, actor string, item Item) (Item, error) {
	item.ItemName = strings.TrimSpace(item.ItemName)
	if err := s.validateItem(item); err != nil {
		return Item{}, err
	}
	stored, err := s.repo.Insert(ctx, item)
	if err != nil {
		return Item{}, fmt.Errorf("create item: %w", err)
	}
	s.emit(ctx, changefeed.OpInsert, stored)
	s.record(ctx, actor, "inventory:create", stored.ID, map[string]any{"item_name": stored.ItemName, "qty": stored.CurrentQuantity})
	return stored, nil
}

// Update validates and replaces an existing item.
func (s *Service) Update(ctx context.Context, actor string, item Item) (Item, error) {
	if item.ID == "" {
		return Item{}, fmt.Errorf("%w: id required", ErrInvalidItem)
	}
	item.ItemName = strings.TrimSpace(item.ItemName)
	if err := s.validateItem(item); err != nil {
		return Item{}, err
	}
	stored, err := s.repo.Update(ctx, item)
	if err != nil {
		return Item{}, fmt.Errorf("update item %s: %w", item.ID, err)
	}
	s.emit(ctx, changefeed.OpUpdate, stored)
	s.record(ctx, actor, "inventory:update", stored.ID, map[string]any{"qty": stored.CurrentQuantity, "min_threshold": stored.MinThreshold})
	return stored, nil
}

// Delete removes an item.
func (s *Service) Delete(ctx context.Context, actor, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete item %s: %w", id, err)
	}
	s.emit(ctx, changefeed.OpDelete, Item{ID: id})
	s.record(ctx, actor, "inventory:delete", id, nil)
	return nil
}

// Deduct conditionally decrements a batch of items. The store applies it atomically.
func (s *Service) Deduct(ctx context.Context, actor, ref string, deductions []Deduction) error {
	if len(deductions) == 0 {
		return fmt.Errorf("%w: empty batch", ErrInvalidQuantity)
	}
	if err := s.repo.DeductBatch(ctx, deductions); err != nil {
		return err
	}
	if s.publisher != nil {
		seen := make(map[string]struct{}, len(deductions))
		for _, d := range deductions {
			if _, ok := seen[d.ItemID]; ok {
				continue
			}
			seen[d.ItemID] = struct{}{}
			item, err := s.repo.Get(ctx, d.ItemID)
			if err != nil {
				s.logger.Warn("reload deducted item", slog.String("item_id", d.ItemID), slog.Any("error", err))
				continue
			}
			s.emit(ctx, changefeed.OpUpdate, item)
		}
	}
	meta := make(map[string]any, len(deductions))
	for _, d := range deductions {
		meta[d.ItemID] = d.Quantity
	}
	if ref == "" {
		ref = "batch"
	}
	s.record(ctx, actor, "inventory:deduct", ref, meta)
	return nil
}

func (s *Service) validateItem(item Item) error {
	if err := s.validate.Struct(item); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", ErrInvalidItem, fieldErrs[0].Field(), fieldErrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidItem, err)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, op changefeed.Op, item Item) {
	if s.publisher == nil {
		return
	}
	var row any
	if op != changefeed.OpDelete {
		row = item
	}
	evt, err := changefeed.NewEvent(TableItems, op, item.ID, row)
	if err == nil {
		err = s.publisher.Publish(ctx, evt)
	}
	if err != nil {
		s.logger.Warn("publish inventory change", slog.String("item_id", item.ID), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actor, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "inventory_item",
		EntityID: entityID,
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit inventory", slog.String("action", action), slog.Any("error", err))
	}
}
