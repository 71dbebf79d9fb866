package service

import (
	"context"
	"time"

	"registration-service/internal/models"
	"registration-service/internal/redisclient"
	"registration-service/internal/store"
	"registration-service/internal/util"

	"go.uber.org/zap"
)

const menuCacheTTL = 5 * time.Minute

// MenuService serves dinner form and menu configuration, with a Redis cache
// in front of Postgres. Menus change rarely but are read on every submission
// and every cost recomputation.
type MenuService struct {
	store  *store.Store
	cache  *redisclient.Client
	logger *zap.Logger
}

// NewMenuService creates a new menu service
func NewMenuService(store *store.Store, cache *redisclient.Client) *MenuService {
	return &MenuService{
		store:  store,
		cache:  cache,
		logger: util.GetLogger(),
	}
}

// EnabledForms retrieves the dinner forms currently open for orders
func (m *MenuService) EnabledForms(ctx context.Context) ([]models.DinnerForm, error) {
	return m.store.ListEnabledDinnerForms(ctx)
}

// MenuItems retrieves the menu for a form, preferring the cache. Cache
// failures fall through to the database.
func (m *MenuService) MenuItems(ctx context.Context, formID int64) ([]models.DinnerMenuItem, error) {
	if m.cache != nil {
		items, found, err := m.cache.GetCachedMenu(ctx, formID)
		if err != nil {
			m.logger.Warn("Menu cache read failed", zap.Int64("form_id", formID), zap.Error(err))
		} else if found {
			return items, nil
		}
	}

	items, err := m.store.ListMenuItems(ctx, formID)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if err := m.cache.CacheMenu(ctx, formID, items, menuCacheTTL); err != nil {
			m.logger.Warn("Menu cache write failed", zap.Int64("form_id", formID), zap.Error(err))
		}
	}
	return items, nil
}

// Invalidate drops a form's cached menu after an admin edit
func (m *MenuService) Invalidate(ctx context.Context, formID int64) {
	if m.cache == nil {
		return
	}
	if err := m.cache.InvalidateMenu(ctx, formID); err != nil {
		m.logger.Warn("Menu cache invalidation failed", zap.Int64("form_id", formID), zap.Error(err))
	}
}
