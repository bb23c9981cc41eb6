package catalog

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"TrinoEventPump/internal/models"
)

// Directory — публичная проекция реестра для API.
// Снимок пересобирается, если он старше interval или пуст; Refresh и Invalidate управляют этим вручную.
type Directory struct {
	registry *Registry
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.RWMutex
	catalogs    []models.Catalog
	byID        map[string]int
	refreshedAt time.Time
}

func NewDirectory(registry *Registry, interval time.Duration, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{
		registry: registry,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Refresh пересобирает снимок из текущего состояния реестра.
func (d *Directory) Refresh() {
	catalogs := d.registry.Catalogs()
	byID := make(map[string]int, len(catalogs))
	for i, c := range catalogs {
		byID[c.ID] = i
	}
	d.mu.Lock()
	d.catalogs = catalogs
	d.byID = byID
	d.refreshedAt = d.now()
	d.mu.Unlock()
	d.logger.Info("Проекция каталогов обновлена", zap.Int("count", len(catalogs)))
}

// Invalidate сбрасывает снимок; следующее чтение пересоберёт его.
func (d *Directory) Invalidate() {
	d.mu.Lock()
	d.catalogs = nil
	d.byID = nil
	d.refreshedAt = time.Time{}
	d.mu.Unlock()
	d.logger.Debug("Проекция каталогов сброшена")
}

func (d *Directory) stale() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.catalogs) == 0 || d.now().Sub(d.refreshedAt) > d.interval
}

func (d *Directory) ensure() {
	if d.stale() {
		d.Refresh()
	}
}

// All — все каталоги проекции
func (d *Directory) All() []models.Catalog {
	d.ensure()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.Catalog(nil), d.catalogs...)
}

// Get — каталог по идентификатору (= имени)
func (d *Directory) Get(id string) (models.Catalog, bool) {
	d.ensure()
	d.mu.RLock()
	defer d.mu.RUnlock()
	i, ok := d.byID[id]
	if !ok {
		return models.Catalog{}, false
	}
	return d.catalogs[i], true
}

// RefreshedAt — время последней пересборки
func (d *Directory) RefreshedAt() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.refreshedAt
}
