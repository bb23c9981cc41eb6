package catalog

import (
	"time"

	"go.uber.org/zap"

	"TrinoEventPump/internal/config"
	"TrinoEventPump/internal/models"
)

// Seed добавляет заранее известные каталоги. Уже обнаруженные каталоги
// не заменяются; возвращает число добавленных.
func (r *Registry) Seed(seeds []config.CatalogSeed, at time.Time) int {
	added := 0
	for _, s := range seeds {
		if s.ID == "" || r.Exists(s.ID) {
			continue
		}
		r.Add(models.Catalog{
			ID:        s.ID,
			Kind:      models.CatalogKind(s.Kind),
			Type:      s.Type,
			FirstSeen: at,
			LastSeen:  at,
		})
		added++
	}
	if added > 0 {
		r.logger.Info("Каталоги из конфигурации добавлены", zap.Int("count", added))
	}
	return added
}
