package cmd

import (
	"time"

	"go.uber.org/zap"

	"TrinoEventPump/internal/catalog"
	"TrinoEventPump/internal/config"
	"TrinoEventPump/internal/correlator"
)

// core — ядро в памяти: реестр каталогов, его проекция и коррелятор
type core struct {
	registry   *catalog.Registry
	directory  *catalog.Directory
	correlator *correlator.Correlator
}

func newCore(lg *zap.Logger, cfg config.CatalogConfig, opts ...correlator.Option) *core {
	reg := catalog.NewRegistry(lg.Named("catalog"))
	reg.Seed(cfg.Seed, time.Now())
	return &core{
		registry:   reg,
		directory:  catalog.NewDirectory(reg, cfg.RefreshDuration(), lg.Named("directory")),
		correlator: correlator.New(catalog.NewDiscovery(reg, lg.Named("discovery")), lg.Named("correlator"), opts...),
	}
}
