package correlator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"TrinoEventPump/internal/models"
)

// Consume запускает workers горутин, которые передают события из in в Ingest.
// Возвращается, когда ctx отменён или in закрыт.
func (c *Correlator) Consume(ctx context.Context, in <-chan models.Event, workers int) error {
	if workers < 1 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-in:
					if !ok {
						return nil
					}
					c.Ingest(ev)
				}
			}
		})
	}
	return g.Wait()
}
