package batch

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"TrinoEventPump/internal/catalog"
	"TrinoEventPump/internal/models"
)

// Record — событие вместе с извлечёнными из него ссылками на каталоги
type Record struct {
	Event      models.Event
	References []catalog.Reference
}

// Sink — получатель пачек (ClickHouse)
type Sink interface {
	InsertBatch(ctx context.Context, records []Record) error
}

// Batcher накапливает записи и отправляет их пачками.
// batchSize — сколько записей отправлять за раз
// batchInterval — максимальный интервал между отправками
type Batcher struct {
	batchSize     int
	batchInterval time.Duration
	logger        *zap.Logger
	sink          Sink
	in            chan Record
	dropped       atomic.Int64
}

// NewBatcher создает новый batcher; queue — размер входной очереди
func NewBatcher(batchSize int, batchInterval time.Duration, queue int, logger *zap.Logger, sink Sink) *Batcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queue < batchSize {
		queue = batchSize * 2
	}
	return &Batcher{
		batchSize:     batchSize,
		batchInterval: batchInterval,
		logger:        logger,
		sink:          sink,
		in:            make(chan Record, queue),
	}
}

// Archive ставит событие в очередь. Не блокируется: при полной очереди
// запись отбрасывается.
func (b *Batcher) Archive(ev models.Event, refs []catalog.Reference) {
	select {
	case b.in <- Record{Event: ev, References: refs}:
	default:
		if n := b.dropped.Add(1); n == 1 || n%1000 == 0 {
			b.logger.Warn("Очередь архива переполнена, события отбрасываются", zap.Int64("dropped", n))
		}
	}
}

func (b *Batcher) Dropped() int64 {
	return b.dropped.Load()
}

// Run собирает пачки до отмены ctx; при остановке отправляет всё, что успело накопиться.
func (b *Batcher) Run(ctx context.Context) {
	batch := make([]Record, 0, b.batchSize)
	timer := time.NewTimer(b.batchInterval)
	defer timer.Stop()

	flush := func(reason string) {
		if len(batch) == 0 {
			return
		}
		b.logger.Info("Отправляем batch в ClickHouse", zap.Int("count", len(batch)), zap.String("reason", reason))
		// отмена сервиса не должна прерывать последнюю отправку
		if err := b.sink.InsertBatch(context.WithoutCancel(ctx), batch); err != nil {
			b.logger.Error("Ошибка при отправке batch в ClickHouse", zap.Error(err), zap.Int("count", len(batch)))
		} else {
			b.logger.Debug("Batch успешно отправлен", zap.Int("count", len(batch)))
		}
		batch = make([]Record, 0, b.batchSize)
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case rec := <-b.in:
					batch = append(batch, rec)
					if len(batch) >= b.batchSize {
						flush("graceful shutdown")
					}
				default:
					break drain
				}
			}
			flush("graceful shutdown")
			return
		case rec := <-b.in:
			batch = append(batch, rec)
			if len(batch) >= b.batchSize {
				flush("batch size reached")
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(b.batchInterval)
			}
		case <-timer.C:
			flush("interval")
			timer.Reset(b.batchInterval)
		}
	}
}
