package watcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"TrinoEventPump/internal/models"
	"TrinoEventPump/internal/parser"
)

// ReadFile читает файл событий один раз, без слежения, и передаёт каждое
// разобранное событие в fn. Строки, которые не удалось разобрать, пропускаются.
// Возвращает число переданных событий.
func ReadFile(ctx context.Context, path string, p *parser.Parser, lg *zap.Logger, fn func(models.Event)) (int, error) {
	if lg == nil {
		lg = zap.NewNop()
	}
	t, err := tail.TailFile(path, tail.Config{
		Follow:    false,
		MustExist: true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer t.Cleanup()

	n := 0
	lineNo := 0
	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return n, ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				return n, nil
			}
			lineNo++
			if line.Err != nil {
				lg.Warn("Ошибка чтения строки", zap.String("file", path), zap.Int("line", lineNo), zap.Error(line.Err))
				continue
			}
			text := strings.ReplaceAll(line.Text, "\x00", "")
			if strings.TrimSpace(text) == "" {
				continue
			}
			ev, err := p.ParseMessage([]byte(text))
			if err != nil {
				lg.Warn("Ошибка разбора сообщения", zap.String("file", path), zap.Int("line", lineNo), zap.Error(err))
				continue
			}
			fn(ev)
			n++
		}
	}
}
