package watcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hpcloud/tail"
	"go.uber.org/zap"

	"TrinoEventPump/internal/config"
	"TrinoEventPump/internal/models"
	"TrinoEventPump/internal/parser"
	"TrinoEventPump/internal/storage"
)

type Config struct {
	Events config.EventsConfig
	Logger *zap.Logger
	Store  storage.ProcessedStore
	Parser *parser.Parser
}

// Watcher следит за каталогами событий и читает *.jsonl построчно.
// Для каждого файла хранится смещение после последней обработанной строки.
type Watcher struct {
	cfg         Config
	store       storage.ProcessedStore
	out         chan<- models.Event
	files       map[string]*tail.Tail
	processed   map[string]int64
	watchedDirs map[string]struct{}
	mu          sync.Mutex
	readers     sync.WaitGroup
	ctx         context.Context
}

func New(cfg Config, out chan<- models.Event) (*Watcher, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Parser == nil {
		cfg.Parser = parser.NewParser(nil)
	}
	if _, err := filepath.Match(cfg.Events.FilePattern, ""); err != nil {
		return nil, fmt.Errorf("file pattern %q: %w", cfg.Events.FilePattern, err)
	}

	processed, err := cfg.Store.Load()
	if err != nil {
		cfg.Logger.Error("Не удалось загрузить смещения, начинаем с нуля", zap.Error(err))
		processed = make(map[string]int64)
	}

	return &Watcher{
		cfg:         cfg,
		store:       cfg.Store,
		out:         out,
		files:       make(map[string]*tail.Tail),
		processed:   processed,
		watchedDirs: make(map[string]struct{}),
	}, nil
}

func (w *Watcher) matches(path string) bool {
	ok, _ := filepath.Match(w.cfg.Events.FilePattern, filepath.Base(path))
	return ok
}

// Start блокируется до отмены ctx, затем останавливает чтение и сохраняет смещения.
func (w *Watcher) Start(ctx context.Context) error {
	w.ctx = ctx

	dw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer dw.Close()

	for _, dir := range w.cfg.Events.Directories {
		w.addWatchers(dir, dw)
	}

	w.ScanFiles()

	go w.handleDirEvents(dw)
	go w.runPeriodic(w.cfg.Events.RescanDuration(), "rescan", w.ScanFiles)
	go w.runPeriodic(w.cfg.Events.SaveDuration(), "save", w.saveOffsets)

	<-ctx.Done()
	w.cfg.Logger.Info("Watcher остановлен по сигналу shutdown")

	w.mu.Lock()
	for path, t := range w.files {
		_ = t.Stop()
		delete(w.files, path)
	}
	w.mu.Unlock()
	w.readers.Wait()

	w.saveOffsets()
	return nil
}

// addWatchers рекурсивно добавляет наблюдателей для директорий
func (w *Watcher) addWatchers(dir string, dw *fsnotify.Watcher) {
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			w.cfg.Logger.Debug("Ошибка при обходе директории", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if _, exists := w.watchedDirs[path]; exists {
			return nil
		}
		if err := dw.Add(path); err != nil {
			w.cfg.Logger.Error("Ошибка добавления наблюдателя", zap.String("dir", path), zap.Error(err))
			return nil
		}
		w.watchedDirs[path] = struct{}{}
		w.cfg.Logger.Debug("Добавлен наблюдатель для директории", zap.String("dir", path))
		return nil
	})
}

func (w *Watcher) runPeriodic(every time.Duration, name string, fn func()) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.cfg.Logger.Debug("Периодическая задача", zap.String("task", name))
			fn()
		}
	}
}

// handleDirEvents обрабатывает события fsnotify в каталогах событий
func (w *Watcher) handleDirEvents(dw *fsnotify.Watcher) {
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-dw.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.addWatchers(ev.Name, dw)
					w.scanDir(ev.Name)
					continue
				}
			}
			if !w.matches(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				w.startTail(ev.Name)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.stopTail(ev.Name)
			}
		case err, ok := <-dw.Errors:
			if !ok {
				return
			}
			w.cfg.Logger.Error("Ошибка watcher для каталогов", zap.Error(err))
		}
	}
}

// ScanFiles запускает чтение всех подходящих файлов, от старых к новым.
func (w *Watcher) ScanFiles() {
	for _, dir := range w.cfg.Events.Directories {
		w.scanDir(dir)
	}
}

func (w *Watcher) scanDir(dir string) {
	type fileWithTime struct {
		path string
		mod  time.Time
	}
	var found []fileWithTime
	_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !w.matches(path) {
			return nil
		}
		found = append(found, fileWithTime{path: path, mod: info.ModTime()})
		return nil
	})
	sort.SliceStable(found, func(i, j int) bool { return found[i].mod.Before(found[j].mod) })

	for _, f := range found {
		w.startTail(f.path)
	}
}

// startTail запускает tail для файла, начиная с сохранённого смещения
func (w *Watcher) startTail(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx.Err() != nil {
		return
	}
	if _, exists := w.files[path]; exists {
		return
	}

	offset := w.processed[path]
	if info, err := os.Stat(path); err == nil && info.Size() < offset {
		w.cfg.Logger.Warn("Файл короче сохранённого смещения, читаем сначала",
			zap.String("file", path), zap.Int64("offset", offset), zap.Int64("size", info.Size()))
		offset = 0
	}

	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Location:  &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		w.cfg.Logger.Error("Ошибка открытия tail", zap.String("file", path), zap.Error(err))
		return
	}
	w.files[path] = t
	w.readers.Add(1)
	w.cfg.Logger.Info("Запущен tail для файла", zap.String("file", path), zap.Int64("offset", offset))
	go w.readTail(path, t, offset)
}

// stopTail останавливает tail удалённого файла и забывает его смещение
func (w *Watcher) stopTail(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.files[path]; ok {
		_ = t.Stop()
		delete(w.files, path)
		delete(w.processed, path)
		w.cfg.Logger.Info("Остановлен tail для файла", zap.String("file", path))
	}
}

// readTail разбирает строки и двигает смещение после каждой обработанной строки.
// В режиме Follow tail отдаёт только строки, завершённые переводом строки,
// поэтому смещение считается по длине текста плюс один байт.
func (w *Watcher) readTail(path string, t *tail.Tail, offset int64) {
	defer w.readers.Done()
	defer func() {
		if r := recover(); r != nil {
			w.cfg.Logger.Error("Паника в readTail восстановлена", zap.Any("error", r))
		}
	}()

	for {
		select {
		case <-w.ctx.Done():
			return
		case line, ok := <-t.Lines:
			if !ok {
				return
			}
			offset += int64(len(line.Text)) + 1
			if line.Err != nil {
				w.cfg.Logger.Warn("Ошибка чтения строки", zap.String("file", path), zap.Error(line.Err))
			} else if ev, ok := w.parseLine(path, line.Text); ok {
				select {
				case w.out <- ev:
				case <-w.ctx.Done():
					return
				}
			}
			w.mu.Lock()
			w.processed[path] = offset
			w.mu.Unlock()
		}
	}
}

func (w *Watcher) parseLine(path, text string) (models.Event, bool) {
	clean := text
	if strings.Contains(text, "\x00") {
		w.cfg.Logger.Warn("Обнаружены нулевые байты в строке", zap.String("file", path))
		clean = strings.ReplaceAll(text, "\x00", "")
	}
	if strings.TrimSpace(clean) == "" {
		return models.Event{}, false
	}
	ev, err := w.cfg.Parser.ParseMessage([]byte(clean))
	if err != nil {
		w.cfg.Logger.Warn("Ошибка разбора сообщения", zap.String("file", path), zap.Error(err))
		return models.Event{}, false
	}
	return ev, true
}

// Offsets — копия текущих смещений
func (w *Watcher) Offsets() map[string]int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]int64, len(w.processed))
	for k, v := range w.processed {
		out[k] = v
	}
	return out
}

func (w *Watcher) saveOffsets() {
	if err := w.store.Save(w.Offsets()); err != nil {
		w.cfg.Logger.Error("Не удалось сохранить смещения", zap.Error(err))
	}
}
