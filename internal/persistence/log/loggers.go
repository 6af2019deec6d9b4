package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"survival.io/internal/sim/world"
)

const hourLayout = "2006-01-02-15"

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v to the file for the hour containing at.
func (w *JSONLZstdWriter) Write(at time.Time, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := at.UTC().Format(hourLayout)
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered lines through the encoder so readers see them.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

var (
	ErrEventQueueFull = errors.New("event queue full")
	ErrClosed         = errors.New("event logger closed")
)

const eventQueueSize = 4096

// EventLogger writes one JSONL entry per game event (compressed). Files rotate
// on the event's own timestamp so replays land in the same hour buckets.
//
// WriteEvent only enqueues; a writer goroutine owns the files, so callers on
// the world loop never wait on disk.
type EventLogger struct {
	w   *JSONLZstdWriter
	log *zap.Logger

	mu     sync.RWMutex
	closed bool
	ch     chan eventItem
	done   chan struct{}

	dropTotal  atomic.Uint64
	writeTotal atomic.Uint64
	failTotal  atomic.Uint64
}

type eventItem struct {
	ev    world.GameEvent
	flush chan error // set for flush requests
}

type EventLogStats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTotal     uint64 `json:"drop_total"`
	WriteTotal    uint64 `json:"write_total"`
	FailTotal     uint64 `json:"fail_total"`
}

func NewEventLogger(dataDir string, logger *zap.Logger) *EventLogger {
	l := newEventLogger(dataDir, logger, eventQueueSize)
	l.start()
	return l
}

func newEventLogger(dataDir string, logger *zap.Logger, size int) *EventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventLogger{
		w:    NewJSONLZstdWriter(filepath.Join(dataDir, "events"), "events"),
		log:  logger.Named("eventlog"),
		ch:   make(chan eventItem, size),
		done: make(chan struct{}),
	}
}

func (l *EventLogger) start() { go l.loop() }

func (l *EventLogger) loop() {
	defer close(l.done)
	for it := range l.ch {
		if it.flush != nil {
			it.flush <- l.w.Flush()
			continue
		}
		if err := l.w.Write(time.UnixMilli(it.ev.Time), it.ev); err != nil {
			l.failTotal.Add(1)
			l.log.Warn("write event", zap.String("kind", it.ev.Kind), zap.Error(err))
			continue
		}
		l.writeTotal.Add(1)
	}
}

// WriteEvent never blocks. A full queue drops the event and reports it.
func (l *EventLogger) WriteEvent(ev world.GameEvent) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	select {
	case l.ch <- eventItem{ev: ev}:
		return nil
	default:
		l.dropTotal.Add(1)
		return ErrEventQueueFull
	}
}

// Flush waits until every event queued before the call is on disk.
func (l *EventLogger) Flush() error {
	reply := make(chan error, 1)
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil
	}
	l.ch <- eventItem{flush: reply}
	l.mu.RUnlock()
	return <-reply
}

// Close drains the queue and closes the current file.
func (l *EventLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.ch)
	l.mu.Unlock()
	<-l.done
	return l.w.Close()
}

func (l *EventLogger) Stats() EventLogStats {
	return EventLogStats{
		QueueDepth:    len(l.ch),
		QueueCapacity: cap(l.ch),
		DropTotal:     l.dropTotal.Load(),
		WriteTotal:    l.writeTotal.Load(),
		FailTotal:     l.failTotal.Load(),
	}
}
