package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"countercraft.ai/internal/protocol"
)

// JSONLZstdWriter appends JSON lines to hourly files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

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
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
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
	var err error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Files lists the hourly files written under baseDir with prefix, oldest first.
func Files(baseDir, prefix string) ([]string, error) {
	return filepath.Glob(filepath.Join(baseDir, prefix+"-*.jsonl.zst"))
}

// OutboxLogger is the host-facing feedback stream: messages, action bars
// and commands the host delivers or runs.
type OutboxLogger struct{ w *JSONLZstdWriter }

func NewOutboxLogger(dir string) *OutboxLogger {
	return &OutboxLogger{w: NewJSONLZstdWriter(filepath.Join(dir, "outbox"), "outbox")}
}

func (l *OutboxLogger) WriteOutbox(m protocol.OutboxMsg) error { return l.w.Write(m) }
func (l *OutboxLogger) Close() error                           { return l.w.Close() }

// CounterEntry is one line of the counter log: either a committed score
// change or a free-text entry from a rule's logToMenu notification.
type CounterEntry struct {
	Time      string `json:"time"`
	Tick      uint64 `json:"tick,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Rule      string `json:"rule,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	Objective string `json:"objective,omitempty"`
	Old       int32  `json:"old"`
	New       int32  `json:"new"`
	Text      string `json:"text,omitempty"`
}

// CounterLogger writes the counter log (compressed).
type CounterLogger struct{ w *JSONLZstdWriter }

func NewCounterLogger(dir string) *CounterLogger {
	return &CounterLogger{w: NewJSONLZstdWriter(filepath.Join(dir, "counters"), "counters")}
}

func (l *CounterLogger) WriteEntry(e CounterEntry) error {
	if e.Time == "" {
		e.Time = l.w.now().UTC().Format(time.RFC3339Nano)
	}
	return l.w.Write(e)
}

// AppendLog records a free-text entry; it makes the counter log usable as a
// notification sink target.
func (l *CounterLogger) AppendLog(text string) error {
	return l.WriteEntry(CounterEntry{Text: text})
}

func (l *CounterLogger) Close() error { return l.w.Close() }
