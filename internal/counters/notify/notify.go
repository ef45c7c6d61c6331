package notify

import (
	"errors"
	"io"
	"log"
	"sync"

	"countercraft.ai/internal/protocol"
)

// Sink delivers feedback to the host. Every method may fail; callers log and
// carry on.
type Sink interface {
	SendMessage(actorID, text string) error
	ShowActionBar(actorID, text string) error
	RunCommand(actorID, command string) error
	AppendLog(text string) error
}

type Discard struct{}

func (Discard) SendMessage(string, string) error   { return nil }
func (Discard) ShowActionBar(string, string) error { return nil }
func (Discard) RunCommand(string, string) error    { return nil }
func (Discard) AppendLog(string) error             { return nil }

// Entry is one delivered notification. Kind reuses the outbox message types.
type Entry struct {
	Kind    string
	ActorID string
	Text    string
}

// Recorder keeps everything it is sent, for tests and dry runs.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
	Err     error
}

func (r *Recorder) add(kind, actorID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Kind: kind, ActorID: actorID, Text: text})
	return r.Err
}

func (r *Recorder) SendMessage(actorID, text string) error {
	return r.add(protocol.TypeMessage, actorID, text)
}

func (r *Recorder) ShowActionBar(actorID, text string) error {
	return r.add(protocol.TypeActionBar, actorID, text)
}

func (r *Recorder) RunCommand(actorID, command string) error {
	return r.add(protocol.TypeCommand, actorID, command)
}

func (r *Recorder) AppendLog(text string) error {
	return r.add(protocol.TypeLog, "", text)
}

func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Of returns the recorded entries of one kind.
func (r *Recorder) Of(kind string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}

// Logger writes every notification as a console line.
type Logger struct {
	L *log.Logger
}

func NewLogger(l *log.Logger) *Logger {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	return &Logger{L: l}
}

func (l *Logger) SendMessage(actorID, text string) error {
	l.L.Printf("msg %s: %s", actorID, text)
	return nil
}

func (l *Logger) ShowActionBar(actorID, text string) error {
	l.L.Printf("actionbar %s: %s", actorID, text)
	return nil
}

func (l *Logger) RunCommand(actorID, command string) error {
	l.L.Printf("cmd %s: %s", actorID, command)
	return nil
}

func (l *Logger) AppendLog(text string) error {
	l.L.Print(text)
	return nil
}

// Multi fans out to every sink and joins their errors.
type Multi []Sink

func (m Multi) each(fn func(Sink) error) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) SendMessage(actorID, text string) error {
	return m.each(func(s Sink) error { return s.SendMessage(actorID, text) })
}

func (m Multi) ShowActionBar(actorID, text string) error {
	return m.each(func(s Sink) error { return s.ShowActionBar(actorID, text) })
}

func (m Multi) RunCommand(actorID, command string) error {
	return m.each(func(s Sink) error { return s.RunCommand(actorID, command) })
}

func (m Multi) AppendLog(text string) error {
	return m.each(func(s Sink) error { return s.AppendLog(text) })
}

// OutboxWriter persists outbox lines for the host to pick up.
type OutboxWriter interface {
	WriteOutbox(protocol.OutboxMsg) error
}

// Outbox turns notifications into outbox lines stamped with the current tick.
type Outbox struct {
	W    OutboxWriter
	Tick func() uint64
}

func (o *Outbox) write(typ, actorID, text string) error {
	var tick uint64
	if o.Tick != nil {
		tick = o.Tick()
	}
	return o.W.WriteOutbox(protocol.OutboxMsg{Type: typ, Tick: tick, ActorID: actorID, Text: text})
}

func (o *Outbox) SendMessage(actorID, text string) error {
	return o.write(protocol.TypeMessage, actorID, text)
}

func (o *Outbox) ShowActionBar(actorID, text string) error {
	return o.write(protocol.TypeActionBar, actorID, text)
}

func (o *Outbox) RunCommand(actorID, command string) error {
	return o.write(protocol.TypeCommand, actorID, command)
}

func (o *Outbox) AppendLog(text string) error {
	return o.write(protocol.TypeLog, "", text)
}

// Journal forwards log entries to W and drops everything else.
type Journal struct {
	W interface{ AppendLog(string) error }
}

func (Journal) SendMessage(string, string) error   { return nil }
func (Journal) ShowActionBar(string, string) error { return nil }
func (Journal) RunCommand(string, string) error    { return nil }
func (j Journal) AppendLog(text string) error      { return j.W.AppendLog(text) }
