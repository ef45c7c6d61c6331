package rules

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"countercraft.ai/internal/persistence/kv"
)

var ErrNotFound = errors.New("rules: not found")

// Record is one raw stored rule.
type Record struct {
	Kind Kind
	Name string
	Raw  []byte
}

// Repository maps rule keys onto the key-value collaborator.
type Repository struct {
	store kv.Store
}

func NewRepository(s kv.Store) *Repository {
	return &Repository{store: s}
}

// List returns the stored records of kind in store insertion order.
func (r *Repository) List(kind Kind) ([]Record, error) {
	keys, err := r.store.Keys()
	if err != nil {
		return nil, fmt.Errorf("list %s rules: %w", kind, err)
	}
	var out []Record
	for _, key := range keys {
		k, name, ok := ParseKey(key)
		if !ok || k != kind {
			continue
		}
		v, ok, err := r.store.Get(key)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", key, err)
		}
		if !ok {
			continue
		}
		out = append(out, Record{Kind: kind, Name: name, Raw: []byte(v)})
	}
	return out, nil
}

func (r *Repository) Get(kind Kind, name string) ([]byte, bool, error) {
	v, ok, err := r.store.Get(Key(kind, name))
	if err != nil || !ok {
		return nil, ok, err
	}
	return []byte(v), true, nil
}

func (r *Repository) Put(kind Kind, name string, raw []byte) error {
	return r.store.Set(Key(kind, name), string(raw))
}

func (r *Repository) Remove(kind Kind, name string) error {
	return r.store.Delete(Key(kind, name))
}

// Registry is the in-memory view of one kind's rules. The store is written
// before memory changes, so a failed write leaves the registry as it was.
type Registry struct {
	kind Kind
	repo *Repository
	log  *log.Logger

	mu    sync.RWMutex
	names []string
	rules map[string]*Rule
}

func NewRegistry(kind Kind, repo *Repository, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Registry{kind: kind, repo: repo, log: logger, rules: map[string]*Rule{}}
}

func (r *Registry) Kind() Kind { return r.kind }

// Load replaces the registry contents with every stored record of the kind.
// Records that fail to decode or validate are logged and skipped.
func (r *Registry) Load() (int, error) {
	recs, err := r.repo.List(r.kind)
	if err != nil {
		return 0, err
	}
	names := make([]string, 0, len(recs))
	loaded := make(map[string]*Rule, len(recs))
	for _, rec := range recs {
		rule, err := Decode(rec.Kind, rec.Name, rec.Raw)
		if err == nil {
			err = rule.Validate()
		}
		if err != nil {
			r.log.Printf("skip %s: %v", Key(rec.Kind, rec.Name), err)
			continue
		}
		names = append(names, rec.Name)
		loaded[rec.Name] = rule
	}
	r.mu.Lock()
	r.names = names
	r.rules = loaded
	r.mu.Unlock()
	return len(names), nil
}

// Save persists rule under name, then makes it visible. The stored form is
// decoded back so memory always matches what a later Load would produce.
func (r *Registry) Save(name string, rule Rule) error {
	name = strings.TrimSpace(name)
	rule.Name = name
	rule.Kind = r.kind
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("save %s: %w", Key(r.kind, name), err)
	}
	raw, err := Encode(&rule)
	if err != nil {
		return fmt.Errorf("save %s: %w", Key(r.kind, name), err)
	}
	stored, err := Decode(r.kind, name, raw)
	if err != nil {
		return fmt.Errorf("save %s: %w", Key(r.kind, name), err)
	}
	if err := r.repo.Put(r.kind, name, raw); err != nil {
		return fmt.Errorf("save %s: %w", Key(r.kind, name), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[name]; !ok {
		r.names = append(r.names, name)
	}
	r.rules[name] = stored
	return nil
}

// Delete removes a rule from the store and memory. Records skipped by Load
// can still be deleted.
func (r *Registry) Delete(name string) error {
	r.mu.RLock()
	_, ok := r.rules[name]
	r.mu.RUnlock()
	if !ok {
		_, stored, err := r.repo.Get(r.kind, name)
		if err != nil {
			return fmt.Errorf("delete %s: %w", Key(r.kind, name), err)
		}
		if !stored {
			return fmt.Errorf("%s: %w", Key(r.kind, name), ErrNotFound)
		}
	}
	if err := r.repo.Remove(r.kind, name); err != nil {
		return fmt.Errorf("delete %s: %w", Key(r.kind, name), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rules, name)
	for i, n := range r.names {
		if n == name {
			r.names = append(r.names[:i:i], r.names[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a copy of the named rule. Slices inside the copy are shared
// with the registry and must not be modified.
func (r *Registry) Get(name string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[name]
	if !ok {
		return Rule{}, false
	}
	return *rule, true
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// Rules returns the loaded rules in insertion order. The pointers are
// read-only snapshots; Save replaces rather than mutates them.
func (r *Registry) Rules() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Rule, 0, len(r.names))
	for _, n := range r.names {
		out = append(out, r.rules[n])
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Book holds one registry per kind over a shared store.
type Book struct {
	repo *Repository
	regs map[Kind]*Registry
}

func NewBook(s kv.Store, logger *log.Logger) *Book {
	repo := NewRepository(s)
	b := &Book{repo: repo, regs: make(map[Kind]*Registry, len(Kinds))}
	for _, k := range Kinds {
		b.regs[k] = NewRegistry(k, repo, logger)
	}
	return b
}

// LoadAll loads every kind. A failing kind does not stop the others.
func (b *Book) LoadAll() error {
	var errs []error
	for _, k := range Kinds {
		if _, err := b.regs[k].Load(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Book) Registry(kind Kind) *Registry { return b.regs[kind] }

func (b *Book) Save(kind Kind, name string, rule Rule) error {
	reg, ok := b.regs[kind]
	if !ok {
		return fmt.Errorf("unknown kind %q", kind)
	}
	return reg.Save(name, rule)
}

func (b *Book) Delete(kind Kind, name string) error {
	reg, ok := b.regs[kind]
	if !ok {
		return fmt.Errorf("unknown kind %q", kind)
	}
	return reg.Delete(name)
}

// Repository exposes the raw records, for tooling.
func (b *Book) Repository() *Repository { return b.repo }
