package kv

import "errors"

var ErrClosed = errors.New("kv: store closed")

// Store is the persistence collaborator rule records live in. Keys lists
// every key in insertion order; Delete of a missing key is not an error.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Keys() ([]string, error)
}

// Memory is an in-process Store that keeps insertion order.
type Memory struct {
	order []string
	vals  map[string]string
}

func NewMemory() *Memory {
	return &Memory{vals: map[string]string{}}
}

func (m *Memory) Get(key string) (string, bool, error) {
	v, ok := m.vals[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	if _, ok := m.vals[key]; !ok {
		m.order = append(m.order, key)
	}
	m.vals[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	if _, ok := m.vals[key]; !ok {
		return nil
	}
	delete(m.vals, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) Keys() ([]string, error) {
	return append([]string(nil), m.order...), nil
}
