package blobstore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by FaultyStore.
var ErrInjected = errors.New("injected fault error")

// Fault defines specific failure behavior.
type Fault struct {
	FailOnOpen bool
	FailOnPut  bool
	// FailAfterBytes fails reads that would take the total read from one
	// opened blob past this many bytes. -1 disables.
	FailAfterBytes int64
	Err            error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyStore is a Store wrapper that can inject errors. It is meant for
// tests of read paths that must fail cleanly mid-stream.
type FaultyStore struct {
	Store Store

	mu    sync.Mutex
	rules map[string]Fault // blob name substring -> Fault
	// Default applies to names matching no rule.
	Default Fault
}

var _ Store = (*FaultyStore)(nil)

// NewFaultyStore wraps s.
func NewFaultyStore(s Store) *FaultyStore {
	return &FaultyStore{
		Store:   s,
		rules:   make(map[string]Fault),
		Default: Fault{FailAfterBytes: -1},
	}
}

// AddRule adds a fault for blob names containing pattern. The longest
// matching pattern wins.
func (f *FaultyStore) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

func (f *FaultyStore) fault(name string) Fault {
	f.mu.Lock()
	defer f.mu.Unlock()

	fault, best := f.Default, -1
	for pattern, rule := range f.rules {
		if len(pattern) > best && strings.Contains(name, pattern) {
			fault, best = rule, len(pattern)
		}
	}
	return fault
}

// Open implements Store.
func (f *FaultyStore) Open(ctx context.Context, name string) (Blob, error) {
	fault := f.fault(name)
	if fault.FailOnOpen {
		return nil, fault.err()
	}
	b, err := f.Store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &faultyBlob{Blob: b, fault: fault}, nil
}

// Put implements Store.
func (f *FaultyStore) Put(ctx context.Context, name string, data []byte) error {
	if fault := f.fault(name); fault.FailOnPut {
		return fault.err()
	}
	return f.Store.Put(ctx, name, data)
}

// Delete implements Store.
func (f *FaultyStore) Delete(ctx context.Context, name string) error {
	return f.Store.Delete(ctx, name)
}

// List implements Store.
func (f *FaultyStore) List(ctx context.Context, prefix string) ([]string, error) {
	return f.Store.List(ctx, prefix)
}

type faultyBlob struct {
	Blob
	fault Fault

	mu   sync.Mutex
	read int64
}

func (b *faultyBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if b.fault.FailAfterBytes >= 0 {
		b.mu.Lock()
		exceeded := b.read+int64(len(p)) > b.fault.FailAfterBytes
		if !exceeded {
			b.read += int64(len(p))
		}
		b.mu.Unlock()
		if exceeded {
			return 0, b.fault.err()
		}
	}
	return b.Blob.ReadAt(ctx, p, off)
}
