package history

import (
	"context"
	"strconv"
	"sync"
)

// Revision identifies one version of a medium's content. The empty revision
// means nothing has been stored yet.
type Revision string

// Medium is durable storage for the serialized artifact. Implementations
// must make Store a compare-and-swap: content is written only when expected
// is still the current revision, otherwise ErrRevisionConflict is returned
// and nothing changes.
type Medium interface {
	// Load returns the current content and its revision. An empty medium
	// returns nil content and the empty revision.
	Load(ctx context.Context) ([]byte, Revision, error)

	// Store replaces the content if expected is current and returns the new
	// revision.
	Store(ctx context.Context, content []byte, expected Revision) (Revision, error)

	// String describes the medium for logs and errors.
	String() string

	Close() error
}

// MemoryMedium keeps the artifact in process memory. It backs dry runs and
// tests.
type MemoryMedium struct {
	mu      sync.Mutex
	content []byte
	version int

	// BeforeStore, when set, runs at the start of every Store call before
	// the revision check. Tests use it to interleave writers.
	BeforeStore func(ctx context.Context)
}

// NewMemoryMedium returns a medium seeded with content. Nil content starts
// empty.
func NewMemoryMedium(content []byte) *MemoryMedium {
	m := &MemoryMedium{}
	if content != nil {
		m.content = append([]byte(nil), content...)
		m.version = 1
	}
	return m
}

func (m *MemoryMedium) Load(ctx context.Context) ([]byte, Revision, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.content...), m.revision(), nil
}

func (m *MemoryMedium) Store(ctx context.Context, content []byte, expected Revision) (Revision, error) {
	if m.BeforeStore != nil {
		m.BeforeStore(ctx)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revision() != expected {
		return "", ErrRevisionConflict
	}
	m.content = append([]byte(nil), content...)
	m.version++
	return m.revision(), nil
}

// Content returns a copy of the stored bytes.
func (m *MemoryMedium) Content() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.content...)
}

// Writes returns how many successful stores have happened, counting the seed.
func (m *MemoryMedium) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

func (m *MemoryMedium) String() string { return "memory" }

func (m *MemoryMedium) Close() error { return nil }

func (m *MemoryMedium) revision() Revision {
	if m.version == 0 {
		return ""
	}
	return Revision(strconv.Itoa(m.version))
}
