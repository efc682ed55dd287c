package mixer

// Store holds the current StatusSnapshot. The Reconciler serializes access;
// implementations need not be safe for concurrent use.
type Store interface {
	Snapshot() StatusSnapshot
	Replace(s StatusSnapshot)
}

// InMemoryStore keeps the snapshot in process memory.
type InMemoryStore struct {
	snap StatusSnapshot
}

// NewInMemoryStore returns a store holding EmptySnapshot.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snap: EmptySnapshot()}
}

// Snapshot implements Store.Snapshot.
func (s *InMemoryStore) Snapshot() StatusSnapshot {
	return s.snap
}

// Replace implements Store.Replace.
func (s *InMemoryStore) Replace(snap StatusSnapshot) {
	s.snap = snap
}
