package wardrobe

import (
	"context"
	"sync"
)

// MemoryStore keeps encoded documents in process memory. Documents go
// through the same codec as the file store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

// Load decodes the stored document
func (s *MemoryStore) Load(ctx context.Context, sessionID string) (*Collection, error) {
	if err := ValidateSessionID(sessionID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	data, ok := s.docs[sessionID]
	s.mu.RUnlock()
	if !ok {
		return NewCollection(), nil
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return FromDocument(doc)
}

// Save encodes and stores the collection
func (s *MemoryStore) Save(ctx context.Context, sessionID string, c *Collection) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	data, err := Encode(NewDocument(sessionID, c))
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[sessionID] = data
	s.mu.Unlock()
	return nil
}

// Delete drops the session
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	if err := ValidateSessionID(sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.docs, sessionID)
	s.mu.Unlock()
	return nil
}

// Ping always succeeds
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Raw returns the stored encoding of a session, for tests and debugging
func (s *MemoryStore) Raw(sessionID string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[sessionID]
	return data, ok
}
