package badger

import (
	"github.com/poiesic/ragbook/memory"
)

// NewMemoryStores opens an in-memory backend with a vector store and a session
// store on top. Callers close the returned backend.
func NewMemoryStores(dimension int, opts memory.Options) (*VectorStore, *SessionStore, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	vectors, err := NewVectorStore(backend, dimension)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	sessions, err := NewSessionStore(backend, opts)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	return vectors, sessions, backend, nil
}
