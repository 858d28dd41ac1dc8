package rating

import (
	"sync"

	"github.com/braccet/core/internal/applog"
)

// Registry lazily creates and caches one Store per format, so the process
// doesn't need to know the full set of formats up front.
type Registry struct {
	dataDir string
	log     applog.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

func NewRegistry(dataDir string, logger applog.Logger) *Registry {
	if logger == nil {
		logger = applog.New("rating")
	}
	return &Registry{dataDir: dataDir, log: logger, stores: make(map[string]*Store)}
}

// Get returns the Store for format, creating it on first use.
func (r *Registry) Get(format string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[format]; ok {
		return s
	}
	s := NewStore(format, r.dataDir, r.log)
	r.stores[format] = s
	return s
}
