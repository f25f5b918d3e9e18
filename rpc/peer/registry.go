package peer

import (
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
)

// HostRegistry keeps one host per endpoint, so components asking for the
// same endpoint share the listening socket
type HostRegistry struct {
	mu    sync.Mutex
	hosts *xsync.MapOf[string, *Host]
}

// NewHostRegistry creates an empty registry
func NewHostRegistry() *HostRegistry {
	return &HostRegistry{
		hosts: xsync.NewMapOf[string, *Host](),
	}
}

// GetOrCreate returns the host of the endpoint, create is called only if there is none
func (r *HostRegistry) GetOrCreate(endpoint string, create func() (*Host, error)) (*Host, error) {
	if h, ok := r.hosts.Load(endpoint); ok {
		return h, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.hosts.Load(endpoint); ok {
		return h, nil
	}
	h, err := create()
	if err != nil {
		return nil, err
	}
	r.hosts.Store(endpoint, h)
	return h, nil
}

// Get returns the host of the endpoint
func (r *HostRegistry) Get(endpoint string) (*Host, bool) {
	return r.hosts.Load(endpoint)
}

// Remove closes and removes the host of the endpoint
func (r *HostRegistry) Remove(endpoint string) {
	if h, ok := r.hosts.LoadAndDelete(endpoint); ok {
		h.Close()
	}
}

// Len returns the number of hosts
func (r *HostRegistry) Len() int {
	return r.hosts.Size()
}

// CloseAll closes and removes every host
func (r *HostRegistry) CloseAll() {
	r.hosts.Range(func(endpoint string, _ *Host) bool {
		r.Remove(endpoint)
		return true
	})
}
