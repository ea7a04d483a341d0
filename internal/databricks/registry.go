package databricks

import (
	"fmt"
	"strings"
	"sync"
)

// Connection holds the endpoint and credential for one remote workspace.
type Connection struct {
	// Host is the workspace base URL, e.g. "https://example.cloud.databricks.com".
	Host string
	// Token is the bearer token used for authentication.
	Token string
}

// Registry holds named connections and constructs configured clients on
// demand. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Connection),
	}
}

// Register adds a connection to the registry under the given id.
func (r *Registry) Register(connectionID string, conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[connectionID] = conn
}

// Construct resolves the named connection and returns a client bound to it
// with the given transient-retry limit. Returns an error if the connection
// is not registered or is missing a host.
func (r *Registry) Construct(connectionID string, retryLimit int) (Client, error) {
	r.mu.RLock()
	conn, ok := r.conns[connectionID]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("connection %q is not registered", connectionID)
	}
	if strings.TrimSpace(conn.Host) == "" {
		return nil, fmt.Errorf("connection %q has no host configured", connectionID)
	}
	return NewHTTPClient(conn, retryLimit), nil
}
