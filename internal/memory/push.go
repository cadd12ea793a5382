package memory

import (
	"context"
	"sync"
)

type PushDirectory struct {
	mu        sync.RWMutex
	endpoints map[string]string
}

func NewPushDirectory() *PushDirectory {
	return &PushDirectory{endpoints: map[string]string{}}
}

func (d *PushDirectory) PushEndpoint(_ context.Context, userID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.endpoints[userID], nil
}

func (d *PushDirectory) SetPushEndpoint(_ context.Context, userID, endpoint string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if endpoint == "" {
		delete(d.endpoints, userID)
		return nil
	}
	d.endpoints[userID] = endpoint
	return nil
}
