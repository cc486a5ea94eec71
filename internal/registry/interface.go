package registry

import "context"

// Registry advertises which relay instance currently hosts a live room,
// so operators and downstream dispatchers can locate it. Entries are
// TTL-backed and refreshed by heartbeat; a dead instance's keys expire.
type Registry interface {
	Register(ctx context.Context, roomID string) error
	Deregister(ctx context.Context, roomID string) error
	Lookup(ctx context.Context, roomID string) (string, error)
	StartHeartbeat(ctx context.Context) error
	StopHeartbeat()
	Close() error
}
