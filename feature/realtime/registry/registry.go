package registry

import (
	"context"
	"errors"
	"time"
)

// ErrUnknownConnection is returned when unbinding a connection that is not bound.
var ErrUnknownConnection = errors.New("unknown connection")

// ExpireFunc is called for every connection removed by Sweep.
type ExpireFunc func(connID, userID string)

// Registry maps users to their live connections. A binding expires when it is not
// refreshed within the registry TTL; Bind on a bound connection refreshes it.
type Registry interface {
	Bind(ctx context.Context, connID, userID string) error
	Unbind(ctx context.Context, connID string) error
	SocketsFor(ctx context.Context, userID string) ([]string, error)
	AnySocketFor(ctx context.Context, userID string) (string, bool, error)
	// Sweep unbinds expired connections and returns their ids.
	Sweep(ctx context.Context) ([]string, error)
	OnExpire(fn ExpireFunc)
}

// Mapping is one bound connection.
type Mapping struct {
	ConnectionID  string
	UserID        string
	EstablishedAt time.Time
	ExpiresAt     time.Time
}

func anySocket(sockets []string, err error) (string, bool, error) {
	if err != nil || len(sockets) == 0 {
		return "", false, err
	}
	return sockets[0], true, nil
}
