package manager

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/internal/meshid"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/internal/xlog"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/registry"
)

const maxUUIDRetries = 5

// localTerminal is the SDK-facing end of a local connection: the shared
// memory region the hot path moves opaque pointer+length pairs through
// (§6.3) is owned and sized elsewhere (the zerocopy package, exercised
// directly by ZeroCopyGroup); here it is a trivial always-succeeding
// terminal, since the concrete memif/shared-ring wiring between this
// process and an SDK client's address space is outside this module's
// scope beyond the Connection hot-path contract itself.
type localTerminal struct {
	conn.DefaultHooks
}

func (localTerminal) OnEstablish(ctx *concurrency.Context) error { return nil }
func (localTerminal) OnReceive(ctx *concurrency.Context, data []byte) (int, error) {
	return len(data), nil
}

// LocalManager owns every SDK-facing local connection, keyed by its
// SDK-assigned id, §4.8. Its own exclusive lock is the "local-manager
// lock" the reconciler and the metrics collector take to serialise
// against SDK-side create/delete, §4.9 step 1 and §4.10 step 1.
type LocalManager struct {
	mu     sync.Mutex
	regSDK *registry.Registry[string, conn.Conn]
}

// NewLocalManager constructs an empty LocalManager.
func NewLocalManager() *LocalManager {
	return &LocalManager{regSDK: registry.New[string, conn.Conn]()}
}

// Lock/Unlock expose the local-manager lock.
func (lm *LocalManager) Lock()   { lm.mu.Lock() }
func (lm *LocalManager) Unlock() { lm.mu.Unlock() }

// CreateConnectionSDK allocates a transmitter or receiver local
// connection, establishes it, and registers it under a freshly
// generated UUID, retrying on collision up to maxUUIDRetries times,
// §4.8 "create_connection_sdk".
func (lm *LocalManager) CreateConnectionSDK(ctx *concurrency.Context, kind conn.Kind) (string, conn.Conn, error) {
	if kind != conn.KindTransmitter && kind != conn.KindReceiver {
		return "", nil, conn.ErrBadArgument
	}

	c := conn.NewBase(kind, localTerminal{})
	if err := c.Configure(); err != nil {
		return "", nil, err
	}
	if err := c.Establish(ctx); err != nil {
		return "", nil, err
	}

	var id string
	var ok bool
	for i := 0; i < maxUUIDRetries; i++ {
		id = meshid.New()
		if ok = lm.regSDK.Add(id, c); ok {
			break
		}
	}
	if !ok {
		_ = c.Shutdown(ctx)
		return "", nil, errors.New("uuid collision, max attempts exceeded")
	}

	return id, c, nil
}

// DeleteConnectionSDK breaks links on both sides, removes the registry
// entry, and shuts the connection down synchronously, §4.8
// "delete_connection_sdk".
func (lm *LocalManager) DeleteConnectionSDK(ctx *concurrency.Context, id string) error {
	c, ok := lm.regSDK.Get(id)
	if !ok {
		return errors.Errorf("local connection %q not found", id)
	}

	if link := c.Link(); link != nil {
		_ = link.SetLink(ctx, nil, c)
		_ = c.SetLink(ctx, nil, c)
	}
	lm.regSDK.Remove(id)

	return c.Shutdown(ctx)
}

// GetConnection returns the connection registered under its SDK id, or
// nil if absent.
func (lm *LocalManager) GetConnection(id string) conn.Conn {
	c, _ := lm.regSDK.Get(id)
	return c
}

// Shutdown snapshots ids and deletes each local connection, §4.8.
func (lm *LocalManager) Shutdown(ctx *concurrency.Context) {
	for _, id := range lm.regSDK.GetAllIDs() {
		if err := lm.DeleteConnectionSDK(ctx, id); err != nil {
			xlog.Errorf("delete local connection %q: %v", id, err)
		}
	}
}
