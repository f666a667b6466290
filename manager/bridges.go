// Package manager implements the three managers that own entity
// lifecycles: BridgesManager (leaf bridges), LocalManager (SDK-facing
// local connections) and GroupManager (the configuration reconciler).
// Grounded on original_source/media-proxy/include/mesh/manager_bridges.h,
// manager_local.h and manager_multipoint.h, §4.7-4.9.
package manager

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/bridge"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/config"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/internal/xlog"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/registry"
)

// BridgesManager owns every leaf bridge, keyed by agent-assigned id,
// §4.7. It implements bridge.BridgeBuilder so the wrapper bridges in
// package bridge can ask it to build their inner leaf bridge without
// bridge importing manager.
//
// Deleting a bridge spawns its shutdown onto wg rather than detaching
// it, §9 "async control flow" redesign flag: the original's
// shutdown_async is a self-destructing jthread nobody joins, which
// leaves the reconciler's own assumption (the bridge pointer stays
// valid until shutdown completes) unenforced. wg turns that into a
// structured task this manager can always join via Wait.
type BridgesManager struct {
	mu  sync.Mutex
	reg *registry.Registry[string, conn.Conn]
	wg  errgroup.Group
}

// NewBridgesManager constructs an empty BridgesManager.
func NewBridgesManager() *BridgesManager {
	return &BridgesManager{reg: registry.New[string, conn.Conn]()}
}

func bridgeKindToConnKind(k config.BridgeKind) conn.Kind {
	switch k {
	case config.BridgeKindTransmitter:
		return conn.KindTransmitter
	case config.BridgeKindReceiver:
		return conn.KindReceiver
	default:
		return conn.KindUndefined
	}
}

// CreateBridge implements bridge.BridgeBuilder, §4.7 "create_bridge".
// The concrete ST2110/RDMA transport construction plan is out of this
// module's scope (spec.md §1 Non-goals); every leaf bridge built here is
// a bridge.MockedBridge configured with the requested kind, per
// DESIGN.md's grounding on mocked_bridge.h.
func (bm *BridgesManager) CreateBridge(ctx *concurrency.Context, id string, cfg config.BridgeConfig) (conn.Conn, error) {
	kind := bridgeKindToConnKind(cfg.Kind)
	if kind == conn.KindUndefined {
		return nil, conn.ErrBadArgument
	}

	b := bridge.NewMockedBridge(kind)
	if err := b.Configure(); err != nil {
		return nil, errors.Wrap(conn.ErrGeneralFailure, err.Error())
	}

	b.EstablishAsync(ctx)

	bm.mu.Lock()
	defer bm.mu.Unlock()
	b.SetMetricsID(id)
	if !bm.reg.Add(id, b) {
		return nil, errors.Errorf("bridge id %q already registered", id)
	}
	return b, nil
}

// GetBridge returns the bridge registered under id, or nil if absent.
func (bm *BridgesManager) GetBridge(id string) conn.Conn {
	b, _ := bm.reg.Get(id)
	return b
}

// DeleteBridge breaks the bidirectional link (if any), removes the
// registry entry, and joins the bridge's shutdown onto wg rather than
// detaching it, §4.7 "delete_bridge".
func (bm *BridgesManager) DeleteBridge(ctx *concurrency.Context, id string) error {
	b, ok := bm.reg.Get(id)
	if !ok {
		return errors.Errorf("bridge %q not found", id)
	}

	bm.mu.Lock()
	if link := b.Link(); link != nil {
		_ = link.SetLink(ctx, nil, b)
		_ = b.SetLink(ctx, nil, b)
	}
	bm.reg.Remove(id)
	bm.mu.Unlock()

	bm.wg.Go(func() error {
		if err := b.Shutdown(ctx); err != nil {
			xlog.Warningf("shut down bridge %q: %v", id, err)
		}
		return nil
	})
	return nil
}

// Shutdown snapshots the registry's ids, deletes each bridge, and joins
// every spawned shutdown before returning, §4.7 "shutdown(ctx) snapshots
// ids and calls delete_bridge for each".
func (bm *BridgesManager) Shutdown(ctx *concurrency.Context) {
	for _, id := range bm.reg.GetAllIDs() {
		if err := bm.DeleteBridge(ctx, id); err != nil {
			xlog.Errorf("delete bridge %q: %v", id, err)
		}
	}
	bm.Wait()
}

// Wait blocks until every bridge shutdown spawned by DeleteBridge so
// far has completed. ReconcileConfig's delete passes don't call this
// directly (deletes within one reconcile pass may proceed concurrently
// with the rest of convergence); Shutdown calls it after deleting every
// bridge, which is how cmd/mediaproxy waits for them before exit.
func (bm *BridgesManager) Wait() error {
	return bm.wg.Wait()
}

// Lock/Unlock expose the manager's own exclusive lock, the one
// CreateBridge and DeleteBridge take; the reconciler does not take it.
func (bm *BridgesManager) Lock()   { bm.mu.Lock() }
func (bm *BridgesManager) Unlock() { bm.mu.Unlock() }
