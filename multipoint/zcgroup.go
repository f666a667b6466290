package multipoint

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/internal/xlog"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/zerocopy"
)

// ZeroCopyGroup fans out through a shared-memory region instead of
// synchronous per-output delivery, §4.5. Grounded on multipoint_zc.h/.cc.
type ZeroCopyGroup struct {
	*Group

	mu     sync.Mutex
	region *zerocopy.Region
	regCfg zerocopy.RegionConfig
	sized  bool
}

// NewZeroCopyGroup constructs a ZeroCopyGroup with the given id. bufSize
// is the configured buffer parts' total size (payload + metadata), used
// to size the shared region once Establish runs.
func NewZeroCopyGroup(id string, bufSize uint32) *ZeroCopyGroup {
	zg := &ZeroCopyGroup{}
	zg.Group = newGroupWithHooks(id, zg)
	zg.regCfg = zerocopy.RegionConfig{
		SysVKey:  zerocopy.GenerateSysVKey(id),
		RegionSZ: bufSize + zerocopy.HeaderMargin,
	}
	zg.sized = true
	return zg
}

// OnEstablish implements conn.Hooks: computes (already-computed at
// construction) {shm-key, shm-size} and creates the shared region with
// exclusive-create semantics, §4.5 steps 1-3. A shm-key collision with a
// prior group's still-live region fails the establish and leaves the
// group closed, per spec.md §8.
func (zg *ZeroCopyGroup) OnEstablish(ctx *concurrency.Context) error {
	if !zg.sized {
		return conn.ErrBadArgument
	}

	region, err := zerocopy.CreateRegion(zg.regCfg)
	if err != nil {
		xlog.Warningf("[zcgroup %s] create region key=%#x size=%d: %v",
			zg.ID(), zg.regCfg.SysVKey, zg.regCfg.RegionSZ, err)
		return errors.Wrap(conn.ErrGeneralFailure, err.Error())
	}

	zg.mu.Lock()
	zg.region = region
	zg.mu.Unlock()
	return nil
}

// OnShutdown implements conn.Hooks: removes the shared region before
// delegating to Group's own shutdown, §4.5 "on_shutdown".
func (zg *ZeroCopyGroup) OnShutdown(ctx *concurrency.Context) {
	zg.mu.Lock()
	region := zg.region
	zg.region = nil
	zg.mu.Unlock()

	if region != nil {
		if err := region.Close(); err != nil {
			xlog.Warningf("[zcgroup %s] close region: %v", zg.ID(), err)
		}
	}

	zg.Group.OnShutdown(ctx)
}

// GetConfig exposes the finalised {shm-key, shm-size} pair to peers
// (clients and wrapper bridges), available only while active, §4.5
// "get_config()".
func (zg *ZeroCopyGroup) GetConfig() (zerocopy.RegionConfig, error) {
	if zg.State() != conn.StateActive {
		return zerocopy.RegionConfig{}, conn.ErrWrongState
	}
	return zg.regCfg, nil
}

// sharedRegion returns the live shared region, or nil outside active.
func (zg *ZeroCopyGroup) sharedRegion() *zerocopy.Region {
	zg.mu.Lock()
	defer zg.mu.Unlock()
	return zg.region
}

// ZCInitGatewayFromGroup attaches an external gateway peer (a bridge
// wrapper's GatewayRx or GatewayTx) to a ZeroCopyGroup, initialising it
// against the group's shared region descriptor, §4.5
// "zc_init_gateway_from_group". peer must itself be a ZeroCopyGroup.
func ZCInitGatewayFromGroup(ctx *concurrency.Context, gw zerocopyInitializer, peer conn.Conn) error {
	zg, ok := peer.(*ZeroCopyGroup)
	if !ok {
		return conn.ErrBadArgument
	}
	cfg, err := zg.GetConfig()
	if err != nil {
		return err
	}
	if res := gw.Init(ctx, cfg); res != zerocopy.ResultSuccess {
		return errors.Errorf("gateway init: %s", res)
	}
	return nil
}

// zerocopyInitializer is satisfied by *zerocopy.GatewayRx and
// *zerocopy.GatewayTx, letting ZCInitGatewayFromGroup accept either
// without this package importing a concrete gateway direction.
type zerocopyInitializer interface {
	Init(ctx *concurrency.Context, cfg zerocopy.RegionConfig) zerocopy.Result
}
