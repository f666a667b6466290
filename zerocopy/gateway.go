package zerocopy

import (
	"sync"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
)

// Result is the gateway's own small result set, translated one-to-one
// into conn's sentinel errors by the wrapper bridges for the documented cases
// (success, wrong-state, context-cancelled) and collapsed to
// error_general_failure for everything else, §4.6.
type Result int

const (
	ResultSuccess Result = iota
	ResultWrongState
	ResultContextCancelled
	ResultGeneralFailure
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultWrongState:
		return "wrong_state"
	case ResultContextCancelled:
		return "context_cancelled"
	default:
		return "general_failure"
	}
}

type gwState int

const (
	gwNotInitialized gwState = iota
	gwReady
	gwShutdown
)

// base holds the state every Gateway flavor shares: the attached shared
// region and its lifecycle.
type base struct {
	mu     sync.Mutex
	state  gwState
	region *Region
}

func (g *base) init(cfg RegionConfig) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != gwNotInitialized {
		return ResultWrongState
	}

	region, err := OpenRegion(cfg)
	if err != nil {
		return ResultGeneralFailure
	}
	if _, err := region.Attach(); err != nil {
		return ResultGeneralFailure
	}

	g.region = region
	g.state = gwReady
	return ResultSuccess
}

func (g *base) shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != gwReady {
		return
	}
	if g.region != nil {
		_ = g.region.Detach()
	}
	g.state = gwShutdown
}

func (g *base) buffer() ([]byte, Result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != gwReady {
		return nil, ResultWrongState
	}
	return g.region.attached, ResultSuccess
}

// GatewayRx is the zero-copy peer ZeroCopyWrapperBridgeRx drives: frames
// handed to Transmit are copied into the shared region for the SDK
// client to pick up. Grounded on GatewayRx as used by
// bridge_zc_wrap_rx.cc's on_receive.
type GatewayRx struct {
	base
}

// Init attaches gw to the region described by cfg.
func (gw *GatewayRx) Init(ctx *concurrency.Context, cfg RegionConfig) Result {
	if ctx.Cancelled() {
		return ResultContextCancelled
	}
	return gw.init(cfg)
}

// Transmit copies data into the shared region, reporting bytes written
// via sent. Mirrors GatewayRx::transmit in the original.
func (gw *GatewayRx) Transmit(ctx *concurrency.Context, data []byte) (sent int, res Result) {
	if ctx.Cancelled() {
		return 0, ResultContextCancelled
	}
	buf, res := gw.buffer()
	if res != ResultSuccess {
		return 0, res
	}
	n := copy(buf, data)
	return n, ResultSuccess
}

// Shutdown detaches the region.
func (gw *GatewayRx) Shutdown(ctx *concurrency.Context) {
	gw.shutdown()
}

// TxCallback is invoked by GatewayTx whenever the shared-memory side has
// a frame ready for the proxy to forward onward (i.e. an SDK client has
// written into the region and the wrapper's inner bridge should consume
// it). Grounded on the lambda ZeroCopyWrapperBridgeTx::on_establish
// installs via gw.set_tx_callback.
type TxCallback func(ctx *concurrency.Context, data []byte) (sent int, res Result)

// GatewayTx is the zero-copy peer ZeroCopyWrapperBridgeTx drives: it
// holds a callback invoked to push newly-available shared-region data
// to the inner bridge.
type GatewayTx struct {
	base

	cbMu sync.Mutex
	cb   TxCallback
}

// Init attaches gw to the region described by cfg.
func (gw *GatewayTx) Init(ctx *concurrency.Context, cfg RegionConfig) Result {
	if ctx.Cancelled() {
		return ResultContextCancelled
	}
	return gw.init(cfg)
}

// SetTxCallback installs the callback invoked on each forwarded frame.
func (gw *GatewayTx) SetTxCallback(cb TxCallback) {
	gw.cbMu.Lock()
	gw.cb = cb
	gw.cbMu.Unlock()
}

// Deliver simulates the shared-memory side signalling that data is
// ready, invoking the installed callback with the region's current
// contents. In the original this is driven by the SDK client writing
// into the segment and notifying the proxy through the out-of-scope
// wire protocol (§1 Non-goals: "does not define media wire formats");
// here it is exposed directly so callers (tests, a future real
// transport) can drive the same code path.
func (gw *GatewayTx) Deliver(ctx *concurrency.Context, data []byte) (sent int, res Result) {
	if ctx.Cancelled() {
		return 0, ResultContextCancelled
	}
	gw.cbMu.Lock()
	cb := gw.cb
	gw.cbMu.Unlock()
	if cb == nil {
		return 0, ResultWrongState
	}
	return cb(ctx, data)
}

// Shutdown detaches the region.
func (gw *GatewayTx) Shutdown(ctx *concurrency.Context) {
	gw.shutdown()
}
