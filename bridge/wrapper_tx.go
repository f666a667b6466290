package bridge

import (
	"sync"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/config"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/internal/xlog"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/multipoint"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/telemetry"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/zerocopy"
)

// WrapperTx is kind=transmitter: data arriving from the shared-memory
// side (an SDK client write, signalled through the gateway) is pushed
// into the wrapped leaf bridge's do_receive for onward transmission.
// Grounded literally on ZeroCopyWrapperBridgeTx (bridge_zc_wrap_tx.h/.cc).
type WrapperTx struct {
	*conn.Base
	conn.DefaultHooks

	builder BridgeBuilder
	id      string
	cfg     config.BridgeConfig

	inner conn.Conn
	gw    zerocopy.GatewayTx

	mu          sync.Mutex
	inBytes     uint64
	outBytes    uint64
	txSucceeded uint64
	txFailed    uint64
}

// NewWrapperTx constructs a transmitter-kind wrapper that builds its
// inner leaf bridge via builder.
func NewWrapperTx(builder BridgeBuilder) *WrapperTx {
	w := &WrapperTx{builder: builder}
	w.Base = conn.NewBase(conn.KindTransmitter, w)
	return w
}

// Configure builds the inner bridge via the injected BridgeBuilder and
// transitions to configured.
func (w *WrapperTx) Configure(ctx *concurrency.Context, id string, cfg config.BridgeConfig) error {
	inner, err := w.builder.CreateBridge(ctx, id, cfg)
	if err != nil {
		return conn.ErrGeneralFailure
	}
	w.id = id
	w.cfg = cfg
	w.inner = inner
	return w.Base.Configure()
}

// SetLink initialises the internal gateway from the newly linked
// ZeroCopyGroup's shared-region configuration, mirroring WrapperRx.
func (w *WrapperTx) SetLink(ctx *concurrency.Context, newLink, requester conn.Conn) error {
	xlog.Debugf("set_link ZC bridge Tx %v %v", newLink, requester)

	if err := w.Base.SetLink(ctx, newLink, requester); err != nil {
		return err
	}
	if newLink == nil {
		return nil
	}
	return multipoint.ZCInitGatewayFromGroup(ctx, &w.gw, newLink)
}

// OnEstablish installs the gateway's tx callback, which is what actually
// drives data from shared memory into the inner bridge, then goes
// active, §4.6.
func (w *WrapperTx) OnEstablish(ctx *concurrency.Context) error {
	if w.inner == nil {
		return conn.ErrWrongState
	}

	w.gw.SetTxCallback(func(ctx *concurrency.Context, data []byte) (int, zerocopy.Result) {
		w.mu.Lock()
		w.inBytes += uint64(len(data))
		w.mu.Unlock()

		n, err := w.inner.DoReceive(ctx, data)

		w.mu.Lock()
		w.outBytes += uint64(n)
		if err == nil {
			w.txSucceeded++
		} else {
			w.txFailed++
		}
		w.mu.Unlock()

		return n, errToZCResult(err)
	})
	return nil
}

// OnShutdown shuts the gateway down then shuts down the inner bridge.
func (w *WrapperTx) OnShutdown(ctx *concurrency.Context) {
	w.gw.Shutdown(ctx)
	if w.inner != nil {
		_ = w.inner.Shutdown(ctx)
	}
}

// DeliverFromSharedMemory signals that the shared-memory side has a
// frame ready, driving it through the gateway's tx callback into the
// inner bridge. In the original this notification arrives over the
// out-of-scope wire protocol (§1 Non-goals); this is the production
// entry point a future real transport (or a test) calls directly,
// mirroring zerocopy.GatewayTx.Deliver's own doc comment.
func (w *WrapperTx) DeliverFromSharedMemory(ctx *concurrency.Context, data []byte) (int, zerocopy.Result) {
	return w.gw.Deliver(ctx, data)
}

// Collect implements telemetry.Provider, merging the embedded Base's
// generic FSM counters (which never see traffic driven through the
// gateway's tx callback rather than Base.Transmit/DoReceive) with the
// wrapper's own gateway-driven counters.
func (w *WrapperTx) Collect(m *telemetry.Metric) {
	w.Base.Collect(m)

	w.mu.Lock()
	inBytes, outBytes := w.inBytes, w.outBytes
	txSucceeded, txFailed := w.txSucceeded, w.txFailed
	w.mu.Unlock()

	m.Add(telemetry.Uint64Field("gateway_in_bytes", inBytes))
	m.Add(telemetry.Uint64Field("gateway_out_bytes", outBytes))
	m.Add(telemetry.Uint64Field("gateway_tx_succeeded", txSucceeded))
	m.Add(telemetry.Uint64Field("gateway_tx_failed", txFailed))
}
