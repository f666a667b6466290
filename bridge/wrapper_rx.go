package bridge

import (
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/config"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/internal/xlog"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/multipoint"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/zerocopy"
)

// WrapperRx is kind=receiver: it wraps a leaf bridge built with its
// engine suppressed and forwards everything it receives into a
// ZeroCopyGroup's shared region through a GatewayRx. Grounded literally
// on ZeroCopyWrapperBridgeRx (bridge_zc_wrap_rx.h/.cc).
type WrapperRx struct {
	*conn.Base

	builder BridgeBuilder
	id      string
	cfg     config.BridgeConfig

	inner conn.Conn
	gw    zerocopy.GatewayRx
}

// NewWrapperRx constructs a receiver-kind wrapper that builds its inner
// leaf bridge via builder.
func NewWrapperRx(builder BridgeBuilder) *WrapperRx {
	w := &WrapperRx{builder: builder}
	w.Base = conn.NewBase(conn.KindReceiver, w)
	return w
}

// Configure builds the inner bridge via the injected BridgeBuilder and
// transitions to configured, §4.6 "configure(ctx, cfg) builds the inner
// bridge".
func (w *WrapperRx) Configure(ctx *concurrency.Context, id string, cfg config.BridgeConfig) error {
	inner, err := w.builder.CreateBridge(ctx, id, cfg)
	if err != nil {
		return conn.ErrGeneralFailure
	}
	w.id = id
	w.cfg = cfg
	w.inner = inner
	return w.Base.Configure()
}

// SetLink overrides Base.SetLink: once the base link replacement
// succeeds, it (re)initialises the internal gateway from the newly
// linked ZeroCopyGroup's shared-region configuration, §4.6 "set_link
// initialises an internal gateway from the linked ZeroCopyGroup's
// configuration".
func (w *WrapperRx) SetLink(ctx *concurrency.Context, newLink, requester conn.Conn) error {
	xlog.Debugf("set_link ZC bridge Rx %v %v", newLink, requester)

	if err := w.Base.SetLink(ctx, newLink, requester); err != nil {
		return err
	}
	if newLink == nil {
		return nil
	}
	return multipoint.ZCInitGatewayFromGroup(ctx, &w.gw, newLink)
}

// Inner returns the wrapped leaf bridge.
func (w *WrapperRx) Inner() conn.Conn { return w.inner }

// OnEstablish links the inner bridge back to the wrapper and goes
// active, §4.6 "WrapperRx.on_establish".
func (w *WrapperRx) OnEstablish(ctx *concurrency.Context) error {
	if w.inner == nil {
		return conn.ErrWrongState
	}
	return w.inner.SetLink(ctx, w, nil)
}

// OnShutdown shuts the gateway down then shuts down the inner bridge.
func (w *WrapperRx) OnShutdown(ctx *concurrency.Context) {
	w.gw.Shutdown(ctx)
	if w.inner != nil {
		_ = w.inner.Shutdown(ctx)
	}
}

// OnReceive forwards the buffer through the gateway into the
// ZeroCopyGroup's shared region for the SDK client to pick up.
func (w *WrapperRx) OnReceive(ctx *concurrency.Context, data []byte) (int, error) {
	n, res := w.gw.Transmit(ctx, data)
	return n, zcResultToErr(res)
}
