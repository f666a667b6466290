package conn

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/internal/xlog"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/telemetry"
)

// Conn is the public contract every entity built on Base satisfies:
// leaf connections, groups, and bridges alike. Grounded on the §4.2
// "Public contract" list.
type Conn interface {
	Kind() Kind
	State() State
	Status() Status
	Link() Conn

	SetLink(ctx *concurrency.Context, newLink, requester Conn) error

	Establish(ctx *concurrency.Context) error
	EstablishAsync(ctx *concurrency.Context)
	Suspend(ctx *concurrency.Context) error
	Resume(ctx *concurrency.Context) error
	Shutdown(ctx *concurrency.Context) error
	ShutdownAsync(ctx *concurrency.Context)

	Transmit(ctx *concurrency.Context, data []byte) (int, error)
	DoReceive(ctx *concurrency.Context, data []byte) (int, error)

	telemetry.Provider
}

// Hooks are the subtype-specific behaviors a Base delegates to, the Go
// stand-in for the virtual methods the original's Connection subclasses
// override. A concrete type embeds *Base and passes itself (or a small
// adapter) as Hooks at construction time.
type Hooks interface {
	// OnEstablish runs while state is Establishing. Returning an error
	// aborts the establish and the connection is left Closed.
	OnEstablish(ctx *concurrency.Context) error
	// OnReceive is the subtype's hot-path delivery logic, invoked by
	// Base.DoReceive once state and argument checks pass.
	OnReceive(ctx *concurrency.Context, data []byte) (int, error)
	// OnShutdown runs while state is Closing, releasing subtype-owned
	// resources (inner bridges, shared memory, gateways).
	OnShutdown(ctx *concurrency.Context)
}

// DefaultHooks gives receiver-only or trivial subtypes a base to embed.
// Its OnReceive returns ErrNotSupported, matching "default on_receive on
// a transmitter" in the §4.2 error table.
type DefaultHooks struct{}

func (DefaultHooks) OnEstablish(*concurrency.Context) error { return nil }
func (DefaultHooks) OnReceive(*concurrency.Context, []byte) (int, error) {
	return 0, ErrNotSupported
}
func (DefaultHooks) OnShutdown(*concurrency.Context) {}

type metricsCounters struct {
	mu sync.Mutex

	inBytes      uint64
	outBytes     uint64
	txSucceeded  uint64
	txFailed     uint64
	errs         uint64

	prevInBytes     uint64
	prevOutBytes    uint64
	prevTxSucceeded uint64
	prevErrs        uint64
	prevTimestampMS int64
}

// Base implements the Connection lifecycle state machine, link swap
// protocol, hot path, and metrics counters shared by every concrete
// Conn in this module. Grounded on conn.h/conn.cc in full.
type Base struct {
	telemetry.ProviderBase

	kind  Kind
	hooks Hooks

	state atomic.Int32

	statusMu       sync.Mutex
	statusOverride *Status

	linkMu sync.Mutex
	link   Conn

	establishMu  sync.Mutex
	establishCtx *concurrency.Context
	establishWG  sync.WaitGroup

	shutdownOnce sync.Once

	metrics metricsCounters
}

// runShutdownHook invokes hooks.OnShutdown exactly once for this Base, no
// matter which of Establish's failure path or a direct/async Shutdown call
// gets there first (spec.md S3, "cancel while establishing").
func (b *Base) runShutdownHook(ctx *concurrency.Context) {
	b.shutdownOnce.Do(func() {
		b.hooks.OnShutdown(ctx)
	})
}

// NewBase constructs a Base of the given kind in state not_configured.
// hooks must not be nil; pass DefaultHooks{} (embedded) if a subtype
// only needs a subset overridden.
func NewBase(kind Kind, hooks Hooks) *Base {
	b := &Base{kind: kind, hooks: hooks}
	b.state.Store(int32(StateNotConfigured))
	return b
}

func (b *Base) Kind() Kind { return b.kind }

func (b *Base) State() State { return State(b.state.Load()) }

func (b *Base) Status() Status {
	state := b.State()
	if state != StateActive && state != StateSuspended {
		return statusFor(state)
	}
	b.statusMu.Lock()
	override := b.statusOverride
	b.statusMu.Unlock()
	if override != nil {
		return *override
	}
	return statusFor(state)
}

// SetStatusOverride lets a subtype report a more specific status (e.g.
// StatusFailure) while remaining in Active/Suspended, per §3's "status
// ... reported by the subtype for active/suspended".
func (b *Base) SetStatusOverride(s Status) {
	b.statusMu.Lock()
	b.statusOverride = &s
	b.statusMu.Unlock()
}

func (b *Base) ClearStatusOverride() {
	b.statusMu.Lock()
	b.statusOverride = nil
	b.statusMu.Unlock()
}

func (b *Base) setState(s State) {
	b.state.Store(int32(s))
}

// Link returns the current link, or nil if none is assigned.
func (b *Base) Link() Conn {
	b.linkMu.Lock()
	defer b.linkMu.Unlock()
	return b.link
}

// SetLink atomically replaces the link, serialised against the hot
// path. A no-op (returns success) if newLink already equals the current
// link. Subtypes with dual-meaning SetLink (groups) wrap this method
// rather than replacing it; see multipoint.Group.
func (b *Base) SetLink(ctx *concurrency.Context, newLink, requester Conn) error {
	if ctx.Cancelled() {
		return ErrContextCancelled
	}
	b.linkMu.Lock()
	defer b.linkMu.Unlock()
	if b.link == newLink {
		return nil
	}
	b.link = newLink
	return nil
}

// Configure transitions not_configured -> configured. Subtypes call
// this after successfully parsing their own configuration payload.
func (b *Base) Configure() error {
	if b.State() != StateNotConfigured {
		return wrongState("configure", b.State())
	}
	b.setState(StateConfigured)
	return nil
}

// Establish transitions configured|closed -> establishing -> active,
// blocking until the subtype's OnEstablish returns. On failure the
// connection is left Closed rather than stuck in establishing, by running
// the same exactly-once OnShutdown path Shutdown uses.
func (b *Base) Establish(ctx *concurrency.Context) error {
	cur := b.State()
	if cur != StateConfigured && cur != StateClosed {
		return wrongState("establish", cur)
	}
	if cur == StateClosed {
		// Starting a fresh lifecycle: the next Shutdown (or failed
		// Establish) must be able to call OnShutdown again.
		b.shutdownOnce = sync.Once{}
	}
	b.setState(StateEstablishing)

	if err := b.hooks.OnEstablish(ctx); err != nil {
		b.setState(StateClosing)
		b.runShutdownHook(ctx)
		b.setState(StateClosed)
		b.SetStatusOverride(StatusFailure)
		return err
	}

	b.ClearStatusOverride()
	b.setState(StateActive)
	return nil
}

// EstablishAsync spawns Establish on its own goroutine against a child
// of ctx, returning immediately. The child token is retained so
// ShutdownAsync can cancel a still-pending establish before joining it.
func (b *Base) EstablishAsync(ctx *concurrency.Context) {
	child := concurrency.WithCancel(ctx)

	b.establishMu.Lock()
	b.establishCtx = child
	b.establishWG.Add(1)
	b.establishMu.Unlock()

	go func() {
		defer b.establishWG.Done()
		if err := b.Establish(child); err != nil {
			xlog.Warningf("async establish failed: %v", err)
		}
	}()
}

// Suspend toggles active -> suspended.
func (b *Base) Suspend(ctx *concurrency.Context) error {
	if b.State() != StateActive {
		return wrongState("suspend", b.State())
	}
	b.setState(StateSuspended)
	return nil
}

// Resume toggles suspended -> active.
func (b *Base) Resume(ctx *concurrency.Context) error {
	if b.State() != StateSuspended {
		return wrongState("resume", b.State())
	}
	b.setState(StateActive)
	return nil
}

// Shutdown is allowed from any state except deleting; idempotent once
// already closed. Transitions through closing, invoking the subtype's
// OnShutdown, then closed. If a concurrent Establish has already failed
// and closed the connection, runShutdownHook's guard means OnShutdown is
// not invoked a second time here — it already ran exactly once (S3).
func (b *Base) Shutdown(ctx *concurrency.Context) error {
	cur := b.State()
	if cur == StateDeleting {
		return wrongState("shutdown", cur)
	}
	if cur == StateClosed {
		return nil
	}
	b.setState(StateClosing)
	b.runShutdownHook(ctx)
	b.setState(StateClosed)
	b.SetStatusOverride(StatusShutdown)
	return nil
}

// ShutdownAsync cancels any pending establish, joins it, then runs
// Shutdown on its own goroutine. This replaces the original's
// detach-and-self-destruct std::jthread pattern: callers that need to
// know when shutdown has actually completed should use the manager's
// errgroup-based join (see manager package) rather than assuming this
// method's goroutine has finished when it returns.
func (b *Base) ShutdownAsync(ctx *concurrency.Context) {
	go func() {
		b.establishMu.Lock()
		pending := b.establishCtx
		b.establishMu.Unlock()

		if pending != nil {
			pending.Cancel()
		}
		b.establishWG.Wait()

		if err := b.Shutdown(ctx); err != nil {
			xlog.Warningf("async shutdown failed: %v", err)
		}
	}()
}

// Transmit is the transmitter-side hot path: single state check,
// link-lock acquisition, delegate to the linked peer's DoReceive. Must
// not allocate beyond what the caller already allocated, log, or block
// except on the link lock (§4.2 "Hot-path semantics").
func (b *Base) Transmit(ctx *concurrency.Context, data []byte) (int, error) {
	if b.State() != StateActive {
		return 0, wrongState("transmit", b.State())
	}

	b.linkMu.Lock()
	defer b.linkMu.Unlock()
	peer := b.link

	if peer == nil {
		b.recordError()
		return 0, ErrNoLinkAssigned
	}

	n, err := peer.DoReceive(ctx, data)
	b.recordTransmit(n, err)
	return n, err
}

// DoReceive is the receiver-side hot path entry point: state check,
// counter update, delegate to the subtype's OnReceive.
func (b *Base) DoReceive(ctx *concurrency.Context, data []byte) (int, error) {
	if b.State() != StateActive {
		return 0, wrongState("do_receive", b.State())
	}

	n, err := b.hooks.OnReceive(ctx, data)
	b.recordReceive(n, err)
	return n, err
}

func (b *Base) recordTransmit(n int, err error) {
	b.metrics.mu.Lock()
	defer b.metrics.mu.Unlock()
	b.metrics.outBytes += uint64(n)
	if err != nil {
		b.metrics.txFailed++
		b.metrics.errs++
	} else {
		b.metrics.txSucceeded++
	}
}

func (b *Base) recordReceive(n int, err error) {
	b.metrics.mu.Lock()
	defer b.metrics.mu.Unlock()
	b.metrics.inBytes += uint64(n)
	if err != nil {
		b.metrics.errs++
	}
}

func (b *Base) recordError() {
	b.metrics.mu.Lock()
	b.metrics.errs++
	b.metrics.mu.Unlock()
}

// Collect implements telemetry.Provider. Reports state, link presence,
// cumulative counters and smoothed per-second/per-interval rates
// derived from the previous snapshot, per §4.10.
func (b *Base) Collect(m *telemetry.Metric) {
	now := time.Now().UnixMilli()

	b.metrics.mu.Lock()
	inBytes := b.metrics.inBytes
	outBytes := b.metrics.outBytes
	txSucceeded := b.metrics.txSucceeded
	txFailed := b.metrics.txFailed
	errs := b.metrics.errs

	prevIn := b.metrics.prevInBytes
	prevOut := b.metrics.prevOutBytes
	prevTx := b.metrics.prevTxSucceeded
	prevErrs := b.metrics.prevErrs
	prevTS := b.metrics.prevTimestampMS

	b.metrics.prevInBytes = inBytes
	b.metrics.prevOutBytes = outBytes
	b.metrics.prevTxSucceeded = txSucceeded
	b.metrics.prevErrs = errs
	b.metrics.prevTimestampMS = now
	b.metrics.mu.Unlock()

	elapsedS := float64(now-prevTS) / 1000
	var inMbps, outMbps, tps, errd float64
	if prevTS != 0 && elapsedS > 0 {
		inMbps = float64(inBytes-prevIn) * 8 / 1_000_000 / elapsedS
		outMbps = float64(outBytes-prevOut) * 8 / 1_000_000 / elapsedS
		tps = float64(txSucceeded-prevTx) / elapsedS
		errd = float64(errs - prevErrs)
	}

	m.Add(telemetry.StringField("state", b.State().String()))
	m.Add(telemetry.BoolField("linked", b.Link() != nil))
	m.Add(telemetry.Uint64Field("in_bytes", inBytes))
	m.Add(telemetry.Uint64Field("out_bytes", outBytes))
	m.Add(telemetry.Uint64Field("tx_succeeded", txSucceeded))
	m.Add(telemetry.Uint64Field("tx_failed", txFailed))
	m.Add(telemetry.Uint64Field("errors", errs))
	m.Add(telemetry.FloatField("in_mbps", inMbps))
	m.Add(telemetry.FloatField("out_mbps", outMbps))
	m.Add(telemetry.FloatField("tps", tps))
	m.Add(telemetry.FloatField("err_delta", errd))
}
