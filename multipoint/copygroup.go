package multipoint

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/telemetry"
)

// hotOutputsSnapshot is one published generation of the outputs list,
// with a reader count so a writer can tell when it is safe to let the
// previous generation go. Grounded on CopyGroup's outputs_ptr
// (DataplaneAtomicPtr) in multipoint_copy.h/.cc — the teacher's own
// hot-path atomic-pointer-swap idiom (transport/bundle/stream_bundle.go's
// ratomic.Pointer[bundle]) doesn't need this reader-count drain because
// its old pointer is simply garbage-collected once unreferenced; we keep
// the explicit drain anyway to stay faithful to the documented protocol
// (readers must never observe a freed list), even though Go's GC would
// keep the backing slice alive regardless.
type hotOutputsSnapshot struct {
	list []conn.Conn
	refs atomic.Int64
}

// CopyGroup fans out inbound frames to every output by synchronous
// delivery, §4.4. Grounded on multipoint_copy.h/.cc.
type CopyGroup struct {
	*Group

	current atomic.Pointer[hotOutputsSnapshot]

	mu          sync.Mutex
	inBytes     uint64
	outBytes    uint64
	errs        uint64
	txSucceeded uint64
	txFailed    uint64
}

// NewCopyGroup constructs a CopyGroup with the given id.
func NewCopyGroup(id string) *CopyGroup {
	cg := &CopyGroup{}
	cg.Group = newGroupWithHooks(id, cg)
	cg.Group.SetOnOutputsUpdated(cg.onOutputsUpdated)
	return cg
}

// OnEstablish implements conn.Hooks: CopyGroup needs no setup beyond
// the base transition to active/healthy.
func (cg *CopyGroup) OnEstablish(ctx *concurrency.Context) error {
	return nil
}

// OnShutdown implements conn.Hooks, delegating to Group's shutdown
// after clearing the hot-outputs snapshot.
func (cg *CopyGroup) OnShutdown(ctx *concurrency.Context) {
	cg.current.Store(nil)
	cg.Group.OnShutdown(ctx)
}

// onOutputsUpdated copies the current outputs list into a fresh
// snapshot and publishes it, blocking until the previous generation's
// readers have all released their borrow before returning — the
// publish-then-drain half of §5.2.
func (cg *CopyGroup) onOutputsUpdated() {
	snapshot := cg.Group.outputsSnapshot()

	var next *hotOutputsSnapshot
	if len(snapshot) > 0 {
		next = &hotOutputsSnapshot{list: snapshot}
	}

	prev := cg.current.Swap(next)
	if prev == nil {
		return
	}
	for prev.refs.Load() > 0 {
		runtime.Gosched()
	}
}

// acquireHotOutputs takes a read borrow on the currently published
// outputs snapshot, or nil if none is published.
func (cg *CopyGroup) acquireHotOutputs() *hotOutputsSnapshot {
	for {
		p := cg.current.Load()
		if p == nil {
			return nil
		}
		p.refs.Add(1)
		if cg.current.Load() == p {
			return p
		}
		p.refs.Add(-1)
	}
}

func (cg *CopyGroup) releaseHotOutputs(p *hotOutputsSnapshot) {
	if p != nil {
		p.refs.Add(-1)
	}
}

// OnReceive implements conn.Hooks: the fan-out entry point, §4.4.
func (cg *CopyGroup) OnReceive(ctx *concurrency.Context, data []byte) (int, error) {
	if cg.State() != conn.StateActive {
		return 0, conn.ErrWrongState
	}
	if !cg.InputAssigned() {
		return 0, conn.ErrNoLinkAssigned
	}

	cg.recordInbound(len(data))

	snap := cg.acquireHotOutputs()
	if snap == nil || len(snap.list) == 0 {
		cg.releaseHotOutputs(snap)
		return 0, conn.ErrNoLinkAssigned
	}

	var totalSent int
	var errs int
	for _, out := range snap.list {
		if out == nil {
			errs++
			continue
		}
		n, err := out.DoReceive(ctx, data)
		totalSent += n
		if err != nil {
			errs++
		}
	}
	cg.releaseHotOutputs(snap)

	cg.recordOutbound(totalSent, errs)

	return len(data), nil
}

func (cg *CopyGroup) recordInbound(n int) {
	cg.mu.Lock()
	cg.inBytes += uint64(n)
	cg.mu.Unlock()
}

func (cg *CopyGroup) recordOutbound(sent, errs int) {
	cg.mu.Lock()
	cg.outBytes += uint64(sent)
	cg.errs += uint64(errs)
	if errs == 0 {
		cg.txSucceeded++
	} else {
		cg.txFailed++
	}
	cg.mu.Unlock()
}

// Collect implements telemetry.Provider, merging the embedded Base's
// generic FSM/link counters with CopyGroup's own fan-out counters — the
// latter are invisible to Base because OnReceive delivers to each output
// via DoReceive directly rather than through Base.Transmit, §5.2.
func (cg *CopyGroup) Collect(m *telemetry.Metric) {
	cg.Base.Collect(m)

	cg.mu.Lock()
	inBytes, outBytes := cg.inBytes, cg.outBytes
	errs := cg.errs
	txSucceeded, txFailed := cg.txSucceeded, cg.txFailed
	cg.mu.Unlock()

	m.Add(telemetry.Uint64Field("group_in_bytes", inBytes))
	m.Add(telemetry.Uint64Field("group_out_bytes", outBytes))
	m.Add(telemetry.Uint64Field("group_errors", errs))
	m.Add(telemetry.Uint64Field("group_tx_succeeded", txSucceeded))
	m.Add(telemetry.Uint64Field("group_tx_failed", txFailed))
}
