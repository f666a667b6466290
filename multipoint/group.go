// Package multipoint implements Group and its two fan-out strategies,
// CopyGroup and ZeroCopyGroup. Grounded on
// original_source/media-proxy/include/mesh/multipoint.h,
// src/mesh/multipoint.cc, multipoint_copy.h/.cc and multipoint_zc.h/.cc,
// §4.3–4.5.
package multipoint

import (
	"sync"

	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/internal/xlog"
)

// Group is a Connection (kind = transmitter) plus an ordered outputs
// list. Its own Base.Link slot doubles as the "input" reference: the
// one Connection allowed to feed frames into the group.
type Group struct {
	*conn.Base
	conn.DefaultHooks

	id string

	outputsMx sync.Mutex
	outputs   []conn.Conn

	onOutputsUpdated func()
}

// NewGroup constructs a Group in state not_configured, wired to use g
// itself as the default Hooks implementation. Subtypes (CopyGroup,
// ZeroCopyGroup) replace the Hooks passed to the embedded Base with
// their own, which must delegate unhandled lifecycle events back to
// this Group's exported helpers (OnShutdown) the way the original's
// subclasses call Group::on_shutdown from their own override.
func NewGroup(id string) *Group {
	g := &Group{id: id}
	g.Base = conn.NewBase(conn.KindTransmitter, g)
	return g
}

// newGroupWithHooks is used by CopyGroup/ZeroCopyGroup, which need their
// own Hooks object (so OnEstablish/OnReceive/OnShutdown dispatch to
// their overrides) instead of Group's.
func newGroupWithHooks(id string, hooks conn.Hooks) *Group {
	g := &Group{id: id}
	g.Base = conn.NewBase(conn.KindTransmitter, hooks)
	return g
}

// ID returns the group's identifier.
func (g *Group) ID() string { return g.id }

// SetOnOutputsUpdated installs the hook invoked after every outputs
// mutation. CopyGroup uses it to republish the hot-outputs snapshot;
// ZeroCopyGroup installs no hook (it has no shared-memory routing to
// recompute — see multipoint/zcgroup.go).
func (g *Group) SetOnOutputsUpdated(fn func()) {
	g.onOutputsUpdated = fn
}

func (g *Group) fireOutputsUpdated() {
	if g.onOutputsUpdated != nil {
		g.onOutputsUpdated()
	}
}

// SetLink has dual meaning on a group, §4.3: detaching a requester
// (input or output) when newLink is nil and requester is non-nil, or a
// normal input replacement otherwise.
func (g *Group) SetLink(ctx *concurrency.Context, newLink, requester conn.Conn) error {
	if newLink == nil && requester != nil {
		if requester == g.Link() {
			xlog.Infof("[group %s] remove input %v", g.id, requester)
			return g.Base.SetLink(ctx, nil, nil)
		}

		g.outputsMx.Lock()
		removed := false
		for i, o := range g.outputs {
			if o == requester {
				g.outputs = append(g.outputs[:i:i], g.outputs[i+1:]...)
				removed = true
				break
			}
		}
		g.outputsMx.Unlock()

		if removed {
			xlog.Infof("[group %s] delete output %v", g.id, requester)
			g.fireOutputsUpdated()
		}
		return nil
	}

	return g.Base.SetLink(ctx, newLink, requester)
}

// InputAssigned reports whether the group currently has an input.
func (g *Group) InputAssigned() bool {
	return g.Link() != nil
}

// AssignInput sets input as the group's input, requiring
// input.Kind() == KindReceiver.
func (g *Group) AssignInput(ctx *concurrency.Context, input conn.Conn) error {
	if input.Kind() != conn.KindReceiver {
		return conn.ErrBadArgument
	}
	xlog.Infof("[group %s] assign input", g.id)
	return g.SetLink(ctx, input, nil)
}

// AddOutput appends output to the outputs list, requiring
// output.Kind() == KindTransmitter.
func (g *Group) AddOutput(ctx *concurrency.Context, output conn.Conn) error {
	if output.Kind() != conn.KindTransmitter {
		return conn.ErrBadArgument
	}
	xlog.Infof("[group %s] add output", g.id)

	g.outputsMx.Lock()
	g.outputs = append(g.outputs, output)
	g.outputsMx.Unlock()

	g.fireOutputsUpdated()
	return nil
}

// OutputsNum returns the current number of outputs.
func (g *Group) OutputsNum() int {
	g.outputsMx.Lock()
	defer g.outputsMx.Unlock()
	return len(g.outputs)
}

// outputsSnapshot copies the current outputs list under lock.
func (g *Group) outputsSnapshot() []conn.Conn {
	g.outputsMx.Lock()
	defer g.outputsMx.Unlock()
	out := make([]conn.Conn, len(g.outputs))
	copy(out, g.outputs)
	return out
}

// OnShutdown implements conn.Hooks for a bare Group and is also called
// by CopyGroup/ZeroCopyGroup's own OnShutdown after their
// subtype-specific cleanup, mirroring the original's delegation to
// Group::on_shutdown.
func (g *Group) OnShutdown(ctx *concurrency.Context) {
	if link := g.Link(); link != nil {
		_ = link.SetLink(ctx, nil, nil)
		_ = g.Base.SetLink(ctx, nil, nil)
	}

	g.outputsMx.Lock()
	g.outputs = nil
	g.outputsMx.Unlock()

	g.fireOutputsUpdated()
}
