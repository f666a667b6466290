package bridge

import (
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
)

// MockedBridge stands in for the out-of-scope ST2110/RDMA leaf
// transports (spec.md §1 Non-goals excludes their concrete
// implementation): on_establish and on_receive both succeed
// unconditionally, echoing back the byte count. Grounded literally on
// mocked_bridge.h.
type MockedBridge struct {
	*conn.Base
	conn.DefaultHooks
}

// NewMockedBridge constructs a mocked leaf bridge of the given kind,
// already in state not_configured.
func NewMockedBridge(kind conn.Kind) *MockedBridge {
	mb := &MockedBridge{}
	mb.Base = conn.NewBase(kind, mb)
	return mb
}

// OnEstablish always succeeds, mirroring mocked_bridge.h's
// unconditional transition to active.
func (mb *MockedBridge) OnEstablish(ctx *concurrency.Context) error { return nil }

// OnReceive echoes the byte count back, never failing.
func (mb *MockedBridge) OnReceive(ctx *concurrency.Context, data []byte) (int, error) {
	return len(data), nil
}
