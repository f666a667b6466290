// Package bridge implements the leaf bridge contract and the zero-copy
// wrapper bridges that adapt a leaf bridge into a ZeroCopyGroup
// participant. Grounded on original_source/media-proxy/include/mesh/
// mocked_bridge.h, bridge_zc_wrap_rx.h/.cc and bridge_zc_wrap_tx.h/.cc,
// §4.6.
package bridge

import (
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/config"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
)

// BridgeBuilder constructs a leaf bridge Connection from a bridge descriptor.
// Satisfied by manager.BridgesManager; declared here (rather than
// imported from manager) so this package never depends on manager,
// avoiding the import cycle manager -> bridge -> manager.
type BridgeBuilder interface {
	CreateBridge(ctx *concurrency.Context, id string, cfg config.BridgeConfig) (conn.Conn, error)
}
