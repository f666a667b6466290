package manager

import (
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/concurrency"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/config"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/conn"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/internal/xlog"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/multipoint"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/registry"
	"github.com/OpenVisualCloud/Media-Communications-Mesh-sub000/telemetry"
)

// groupConn is the subset of *multipoint.Group (and, through embedding,
// *multipoint.CopyGroup / *multipoint.ZeroCopyGroup) ReconcileConfig
// needs. Declared here rather than imported as a concrete type so this
// file only depends on what it uses.
type groupConn interface {
	conn.Conn
	ID() string
	AssignInput(ctx *concurrency.Context, input conn.Conn) error
	AddOutput(ctx *concurrency.Context, output conn.Conn) error
}

// groupChange is one entry of a reconciliation pass: a group id plus
// the conn/bridge ids added and removed since the last applied config,
// §4.9 "GroupChangeConfig".
type groupChange struct {
	groupID string

	addedConnIDs   []string
	deletedConnIDs []string

	addedBridgeIDs   []string
	deletedBridgeIDs []string
}

// GroupManager owns every multipoint group and reconciles them against
// successive desired-state configs pushed by the agent, §4.9. Grounded
// on original_source/media-proxy/include/mesh/manager_multipoint.h and
// src/mesh/manager_multipoint.cc.
type GroupManager struct {
	localMgr   *LocalManager
	bridgesMgr *BridgesManager
	metrics    *telemetry.Registry

	groups *registry.Registry[string, groupConn]

	cfg config.Config
}

// NewGroupManager constructs a GroupManager with no groups and an empty
// remembered config. metrics may be nil, in which case groups are never
// registered for collection (useful in tests that don't exercise
// telemetry).
func NewGroupManager(localMgr *LocalManager, bridgesMgr *BridgesManager, metrics *telemetry.Registry) *GroupManager {
	return &GroupManager{
		localMgr:   localMgr,
		bridgesMgr: bridgesMgr,
		metrics:    metrics,
		groups:     registry.New[string, groupConn](),
		cfg:        config.Config{Groups: map[string]config.GroupConfig{}, Bridges: map[string]config.BridgeConfig{}},
	}
}

// diffIDs splits newIDs/currentIDs into the ids only in newIDs (added)
// and the ids only in currentIDs (deleted), §4.9 "fn" lambda.
func diffIDs(currentIDs, newIDs []string) (added, deleted []string) {
	currentSet := make(map[string]struct{}, len(currentIDs))
	for _, id := range currentIDs {
		currentSet[id] = struct{}{}
	}
	newSet := make(map[string]struct{}, len(newIDs))
	for _, id := range newIDs {
		newSet[id] = struct{}{}
	}

	for _, id := range newIDs {
		if _, ok := currentSet[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range currentIDs {
		if _, ok := newSet[id]; !ok {
			deleted = append(deleted, id)
		}
	}
	return added, deleted
}

// ApplyConfig diffs newCfg against the last applied config into added,
// deleted and updated group change sets, remembers newCfg, and hands
// the three sets to ReconcileConfig, §4.9 "apply_config".
func (gm *GroupManager) ApplyConfig(ctx *concurrency.Context, newCfg config.Config) error {
	var added, deleted, updated []groupChange

	for groupID, newGroupCfg := range newCfg.Groups {
		curGroupCfg, exists := gm.cfg.Groups[groupID]
		if !exists {
			added = append(added, groupChange{
				groupID:        groupID,
				addedConnIDs:   append([]string(nil), newGroupCfg.ConnIDs...),
				addedBridgeIDs: append([]string(nil), newGroupCfg.BridgeIDs...),
			})
			continue
		}

		addedConnIDs, deletedConnIDs := diffIDs(curGroupCfg.ConnIDs, newGroupCfg.ConnIDs)
		addedBridgeIDs, deletedBridgeIDs := diffIDs(curGroupCfg.BridgeIDs, newGroupCfg.BridgeIDs)

		if len(addedConnIDs) == 0 && len(deletedConnIDs) == 0 &&
			len(addedBridgeIDs) == 0 && len(deletedBridgeIDs) == 0 {
			continue
		}

		updated = append(updated, groupChange{
			groupID:          groupID,
			addedConnIDs:     addedConnIDs,
			deletedConnIDs:   deletedConnIDs,
			addedBridgeIDs:   addedBridgeIDs,
			deletedBridgeIDs: deletedBridgeIDs,
		})
	}

	for groupID, curGroupCfg := range gm.cfg.Groups {
		if _, exists := newCfg.Groups[groupID]; exists {
			continue
		}
		deleted = append(deleted, groupChange{
			groupID:          groupID,
			deletedConnIDs:   append([]string(nil), curGroupCfg.ConnIDs...),
			deletedBridgeIDs: append([]string(nil), curGroupCfg.BridgeIDs...),
		})
	}

	gm.cfg = newCfg
	if gm.cfg.Groups == nil {
		gm.cfg.Groups = map[string]config.GroupConfig{}
	}
	if gm.cfg.Bridges == nil {
		gm.cfg.Bridges = map[string]config.BridgeConfig{}
	}

	if ctx.Cancelled() {
		return conn.ErrContextCancelled
	}

	return gm.ReconcileConfig(ctx, added, deleted, updated)
}

// newGroup builds the concrete Group strategy for a group config, §4.4
// "CopyGroup" / §4.5 "ZeroCopyGroup": a multipoint_group URN of "zc"
// selects zero-copy fan-out; anything else (including an absent or
// unrecognized URN) falls back to synchronous copy fan-out. The
// bridge.Wrapper{Rx,Tx} wrappers work only against a ZeroCopyGroup;
// against any other peer they fail with ErrBadArgument.
func newGroup(id string, groupCfg config.GroupConfig) groupConn {
	urn := ""
	if mg := groupCfg.ConnConfig.MultipointGroup; mg != nil {
		urn = mg.URN
	}
	if urn == "zc" {
		return multipoint.NewZeroCopyGroup(id, groupCfg.ConnConfig.MaxPayloadSize)
	}
	return multipoint.NewCopyGroup(id)
}

// ReconcileConfig applies three independent change sets to the live
// group set, in the fixed order §4.9 requires: whole-group deletes,
// partial deletes within surviving groups, whole-group adds, then
// partial adds within surviving groups. It takes the local-manager lock
// for its entire duration, serializing against SDK-side
// create/delete_connection_sdk. A single entity's failure is logged and
// reconciliation continues with the next; only ctx cancellation aborts
// early, both matching "best-effort convergence" in §4.9.
func (gm *GroupManager) ReconcileConfig(ctx *concurrency.Context, added, deleted, updated []groupChange) error {
	if len(added) == 0 && len(deleted) == 0 && len(updated) == 0 {
		xlog.Infof("[reconcile] config is up to date")
		return nil
	}

	gm.localMgr.Lock()
	defer gm.localMgr.Unlock()

	xlog.Infof("[reconcile] started")

	for _, change := range deleted {
		g, ok := gm.groups.Get(change.groupID)
		if !ok {
			xlog.Errorf("[reconcile] delete group %q: not found", change.groupID)
			continue
		}

		xlog.Infof("[reconcile] delete group %q and its conns", change.groupID)

		if link := g.Link(); link != nil {
			_ = link.SetLink(ctx, nil, g)
			_ = g.SetLink(ctx, nil, g)
		}
		_ = g.Shutdown(ctx)
		gm.unregisterGroup(g)

		for _, bridgeID := range change.deletedBridgeIDs {
			if err := gm.bridgesMgr.DeleteBridge(ctx, bridgeID); err != nil {
				xlog.Errorf("[reconcile] delete group %q bridge %q: %v", change.groupID, bridgeID, err)
			}
		}

		gm.groups.Remove(change.groupID)
	}

	for _, change := range updated {
		g, ok := gm.groups.Get(change.groupID)
		if !ok {
			xlog.Errorf("[reconcile] update group %q del: not found", change.groupID)
			continue
		}

		for _, connID := range change.deletedConnIDs {
			c := gm.localMgr.GetConnection(connID)
			if c == nil {
				continue
			}
			xlog.Infof("[reconcile] delete conn %q from group %q", connID, change.groupID)
			if link := c.Link(); link != nil {
				_ = link.SetLink(ctx, nil, c)
				_ = c.SetLink(ctx, nil, c)
			}
		}

		for _, bridgeID := range change.deletedBridgeIDs {
			if err := gm.bridgesMgr.DeleteBridge(ctx, bridgeID); err != nil {
				xlog.Errorf("[reconcile] update group %q bridge %q: %v", change.groupID, bridgeID, err)
			}
		}
	}

	for _, change := range added {
		if ctx.Cancelled() {
			return conn.ErrContextCancelled
		}

		groupCfg, ok := gm.cfg.Groups[change.groupID]
		if !ok {
			xlog.Errorf("[reconcile] add group %q: no config", change.groupID)
			continue
		}

		g := newGroup(change.groupID, groupCfg)

		xlog.Infof("[reconcile] add group %q (conns=%d bridges=%d)", change.groupID,
			len(change.addedConnIDs), len(change.addedBridgeIDs))

		if err := g.Configure(); err != nil {
			xlog.Errorf("[reconcile] group %q configure: %v", change.groupID, err)
			continue
		}
		if err := g.Establish(ctx); err != nil {
			xlog.Errorf("[reconcile] group %q establish: %v", change.groupID, err)
			_ = g.Shutdown(ctx)
			continue
		}

		if !gm.groups.Add(change.groupID, g) {
			xlog.Errorf("[reconcile] add group %q: already registered", change.groupID)
			_ = g.Shutdown(ctx)
			continue
		}
		gm.registerGroup(g)

		gm.addConns(ctx, g, change.addedConnIDs)
		gm.addBridges(ctx, g, change.addedBridgeIDs)
	}

	for _, change := range updated {
		g, ok := gm.groups.Get(change.groupID)
		if !ok {
			xlog.Errorf("[reconcile] update group %q: not found", change.groupID)
			continue
		}

		gm.addConns(ctx, g, change.addedConnIDs)
		gm.addBridges(ctx, g, change.addedBridgeIDs)
	}

	xlog.Infof("[reconcile] completed (groups=%d)", gm.groups.Len())
	return nil
}

// addConns associates each already-created local connection in connIDs
// with group, logging and skipping any id LocalManager doesn't know
// about.
func (gm *GroupManager) addConns(ctx *concurrency.Context, g groupConn, connIDs []string) {
	for _, connID := range connIDs {
		c := gm.localMgr.GetConnection(connID)
		if c == nil {
			xlog.Errorf("[reconcile] add conn %q to group %q: not found", connID, g.ID())
			continue
		}

		xlog.Infof("[reconcile] add conn %q to group %q", connID, g.ID())
		if err := associate(ctx, g, c); err != nil {
			xlog.Errorf("[reconcile] add conn %q to group %q: %v", connID, g.ID(), err)
		}
	}
}

// addBridges builds and associates each bridge in bridgeIDs with group,
// looking its descriptor up in the remembered config.
func (gm *GroupManager) addBridges(ctx *concurrency.Context, g groupConn, bridgeIDs []string) {
	for _, bridgeID := range bridgeIDs {
		bridgeCfg, ok := gm.cfg.Bridges[bridgeID]
		if !ok {
			xlog.Errorf("[reconcile] add bridge %q to group %q: no config", bridgeID, g.ID())
			continue
		}

		xlog.Infof("[reconcile] add bridge %q to group %q", bridgeID, g.ID())

		b, err := gm.bridgesMgr.CreateBridge(ctx, bridgeID, bridgeCfg)
		if err != nil {
			xlog.Errorf("[reconcile] add bridge %q to group %q: %v", bridgeID, g.ID(), err)
			continue
		}

		if err := associate(ctx, g, b); err != nil {
			xlog.Errorf("[reconcile] add bridge %q to group %q wrong kind: %v", bridgeID, g.ID(), err)
		}
	}
}

// associate wires a connection (local or bridge) into a group according
// to its Kind, §4.9 "associate": a receiver is assigned as the group's
// input, a transmitter is appended to the group's outputs. Each branch
// sets the connection's own link before or after the group-side call in
// the same order the original establishes it in. If the second call
// fails, the first is not undone.
func associate(ctx *concurrency.Context, g groupConn, c conn.Conn) error {
	switch c.Kind() {
	case conn.KindReceiver:
		if err := g.AssignInput(ctx, c); err != nil {
			return err
		}
		return c.SetLink(ctx, g, nil)

	case conn.KindTransmitter:
		if err := c.SetLink(ctx, g, nil); err != nil {
			return err
		}
		return g.AddOutput(ctx, c)

	default:
		return conn.ErrBadArgument
	}
}

func (gm *GroupManager) registerGroup(g groupConn) {
	if gm.metrics == nil {
		return
	}
	if p, ok := g.(telemetry.Provider); ok {
		p.SetMetricsID(g.ID())
		gm.metrics.Register(p)
	}
}

func (gm *GroupManager) unregisterGroup(g groupConn) {
	if gm.metrics == nil {
		return
	}
	if p, ok := g.(telemetry.Provider); ok {
		gm.metrics.Unregister(p)
	}
}

// GetGroup returns the group registered under id, or nil if absent.
func (gm *GroupManager) GetGroup(id string) conn.Conn {
	g, ok := gm.groups.Get(id)
	if !ok {
		return nil
	}
	return g
}

// Shutdown tears down every live group directly, bypassing
// ReconcileConfig's config bookkeeping — used only at process exit.
func (gm *GroupManager) Shutdown(ctx *concurrency.Context) {
	for _, id := range gm.groups.GetAllIDs() {
		g, ok := gm.groups.Get(id)
		if !ok {
			continue
		}
		if link := g.Link(); link != nil {
			_ = link.SetLink(ctx, nil, g)
		}
		_ = g.Shutdown(ctx)
		gm.unregisterGroup(g)
		gm.groups.Remove(id)
	}
}
