package anim

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// Node is a single vertex of an animation graph. Within one frame the proxy calls
// Initialize (when the node becomes relevant), CacheBones (when the bone set changes),
// Update and then Evaluate, strictly in that order.
type Node interface {
	// Initialize prepares the node when its graph becomes relevant. Implementations must
	// forward to every owned pose link.
	//
	// Parameters:
	//   - ctx: the initialize context
	Initialize(ctx *InitializeContext)

	// CacheBones re-derives bone-index lookups after a required-bones change. Calling it
	// again with the same cached-bones counter must be a no-op.
	//
	// Parameters:
	//   - ctx: the cache bones context
	CacheBones(ctx *CacheBonesContext)

	// Update advances the node's state and registers tick records. Children receive a
	// context scaled by the node's contribution.
	//
	// Parameters:
	//   - ctx: the update context carrying delta time and branch weight
	Update(ctx *UpdateContext)

	// Evaluate writes the node's pose and curves into out.
	//
	// Parameters:
	//   - out: the destination pose context
	Evaluate(out *PoseContext)

	// GatherDebugData appends a description of the node and its children.
	//
	// Parameters:
	//   - d: the debug data to append to
	GatherDebugData(d *NodeDebugData)
}

// WorkerThreadUpdater is implemented by nodes that state whether their Update may run
// off the game thread. Nodes that do not implement it are assumed safe.
type WorkerThreadUpdater interface {
	CanUpdateInWorkerThread() bool
}

// GameThreadPreUpdater is implemented by nodes that must read game-thread-only data
// before the graph update. PreUpdate runs on the game thread during Proxy.PreUpdate.
type GameThreadPreUpdater interface {
	PreUpdate(p *Proxy)
}

// AssetPlayer is implemented by nodes that play an animation asset. The proxy's query
// API and automatic transition rules use it.
type AssetPlayer interface {
	Node

	// Asset returns the asset being played, or nil.
	Asset() model.Asset

	// CurrentAssetTime returns the playback position in seconds.
	CurrentAssetTime() float32

	// CurrentAssetTimePlayRateAdjusted returns the position measured in the play direction.
	CurrentAssetTimePlayRateAdjusted() float32

	// CurrentAssetLength returns the playable length in seconds.
	CurrentAssetLength() float32

	// CachedBlendWeight returns the weight the player received in its last update.
	CachedBlendWeight() float32

	// IgnoreForRelevancyTest reports whether state relevancy queries skip this player.
	IgnoreForRelevancyTest() bool
}

// NodeBase carries the phase bookkeeping shared by every node. Embed it in node types.
type NodeBase struct {
	// GameThreadOnly forces the whole graph's update onto the game thread.
	GameThreadOnly bool

	initializedAt uint64
	cachedBonesAt uint64
	updatedAt     uint64
	evaluatedAt   uint64
}

func (b *NodeBase) CanUpdateInWorkerThread() bool { return !b.GameThreadOnly }

// markInitialized records that Initialize ran for the proxy's current initialization counter.
func (b *NodeBase) markInitialized(p *Proxy) {
	b.initializedAt = p.initializationCounter
}

// needsCacheBones reports whether CacheBones has not yet run for the proxy's current
// cached-bones counter, and records that it now has.
func (b *NodeBase) needsCacheBones(p *Proxy) bool {
	if b.cachedBonesAt == p.cachedBonesCounter {
		return false
	}
	b.cachedBonesAt = p.cachedBonesCounter
	return true
}

// markUpdated records that Update ran during the proxy's current update pass.
func (b *NodeBase) markUpdated(p *Proxy) {
	b.updatedAt = p.updateCounter
}

// wasUpdatedLastFrame reports whether the node was updated in the previous or current pass.
func (b *NodeBase) wasUpdatedLastFrame(p *Proxy) bool {
	return b.updatedAt != 0 && b.updatedAt+1 >= p.updateCounter
}

// checkEvaluate flags an Evaluate that was not preceded by an Update of the node.
func (b *NodeBase) checkEvaluate(p *Proxy, node string) {
	b.evaluatedAt = p.evaluationCounter
	if b.updatedAt == 0 || b.updatedAt != p.updateCounter {
		p.invariantViolation(fmt.Sprintf("%s evaluated without an update (updated at %d, proxy at %d)", node, b.updatedAt, p.updateCounter))
	}
}

// AssetPlayerBase holds the playback state shared by asset player nodes.
type AssetPlayerBase struct {
	NodeBase

	// GroupName places the player in a named sync group. Empty means ungrouped.
	GroupName string

	// GroupRole decides whether the player may lead its group.
	GroupRole GroupRole

	// IgnoreForRelevancy excludes the player from state relevancy queries.
	IgnoreForRelevancy bool

	// InternalTime is the playback position in seconds (normalized for blend spaces).
	InternalTime float32

	blendWeight float32
	markerTick  MarkerTickRecord
}

func (a *AssetPlayerBase) CachedBlendWeight() float32    { return a.blendWeight }
func (a *AssetPlayerBase) IgnoreForRelevancyTest() bool  { return a.IgnoreForRelevancy }
func (a *AssetPlayerBase) MarkerTick() *MarkerTickRecord { return &a.markerTick }

// updateBlendWeight caches the branch weight and stamps the update counter.
func (a *AssetPlayerBase) updateBlendWeight(ctx *UpdateContext) {
	a.blendWeight = ctx.FinalBlendWeight()
	a.markUpdated(ctx.Proxy)
}

// createTickRecord registers a tick record for the player in its sync group and fills the
// shared fields.
func (a *AssetPlayerBase) createTickRecord(ctx *UpdateContext, asset model.Asset, looping bool, playRate float32) *TickRecord {
	rec := ctx.Proxy.createTickRecord(a.GroupName)
	rec.Asset = asset
	rec.Looping = looping
	rec.PlayRate = playRate
	rec.EffectiveBlendWeight = ctx.FinalBlendWeight()
	rec.RootMotionWeightModifier = ctx.RootMotionWeightModifier()
	rec.TimeAccumulator = &a.InternalTime
	rec.MarkerTick = &a.markerTick
	rec.GroupRole = a.GroupRole
	rec.LeaderScore = leaderScore(a.GroupRole, rec.EffectiveBlendWeight)
	rec.DeltaTime = ctx.DeltaTime
	return rec
}

// assetCompatible reports whether the asset can be played on the proxy's skeleton and logs
// a warning when it cannot.
func assetCompatible(p *Proxy, asset model.Asset, node string) bool {
	if asset == nil {
		return false
	}
	if p.skeleton.IsCompatible(asset.TargetSkeleton()) {
		return true
	}
	common.Logger().Warn("[AnimNode] incompatible asset", "node", node, "asset", asset.AssetName(), "instance", p.name)
	return false
}
