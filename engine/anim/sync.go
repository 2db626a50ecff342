package anim

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// GroupRole decides whether an asset player may lead its sync group.
type GroupRole uint8

const (
	// CanBeLeader lets the highest weighted player lead.
	CanBeLeader GroupRole = iota
	// AlwaysFollower never leads.
	AlwaysFollower
	// AlwaysLeader leads whenever it is relevant.
	AlwaysLeader
)

func (r GroupRole) String() string {
	switch r {
	case CanBeLeader:
		return "CanBeLeader"
	case AlwaysFollower:
		return "AlwaysFollower"
	case AlwaysLeader:
		return "AlwaysLeader"
	}
	return "Unknown"
}

// leaderScore ranks leader candidates. Higher scores are tried first.
func leaderScore(role GroupRole, weight float32) float32 {
	switch role {
	case AlwaysLeader:
		return 2
	case AlwaysFollower:
		return -1
	}
	return weight
}

// MarkerPair names a sync marker and its time in the asset. An empty name means no marker.
type MarkerPair struct {
	Name string
	Time float32
}

// MarkerTickRecord is a player's position relative to the sync markers around it.
type MarkerTickRecord struct {
	PrevMarker MarkerPair
	NextMarker MarkerPair
}

// IsValid reports whether both surrounding markers are known.
func (r MarkerTickRecord) IsValid() bool {
	return r.PrevMarker.Name != "" && r.NextMarker.Name != ""
}

// MarkerSyncPosition is the asset-independent position a leader publishes to its followers:
// the marker pair it sits between and how far along it is.
type MarkerSyncPosition struct {
	PrevMarker             string
	NextMarker             string
	PositionBetweenMarkers float32
}

// IsValid reports whether the position names both markers.
func (s MarkerSyncPosition) IsValid() bool {
	return s.PrevMarker != "" && s.NextMarker != ""
}

// BlendSampleState is the playback state of one blend space sample.
type BlendSampleState struct {
	SampleIndex int
	Weight      float32
	Time        float32
}

// TickRecord is registered by an asset player during Update and ticked after the graph
// update, either alone or as part of its sync group.
type TickRecord struct {
	Asset                    model.Asset
	Looping                  bool
	PlayRate                 float32
	EffectiveBlendWeight     float32
	RootMotionWeightModifier float32
	LeaderScore              float32
	GroupRole                GroupRole

	// DeltaTime is the branch's delta when the player registered, after any time scaling
	// above it in the graph.
	DeltaTime float32

	// TimeAccumulator points at the owning player's time, in seconds for sequences and
	// normalized for blend spaces.
	TimeAccumulator *float32

	// MarkerTick points at the owning player's marker record.
	MarkerTick *MarkerTickRecord

	// BlendSamples points at a blend space player's per-sample state.
	BlendSamples *[]BlendSampleState
}

// SyncGroup collects the tick records registered under one group name in a frame.
type SyncGroup struct {
	ActivePlayers    []*TickRecord
	GroupLeaderIndex int
	ValidMarkers     []string

	// MarkerSyncPosition is where the leader ended this frame. Invalid when the group
	// synchronized by normalized time.
	MarkerSyncPosition MarkerSyncPosition
}

func (g *SyncGroup) reset() {
	g.ActivePlayers = g.ActivePlayers[:0]
	g.GroupLeaderIndex = -1
	g.ValidMarkers = g.ValidMarkers[:0]
	g.MarkerSyncPosition = MarkerSyncPosition{}
}

// CanUseMarkerSync reports whether every player shares at least one marker name.
func (g *SyncGroup) CanUseMarkerSync() bool { return len(g.ValidMarkers) > 0 }

// prepare sorts the players by leader score and computes the marker names every player has.
func (g *SyncGroup) prepare() {
	slices.SortStableFunc(g.ActivePlayers, func(a, b *TickRecord) int {
		switch {
		case a.LeaderScore > b.LeaderScore:
			return -1
		case a.LeaderScore < b.LeaderScore:
			return 1
		}
		return 0
	})

	g.ValidMarkers = g.ValidMarkers[:0]
	for i, rec := range g.ActivePlayers {
		seq, ok := rec.Asset.(*model.Sequence)
		if !ok {
			g.ValidMarkers = g.ValidMarkers[:0]
			return
		}
		names := seq.MarkerNames()
		if i == 0 {
			g.ValidMarkers = append(g.ValidMarkers, names...)
			continue
		}
		g.ValidMarkers = slices.DeleteFunc(g.ValidMarkers, func(n string) bool { return !slices.Contains(names, n) })
		if len(g.ValidMarkers) == 0 {
			return
		}
	}
}

// AssetTickContext carries the sync state between the leader and followers of a group.
type AssetTickContext struct {
	DeltaTime      float32
	RootMotionMode RootMotionMode

	leader       bool
	onlyOne      bool
	leaderRatio  float32
	validMarkers []string
	syncPosition MarkerSyncPosition
}

// IsLeader reports whether the record being ticked drives the group.
func (c *AssetTickContext) IsLeader() bool { return c.leader }

// IsSingleAnimation reports whether the record is ticked outside any sync group.
func (c *AssetTickContext) IsSingleAnimation() bool { return c.onlyOne }

// AnimLengthRatio returns the leader's normalized position after its tick.
func (c *AssetTickContext) AnimLengthRatio() float32 { return c.leaderRatio }

// CanUseMarkerPosition reports whether followers can synchronize by marker.
func (c *AssetTickContext) CanUseMarkerPosition() bool {
	return len(c.validMarkers) > 0 && c.syncPosition.IsValid()
}

// convertToFollower reuses a leader context for the followers of the same group.
func (c *AssetTickContext) convertToFollower() {
	c.leader = false
}
