package anim

import (
	"math"

	"github.com/Carmen-Shannon/oxy-anim/common"
)

// Query functions used by transition rules and game code. Machine and state arguments are
// indices into the class's baked machines; asset players are addressed by link id.

// StateMachineInstance returns the running machine with the given index, or nil.
func (p *Proxy) StateMachineInstance(machineIndex int) *StateMachine {
	return p.machineNodes[machineIndex]
}

// StateMachineIndex returns the index of the named machine, or -1.
func (p *Proxy) StateMachineIndex(name string) int {
	for i := range p.class.NumStateMachines() {
		if p.class.StateMachine(i).Name == name {
			return i
		}
	}
	return -1
}

// CurrentStateName returns the current state of a machine, or "".
func (p *Proxy) CurrentStateName(machineIndex int) string {
	if m := p.StateMachineInstance(machineIndex); m != nil {
		return m.CurrentStateName()
	}
	return ""
}

// CurrentStateElapsedTime returns how long a machine has been in its current state.
func (p *Proxy) CurrentStateElapsedTime(machineIndex int) float32 {
	if m := p.StateMachineInstance(machineIndex); m != nil {
		return m.ElapsedTime()
	}
	return 0
}

// InstanceStateWeight returns a state's weight within its machine.
func (p *Proxy) InstanceStateWeight(machineIndex, stateIndex int) float32 {
	if m := p.StateMachineInstance(machineIndex); m != nil {
		return m.StateWeight(stateIndex)
	}
	return 0
}

// InstanceMachineWeight returns the graph weight a machine received in the last completed frame.
func (p *Proxy) InstanceMachineWeight(machineIndex int) float32 {
	return p.RecordedMachineWeight(machineIndex)
}

// activeTransition returns the newest active transition that was reached through
// transitionIndex.
func (p *Proxy) activeTransition(machineIndex, transitionIndex int) *ActiveTransition {
	m := p.StateMachineInstance(machineIndex)
	if m == nil {
		return nil
	}
	for i := len(m.active) - 1; i >= 0; i-- {
		t := &m.active[i]
		for _, idx := range t.SourceTransitionIndices {
			if idx == transitionIndex {
				return t
			}
		}
	}
	return nil
}

// InstanceTransitionCrossfadeDuration returns the crossfade duration of an active transition.
func (p *Proxy) InstanceTransitionCrossfadeDuration(machineIndex, transitionIndex int) float32 {
	if t := p.activeTransition(machineIndex, transitionIndex); t != nil {
		return t.CrossfadeDuration
	}
	return 0
}

// InstanceTransitionTimeElapsed returns how long an active transition has been running.
func (p *Proxy) InstanceTransitionTimeElapsed(machineIndex, transitionIndex int) float32 {
	if t := p.activeTransition(machineIndex, transitionIndex); t != nil {
		return t.ElapsedTime
	}
	return 0
}

// InstanceTransitionTimeElapsedFraction returns the elapsed fraction of an active transition.
func (p *Proxy) InstanceTransitionTimeElapsedFraction(machineIndex, transitionIndex int) float32 {
	t := p.activeTransition(machineIndex, transitionIndex)
	if t == nil {
		return 0
	}
	if t.CrossfadeDuration <= common.SmallNumber {
		return 1
	}
	return common.Clamp01(t.ElapsedTime / t.CrossfadeDuration)
}

// InstanceTransitionTimeRemaining returns the crossfade time left on an active transition.
func (p *Proxy) InstanceTransitionTimeRemaining(machineIndex, transitionIndex int) float32 {
	if t := p.activeTransition(machineIndex, transitionIndex); t != nil {
		return t.Remaining()
	}
	return 0
}

func (p *Proxy) assetPlayer(linkID int) AssetPlayer {
	a, err := NodeAs[AssetPlayer](p, linkID)
	if err != nil {
		return nil
	}
	return a
}

// InstanceAssetPlayerTime returns an asset player's position in seconds.
func (p *Proxy) InstanceAssetPlayerTime(linkID int) float32 {
	if a := p.assetPlayer(linkID); a != nil {
		return a.CurrentAssetTime()
	}
	return 0
}

// InstanceAssetPlayerLength returns the length of the asset an asset player plays.
func (p *Proxy) InstanceAssetPlayerLength(linkID int) float32 {
	if a := p.assetPlayer(linkID); a != nil {
		return a.CurrentAssetLength()
	}
	return 0
}

// InstanceAssetPlayerTimeFraction returns an asset player's position as a fraction of its length.
func (p *Proxy) InstanceAssetPlayerTimeFraction(linkID int) float32 {
	a := p.assetPlayer(linkID)
	if a == nil {
		return 0
	}
	return ratio(a.CurrentAssetTime(), a.CurrentAssetLength())
}

// InstanceAssetPlayerTimeFromEnd returns the time left before an asset player reaches the
// end in its play direction.
func (p *Proxy) InstanceAssetPlayerTimeFromEnd(linkID int) float32 {
	if a := p.assetPlayer(linkID); a != nil {
		return a.CurrentAssetLength() - a.CurrentAssetTimePlayRateAdjusted()
	}
	return math.MaxFloat32
}

// InstanceAssetPlayerTimeFromEndFraction returns the time left as a fraction of the length.
func (p *Proxy) InstanceAssetPlayerTimeFromEndFraction(linkID int) float32 {
	a := p.assetPlayer(linkID)
	if a == nil {
		return 1
	}
	return 1 - ratio(a.CurrentAssetTimePlayRateAdjusted(), a.CurrentAssetLength())
}

// relevantAssetPlayer returns the heaviest asset player of a state that does not ignore
// relevancy queries, or nil.
func relevantAssetPlayer(p *Proxy, state *BakedState) AssetPlayer {
	var best AssetPlayer
	var bestWeight float32 = -1
	for _, id := range state.PlayerNodeIndices {
		a := p.assetPlayer(id)
		if a == nil || a.IgnoreForRelevancyTest() {
			continue
		}
		if w := a.CachedBlendWeight(); w > bestWeight {
			best, bestWeight = a, w
		}
	}
	return best
}

// RelevantAssetPlayer returns the most relevant asset player of a state, or nil.
func (p *Proxy) RelevantAssetPlayer(machineIndex, stateIndex int) AssetPlayer {
	desc := p.class.StateMachine(machineIndex)
	if desc == nil || !desc.validState(stateIndex) {
		return nil
	}
	return relevantAssetPlayer(p, &desc.States[stateIndex])
}

// InstanceRelevantAnimTime returns the position of a state's most relevant asset player.
func (p *Proxy) InstanceRelevantAnimTime(machineIndex, stateIndex int) float32 {
	if a := p.RelevantAssetPlayer(machineIndex, stateIndex); a != nil {
		return a.CurrentAssetTime()
	}
	return 0
}

// InstanceRelevantAnimLength returns the asset length of a state's most relevant asset player.
func (p *Proxy) InstanceRelevantAnimLength(machineIndex, stateIndex int) float32 {
	if a := p.RelevantAssetPlayer(machineIndex, stateIndex); a != nil {
		return a.CurrentAssetLength()
	}
	return 0
}

// InstanceRelevantAnimTimeRemaining returns the time left on a state's most relevant asset
// player. States without a player report math.MaxFloat32 so automatic rules never fire.
func (p *Proxy) InstanceRelevantAnimTimeRemaining(machineIndex, stateIndex int) float32 {
	if a := p.RelevantAssetPlayer(machineIndex, stateIndex); a != nil {
		return a.CurrentAssetLength() - a.CurrentAssetTimePlayRateAdjusted()
	}
	return math.MaxFloat32
}

// InstanceRelevantAnimTimeRemainingFraction returns the time left as a fraction of the length.
func (p *Proxy) InstanceRelevantAnimTimeRemainingFraction(machineIndex, stateIndex int) float32 {
	a := p.RelevantAssetPlayer(machineIndex, stateIndex)
	if a == nil {
		return 1
	}
	return 1 - ratio(a.CurrentAssetTimePlayRateAdjusted(), a.CurrentAssetLength())
}
