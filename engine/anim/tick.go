package anim

import (
	"math"
	"slices"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
	"github.com/Carmen-Shannon/oxy-anim/engine/pose"
)

type pendingNotify struct {
	event  model.NotifyEvent
	asset  string
	weight float32
}

type pendingRootMotion struct {
	transform model.Transform
	weight    float32
}

// tickOutput buffers the side effects of one record's tick so a rejected leader
// candidate leaves nothing behind.
type tickOutput struct {
	notifies   []pendingNotify
	rootMotion []pendingRootMotion
	scratch    []model.NotifyEvent
}

func (o *tickOutput) reset() {
	o.notifies = o.notifies[:0]
	o.rootMotion = o.rootMotion[:0]
}

func (o *tickOutput) addNotifies(events []model.NotifyEvent, asset string, weight float32) {
	for _, e := range events {
		o.notifies = append(o.notifies, pendingNotify{event: e, asset: asset, weight: weight})
	}
}

// tickAssetPlayer advances one record as leader or follower according to ctx.
func tickAssetPlayer(rec *TickRecord, ctx *AssetTickContext, out *tickOutput) {
	switch a := rec.Asset.(type) {
	case *model.Sequence:
		tickSequence(a, rec, ctx, out)
	case *model.BlendSpace:
		tickBlendSpace(a, rec, ctx, out)
	}
}

func tickSequence(seq *model.Sequence, rec *TickRecord, ctx *AssetTickContext, out *tickOutput) {
	length := seq.Length()
	t := rec.TimeAccumulator
	prev := *t
	rate := rec.PlayRate * seq.RateScale

	var moved float32
	if ctx.leader {
		delta := rate * ctx.DeltaTime
		if pose.AdvanceTime(rec.Looping, delta, t, length) == pose.AdvanceFinished {
			moved = *t - prev
		} else {
			moved = delta
		}
		if len(ctx.validMarkers) > 0 {
			*rec.MarkerTick = markerRecordAt(seq, *t, rec.Looping, ctx.validMarkers)
			ctx.syncPosition = syncPositionOf(*rec.MarkerTick, *t)
		}
		ctx.leaderRatio = ratio(*t, length)
	} else {
		synced := false
		if ctx.CanUseMarkerPosition() {
			if ft, mr, ok := followerTime(seq, ctx.syncPosition, prev, rate, rec.Looping, ctx.validMarkers); ok {
				*t = ft
				*rec.MarkerTick = mr
				synced = true
			}
		}
		if !synced {
			*t = common.Clamp(ctx.leaderRatio*length, 0, length)
			*rec.MarkerTick = MarkerTickRecord{}
		}
		moved = wrappedDelta(prev, *t, rate, length, rec.Looping)
	}

	if moved == 0 {
		return
	}
	out.scratch = seq.NotifiesInRange(prev, moved, rec.Looping, out.scratch[:0])
	out.addNotifies(out.scratch, seq.Name, rec.EffectiveBlendWeight)
	if ctx.RootMotionMode == RootMotionFromEverything && seq.EnableRootMotion {
		out.rootMotion = append(out.rootMotion, pendingRootMotion{
			transform: seq.ExtractRootMotion(prev, moved, rec.Looping),
			weight:    rec.EffectiveBlendWeight * rec.RootMotionWeightModifier,
		})
	}
}

// tickBlendSpace advances a blend space in normalized time and moves every contributing
// sample to the same normalized position.
func tickBlendSpace(bs *model.BlendSpace, rec *TickRecord, ctx *AssetTickContext, out *tickOutput) {
	samples := *rec.BlendSamples
	length := blendSpaceLength(bs, samples)
	t := rec.TimeAccumulator
	prev := *t

	if ctx.leader {
		if length > common.SmallNumber {
			pose.AdvanceTime(rec.Looping, rec.PlayRate*ctx.DeltaTime/length, t, 1)
		}
		ctx.leaderRatio = *t
	} else {
		*t = common.Clamp01(ctx.leaderRatio)
	}
	moved := wrappedDelta(prev, *t, rec.PlayRate, 1, rec.Looping)

	for i := range samples {
		s := &samples[i]
		seq := bs.Samples[s.SampleIndex].Animation
		slen := seq.Length()
		from := s.Time
		s.Time = *t * slen
		if moved == 0 {
			continue
		}
		d := moved * slen
		w := rec.EffectiveBlendWeight * s.Weight
		out.scratch = seq.NotifiesInRange(from, d, rec.Looping, out.scratch[:0])
		out.addNotifies(out.scratch, seq.Name, w)
		if ctx.RootMotionMode == RootMotionFromEverything && seq.EnableRootMotion {
			out.rootMotion = append(out.rootMotion, pendingRootMotion{
				transform: seq.ExtractRootMotion(from, d, rec.Looping),
				weight:    w * rec.RootMotionWeightModifier,
			})
		}
	}
}

// blendSpaceLength returns the playback length of a blend space: the sample lengths
// weighted by the current sample weights.
func blendSpaceLength(bs *model.BlendSpace, samples []BlendSampleState) float32 {
	var length float32
	for _, s := range samples {
		sample := bs.Samples[s.SampleIndex]
		length += s.Weight * sample.Animation.Length() / sample.RateScale
	}
	return length
}

func ratio(t, length float32) float32 {
	if length <= common.SmallNumber {
		return 0
	}
	return common.Clamp01(t / length)
}

// wrappedDelta returns the signed distance moved from prev to cur in the play direction,
// going around the loop boundary when needed.
func wrappedDelta(prev, cur, rate, length float32, looping bool) float32 {
	d := cur - prev
	if !looping {
		return d
	}
	if rate >= 0 && d < 0 {
		d += length
	} else if rate < 0 && d > 0 {
		d -= length
	}
	return d
}

func validMarkers(seq *model.Sequence, valid []string) []model.SyncMarker {
	var out []model.SyncMarker
	for _, m := range seq.SyncMarkers {
		if slices.Contains(valid, m.Name) {
			out = append(out, m)
		}
	}
	return out
}

// markerRecordAt finds the valid markers surrounding t. Looping sequences look past the
// ends, shifting the marker time by the sequence length.
func markerRecordAt(seq *model.Sequence, t float32, looping bool, valid []string) MarkerTickRecord {
	markers := validMarkers(seq, valid)
	var r MarkerTickRecord
	if len(markers) == 0 {
		return r
	}
	length := seq.Length()
	prevIdx, nextIdx := -1, -1
	for i, m := range markers {
		if m.Time <= t {
			prevIdx = i
		} else if nextIdx < 0 {
			nextIdx = i
		}
	}
	switch {
	case prevIdx >= 0:
		r.PrevMarker = MarkerPair{Name: markers[prevIdx].Name, Time: markers[prevIdx].Time}
	case looping:
		last := markers[len(markers)-1]
		r.PrevMarker = MarkerPair{Name: last.Name, Time: last.Time - length}
	}
	switch {
	case nextIdx >= 0:
		r.NextMarker = MarkerPair{Name: markers[nextIdx].Name, Time: markers[nextIdx].Time}
	case looping:
		first := markers[0]
		r.NextMarker = MarkerPair{Name: first.Name, Time: first.Time + length}
	}
	return r
}

func syncPositionOf(r MarkerTickRecord, t float32) MarkerSyncPosition {
	if !r.IsValid() {
		return MarkerSyncPosition{}
	}
	var pos float32
	if span := r.NextMarker.Time - r.PrevMarker.Time; span > common.SmallNumber {
		pos = common.Clamp01((t - r.PrevMarker.Time) / span)
	}
	return MarkerSyncPosition{PrevMarker: r.PrevMarker.Name, NextMarker: r.NextMarker.Name, PositionBetweenMarkers: pos}
}

// followerTime places a follower at the leader's marker position. Of every adjacent marker
// pair matching the position, the one closest ahead of the follower in its play direction
// is used.
func followerTime(seq *model.Sequence, pos MarkerSyncPosition, cur, rate float32, looping bool, valid []string) (float32, MarkerTickRecord, bool) {
	markers := validMarkers(seq, valid)
	length := seq.Length()
	found := false
	var bestTime float32
	var bestRec MarkerTickRecord
	bestDist := float32(math.MaxFloat32)

	for i, m := range markers {
		if m.Name != pos.PrevMarker {
			continue
		}
		next := i + 1
		var nextTime float32
		switch {
		case next < len(markers):
			nextTime = markers[next].Time
		case looping:
			next = 0
			nextTime = markers[0].Time + length
		default:
			continue
		}
		if markers[next].Name != pos.NextMarker {
			continue
		}

		rec := MarkerTickRecord{
			PrevMarker: MarkerPair{Name: m.Name, Time: m.Time},
			NextMarker: MarkerPair{Name: markers[next].Name, Time: nextTime},
		}
		t := common.Lerp(m.Time, nextTime, pos.PositionBetweenMarkers)
		if looping && t >= length && length > 0 {
			t -= length
			rec.PrevMarker.Time -= length
			rec.NextMarker.Time -= length
		}
		t = common.Clamp(t, 0, length)

		d := t - cur
		if rate < 0 {
			d = -d
		}
		if d < 0 {
			if looping {
				d += length
			} else {
				d = length - d
			}
		}
		if d < bestDist {
			found, bestDist, bestTime, bestRec = true, d, t, rec
		}
	}
	return bestTime, bestRec, found
}
