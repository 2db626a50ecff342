package animator

import (
	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/Carmen-Shannon/oxy-anim/engine/anim"
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// maxSectionJumps bounds the section changes a single advance may make, so a looping
// section shorter than the frame cannot spin forever.
const maxSectionJumps = 8

// montageInstance holds the playback state of one montage started by PlayMontage.
// It is not safe for concurrent use; the owning animator serializes access.
type montageInstance struct {
	id      int
	montage *model.Montage

	position float32
	playRate float32
	section  int

	// nextSections overrides the montage's section links for this instance only.
	nextSections []int

	blend model.AlphaBlend

	playing, paused, stopped bool
	interrupted, terminated  bool
	blendingOutFired         bool

	scratch []model.NotifyEvent
}

func newMontageInstance(id int, m *model.Montage, playRate, startPosition float32) *montageInstance {
	pos := common.Clamp(startPosition, 0, m.Length())
	mi := &montageInstance{
		id:       id,
		montage:  m,
		position: pos,
		playRate: playRate,
		section:  max(m.SectionIndexFromPosition(pos), 0),
		blend:    model.NewAlphaBlend(m.BlendIn, 0, 1),
		playing:  true,
	}
	mi.nextSections = make([]int, len(m.Sections))
	for i := range m.Sections {
		mi.nextSections[i] = m.NextSectionIndex(i)
	}
	return mi
}

// stop starts blending the instance out. Stopping an instance that is already blending
// out only shortens the blend.
func (m *montageInstance) stop(settings model.BlendSettings, interrupted bool) {
	if m.stopped && m.blend.Remaining() <= settings.Time {
		return
	}
	m.stopped = true
	m.interrupted = m.interrupted || interrupted
	m.blend = model.NewAlphaBlend(settings, m.blend.Value(), 0)
}

// weight returns the blend weight of the instance.
func (m *montageInstance) weight() float32 { return m.blend.Value() }

// evaluationState snapshots the instance for slot evaluation.
func (m *montageInstance) evaluationState() anim.MontageEvaluationState {
	return anim.MontageEvaluationState{
		Montage:       m.montage,
		Weight:        m.blend.Value(),
		DesiredWeight: m.blend.Desired(),
		Position:      m.position,
		PlayRate:      m.playRate,
		IsPlaying:     m.playing && !m.paused,
		IsActive:      !m.stopped,
	}
}

// jumpToSection moves the playhead to the start of section i, or to its end when
// playing backward.
func (m *montageInstance) jumpToSection(i int) {
	start, end := m.montage.SectionStartAndEnd(i)
	m.section = i
	m.position = start
	if m.playRate < 0 {
		m.position = end
	}
	m.playing = true
}

// advance moves the instance by dt: it updates the blend weight, walks the playhead
// through linked sections, queues crossed notifies and root motion on p, and starts the
// automatic blend out before the last section ends.
//
// Parameters:
//   - dt: the frame delta in seconds
//   - p: the proxy receiving notifies and root motion
func (m *montageInstance) advance(dt float32, p *anim.Proxy) {
	m.blend.Update(dt)
	if m.stopped && m.blend.IsComplete() {
		m.terminated = true
		return
	}
	if m.paused || !m.playing || m.playRate == 0 {
		return
	}

	mont := m.montage
	remaining := dt * m.playRate
	for range maxSectionJumps {
		start, end := mont.SectionStartAndEnd(m.section)
		prev := m.position
		target := prev + remaining
		switch {
		case remaining > 0 && target < end:
			m.position, remaining = target, 0
		case remaining > 0:
			m.position, remaining = end, target-end
		case target > start:
			m.position, remaining = target, 0
		default:
			m.position, remaining = start, target-start
		}
		m.collect(prev, m.position, p)
		if remaining == 0 {
			break
		}

		next := m.nextSections[m.section]
		if next < 0 {
			m.playing = false
			break
		}
		m.jumpToSection(next)
	}

	if !m.stopped {
		if !m.playing {
			m.stop(mont.BlendOut, false)
		} else if m.timeToEnd() <= m.blendOutTriggerTime() {
			m.stop(mont.BlendOut, false)
		}
	}
}

func (m *montageInstance) blendOutTriggerTime() float32 {
	if t := m.montage.BlendOutTriggerTime; t >= 0 {
		return t
	}
	return m.montage.BlendOut.Time
}

// timeToEnd returns the seconds left before playback runs off the end of the section
// chain, or a large value when the chain loops.
func (m *montageInstance) timeToEnd() float32 {
	if m.playRate <= 0 {
		return float32(1e9)
	}
	var distance float32
	visited := make([]bool, len(m.montage.Sections))
	sec := m.section
	pos := m.position
	for sec >= 0 {
		if visited[sec] {
			return float32(1e9)
		}
		visited[sec] = true
		_, end := m.montage.SectionStartAndEnd(sec)
		distance += end - pos
		sec = m.nextSections[sec]
		if sec >= 0 {
			pos, _ = m.montage.SectionStartAndEnd(sec)
		}
	}
	return distance / m.playRate
}

// collect queues the notifies and root motion crossed while moving from prev to cur.
func (m *montageInstance) collect(prev, cur float32, p *anim.Proxy) {
	if prev == cur {
		return
	}
	mont := m.montage
	w := m.weight()
	lo, hi := min(prev, cur), max(prev, cur)

	for ti, track := range mont.SlotTracks {
		events := m.scratch[:0]
		if ti == 0 {
			events = mont.NotifiesInRange(prev, cur, events)
		}
		for _, seg := range track.Segments {
			a, b := max(lo, seg.StartPos), min(hi, seg.StartPos+seg.Length())
			if a >= b {
				continue
			}
			if cur < prev {
				a, b = b, a
			}
			rate := common.Coalesce(seg.PlayRate, 1)
			events = seg.Animation.NotifiesInRange(seg.AnimTime(a), (b-a)*rate, seg.LoopCount > 1, events)
		}
		if len(events) > 0 {
			p.QueueMontageNotifies(track.SlotName, events, mont.Name, w)
		}
		m.scratch = events
	}

	if mont.HasRootMotion() {
		p.AddMontageRootMotion(mont.ExtractRootMotion(prev, cur), mont.SlotTracks[0].SlotName, w)
	}
}
