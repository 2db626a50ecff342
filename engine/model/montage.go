package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Carmen-Shannon/oxy-anim/common"
)

var (
	// ErrInvalidMontage is returned when a montage has no playable slot data.
	ErrInvalidMontage = errors.New("model: invalid montage")

	// ErrSectionNotFound is returned when a named montage section does not exist.
	ErrSectionNotFound = errors.New("model: montage section not found")
)

// MontageSegment places a range of a sequence on a slot track.
type MontageSegment struct {
	// Animation is the sequence played by this segment.
	Animation *Sequence

	// StartPos is the segment's start on the montage timeline.
	StartPos float32

	// AnimStartTime and AnimEndTime bound the range of Animation that is played.
	AnimStartTime float32
	AnimEndTime   float32

	// PlayRate scales the segment playback. Zero is treated as 1.
	PlayRate float32

	// LoopCount repeats the range. Zero is treated as 1.
	LoopCount int
}

// Length returns the segment's duration on the montage timeline.
func (s MontageSegment) Length() float32 {
	rate := common.Abs(common.Coalesce(s.PlayRate, 1))
	loops := float32(max(s.LoopCount, 1))
	return (s.AnimEndTime - s.AnimStartTime) / rate * loops
}

// AnimTime converts a montage-timeline position inside the segment into a sequence time.
//
// Parameters:
//   - pos: the montage position
//
// Returns:
//   - float32: the time to sample in Animation
func (s MontageSegment) AnimTime(pos float32) float32 {
	rate := common.Coalesce(s.PlayRate, 1)
	span := s.AnimEndTime - s.AnimStartTime
	local := (pos - s.StartPos) * common.Abs(rate)
	if span > 0 && local > span && s.LoopCount > 1 {
		local = common.FMod(local, span)
		if local == 0 {
			local = span
		}
	}
	local = common.Clamp(local, 0, span)
	if rate < 0 {
		return s.AnimEndTime - local
	}
	return s.AnimStartTime + local
}

// SlotTrack is the animation data a montage plays through one named slot.
type SlotTrack struct {
	SlotName string
	Segments []MontageSegment
	Additive AdditiveType
}

// SegmentAt returns the segment covering pos, or nil.
func (t *SlotTrack) SegmentAt(pos float32) *MontageSegment {
	for i := range t.Segments {
		seg := &t.Segments[i]
		if pos >= seg.StartPos && pos <= seg.StartPos+seg.Length() {
			return seg
		}
	}
	return nil
}

// CompositeSection is a named region of the montage timeline.
type CompositeSection struct {
	Name string

	// StartTime is the section start on the montage timeline.
	StartTime float32

	// NextSectionName is the section that follows when this one ends. Empty stops the montage.
	NextSectionName string
}

// Montage is a sectioned animation asset played through one or more slot nodes.
type Montage struct {
	Name     string
	Skeleton *Skeleton

	SlotTracks []SlotTrack
	Sections   []CompositeSection

	BlendIn  BlendSettings
	BlendOut BlendSettings

	// BlendOutTriggerTime is how long before the end the blend out starts. Negative uses BlendOut.Time.
	BlendOutTriggerTime float32

	EnableRootMotion bool
	Notifies         []NotifyEvent

	length float32
}

var _ Asset = &Montage{}

// NewMontage validates and creates a montage. Sections are sorted by start time; a
// montage without sections gets a single "Default" section covering the whole timeline.
//
// Parameters:
//   - name: the montage name
//   - skeleton: the target skeleton
//   - tracks: the slot tracks
//   - options: functional options for sections, blends, notifies and root motion
//
// Returns:
//   - *Montage: the montage
//   - error: ErrInvalidMontage if no track has segments
func NewMontage(name string, skeleton *Skeleton, tracks []SlotTrack, options ...MontageBuilderOption) (*Montage, error) {
	if skeleton == nil {
		return nil, fmt.Errorf("montage %q: %w", name, ErrNilSkeleton)
	}
	m := &Montage{
		Name:                name,
		Skeleton:            skeleton,
		SlotTracks:          tracks,
		BlendIn:             BlendSettings{Time: 0.25},
		BlendOut:            BlendSettings{Time: 0.25},
		BlendOutTriggerTime: -1,
	}
	for _, opt := range options {
		opt(m)
	}

	for _, t := range m.SlotTracks {
		for _, seg := range t.Segments {
			if seg.Animation == nil {
				return nil, fmt.Errorf("montage %q slot %q: segment without animation: %w", name, t.SlotName, ErrInvalidMontage)
			}
			m.length = max(m.length, seg.StartPos+seg.Length())
		}
	}
	if m.length <= 0 {
		return nil, fmt.Errorf("montage %q: %w", name, ErrInvalidMontage)
	}
	if len(m.Sections) == 0 {
		m.Sections = []CompositeSection{{Name: "Default"}}
	}
	slices.SortStableFunc(m.Sections, func(a, b CompositeSection) int { return compareTime(a.StartTime, b.StartTime) })
	slices.SortStableFunc(m.Notifies, func(a, b NotifyEvent) int { return compareTime(a.Time, b.Time) })
	return m, nil
}

func (m *Montage) AssetName() string         { return m.Name }
func (m *Montage) Length() float32           { return m.length }
func (m *Montage) TargetSkeleton() *Skeleton { return m.Skeleton }

// SlotTrack returns the track for a slot name, or nil.
func (m *Montage) SlotTrack(slot string) *SlotTrack {
	for i := range m.SlotTracks {
		if m.SlotTracks[i].SlotName == slot {
			return &m.SlotTracks[i]
		}
	}
	return nil
}

// IsValidSlot reports whether the montage plays anything through slot.
func (m *Montage) IsValidSlot(slot string) bool {
	t := m.SlotTrack(slot)
	return t != nil && len(t.Segments) > 0
}

// IsValidAdditiveSlot reports whether the montage's track for slot is additive.
func (m *Montage) IsValidAdditiveSlot(slot string) bool {
	t := m.SlotTrack(slot)
	return t != nil && len(t.Segments) > 0 && t.Additive != AdditiveNone
}

// SectionIndex returns the index of the named section, or -1.
func (m *Montage) SectionIndex(name string) int {
	for i, s := range m.Sections {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// SectionIndexFromPosition returns the section containing pos, or -1 outside the timeline.
func (m *Montage) SectionIndexFromPosition(pos float32) int {
	if pos < 0 || pos > m.length {
		return -1
	}
	idx := -1
	for i, s := range m.Sections {
		if pos >= s.StartTime {
			idx = i
		}
	}
	return idx
}

// SectionStartAndEnd returns the bounds of section i on the timeline.
//
// Parameters:
//   - i: the section index
//
// Returns:
//   - float32: the section start
//   - float32: the section end (next section start or montage length)
func (m *Montage) SectionStartAndEnd(i int) (float32, float32) {
	if i < 0 || i >= len(m.Sections) {
		return 0, 0
	}
	end := m.length
	if i+1 < len(m.Sections) {
		end = m.Sections[i+1].StartTime
	}
	return m.Sections[i].StartTime, end
}

// NextSectionIndex returns the index of the section that follows section i, or -1.
func (m *Montage) NextSectionIndex(i int) int {
	if i < 0 || i >= len(m.Sections) || m.Sections[i].NextSectionName == "" {
		return -1
	}
	return m.SectionIndex(m.Sections[i].NextSectionName)
}

// NotifiesInRange appends montage-level notifies crossed while moving forward from prev to
// cur, or backward when cur < prev.
func (m *Montage) NotifiesInRange(prev, cur float32, out []NotifyEvent) []NotifyEvent {
	for _, n := range m.Notifies {
		if (cur > prev && n.Time > prev && n.Time <= cur) || (cur < prev && n.Time >= cur && n.Time < prev) {
			out = append(out, n)
		}
	}
	return out
}

// HasRootMotion reports whether root motion should be extracted while this montage plays.
func (m *Montage) HasRootMotion() bool {
	if !m.EnableRootMotion || len(m.SlotTracks) == 0 {
		return false
	}
	for _, seg := range m.SlotTracks[0].Segments {
		if seg.Animation.EnableRootMotion {
			return true
		}
	}
	return false
}

// ExtractRootMotion returns the root motion of the first slot track between two montage positions.
//
// Parameters:
//   - start: the position before advancing
//   - end: the position after advancing
//
// Returns:
//   - Transform: the accumulated root motion delta
func (m *Montage) ExtractRootMotion(start, end float32) Transform {
	acc := IdentityTransform()
	if len(m.SlotTracks) == 0 || start == end {
		return acc
	}
	lo, hi := min(start, end), max(start, end)
	for _, seg := range m.SlotTracks[0].Segments {
		segStart, segEnd := seg.StartPos, seg.StartPos+seg.Length()
		a, b := max(lo, segStart), min(hi, segEnd)
		if a >= b {
			continue
		}
		if end < start {
			a, b = b, a
		}
		from := seg.AnimTime(a)
		to := seg.AnimTime(b)
		acc = acc.Compose(seg.Animation.ExtractRootMotion(from, to-from, false))
	}
	return acc
}
