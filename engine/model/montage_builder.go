package model

// MontageBuilderOption is a functional option for configuring a Montage during construction.
type MontageBuilderOption func(*Montage)

// WithSection adds a named section starting at startTime that continues into next ("" to stop).
//
// Parameters:
//   - name: the section name
//   - startTime: the section start on the montage timeline
//   - next: the name of the following section, or "" to end playback
//
// Returns:
//   - MontageBuilderOption: option function to apply
func WithSection(name string, startTime float32, next string) MontageBuilderOption {
	return func(m *Montage) {
		m.Sections = append(m.Sections, CompositeSection{Name: name, StartTime: startTime, NextSectionName: next})
	}
}

// WithBlendIn sets the blend used when the montage starts.
func WithBlendIn(b BlendSettings) MontageBuilderOption {
	return func(m *Montage) {
		m.BlendIn = b
	}
}

// WithBlendOut sets the blend used when the montage stops or reaches its end.
func WithBlendOut(b BlendSettings) MontageBuilderOption {
	return func(m *Montage) {
		m.BlendOut = b
	}
}

// WithBlendOutTriggerTime sets how long before the end the automatic blend out starts.
// Negative values use the blend out time.
func WithBlendOutTriggerTime(t float32) MontageBuilderOption {
	return func(m *Montage) {
		m.BlendOutTriggerTime = t
	}
}

// WithMontageRootMotion enables root motion extraction for the montage.
func WithMontageRootMotion(enabled bool) MontageBuilderOption {
	return func(m *Montage) {
		m.EnableRootMotion = enabled
	}
}

// WithMontageNotify adds a montage-level notify at time.
func WithMontageNotify(name string, time float32) MontageBuilderOption {
	return func(m *Montage) {
		m.Notifies = append(m.Notifies, NotifyEvent{Name: name, Time: time})
	}
}
