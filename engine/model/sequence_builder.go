package model

// SequenceBuilderOption is a functional option for configuring a Sequence during construction.
type SequenceBuilderOption func(*Sequence)

// WithChannels appends keyframe channels to the sequence.
//
// Parameters:
//   - channels: the bone channels to add
//
// Returns:
//   - SequenceBuilderOption: option function to apply
func WithChannels(channels ...AnimationChannel) SequenceBuilderOption {
	return func(s *Sequence) {
		s.Channels = append(s.Channels, channels...)
	}
}

// WithCurve adds a named float curve. The name is registered on the sequence's skeleton.
//
// Parameters:
//   - name: the curve name
//   - keys: the curve keys sorted by time
//
// Returns:
//   - SequenceBuilderOption: option function to apply
func WithCurve(name string, keys ...ScalarKeyframe) SequenceBuilderOption {
	return func(s *Sequence) {
		s.Curves = append(s.Curves, FloatCurve{
			Name: name,
			UID:  s.Skeleton.CurveUID(name),
			Keys: keys,
		})
	}
}

// WithSyncMarker adds a named sync marker at time.
func WithSyncMarker(name string, time float32) SequenceBuilderOption {
	return func(s *Sequence) {
		s.SyncMarkers = append(s.SyncMarkers, SyncMarker{Name: name, Time: time})
	}
}

// WithNotify adds a notify event. A non-zero duration makes it a state notify.
//
// Parameters:
//   - name: the notify name
//   - time: the trigger time in seconds
//   - duration: the span of a state notify, or 0
//
// Returns:
//   - SequenceBuilderOption: option function to apply
func WithNotify(name string, time, duration float32) SequenceBuilderOption {
	return func(s *Sequence) {
		s.Notifies = append(s.Notifies, NotifyEvent{Name: name, Time: time, Duration: duration})
	}
}

// WithRootMotion enables root motion extraction for the sequence.
func WithRootMotion(enabled bool) SequenceBuilderOption {
	return func(s *Sequence) {
		s.EnableRootMotion = enabled
	}
}

// WithAdditiveType marks the sequence as storing an additive delta pose.
func WithAdditiveType(t AdditiveType) SequenceBuilderOption {
	return func(s *Sequence) {
		s.Additive = t
	}
}

// WithRateScale sets the rate multiplier applied on top of every player's play rate.
// Values of zero are ignored.
func WithRateScale(scale float32) SequenceBuilderOption {
	return func(s *Sequence) {
		if scale != 0 {
			s.RateScale = scale
		}
	}
}
