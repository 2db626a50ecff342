package anim

import (
	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// ProxyBuilderOption is a functional option for configuring a Proxy.
// Use the With* functions to create options.
type ProxyBuilderOption func(p *Proxy)

// WithName sets the instance name used in logs and invariant reports.
//
// Parameters:
//   - name: the instance name
//
// Returns:
//   - ProxyBuilderOption: option function to apply
func WithName(name string) ProxyBuilderOption {
	return func(p *Proxy) {
		p.name = name
	}
}

// WithRequiredBones limits evaluation to a required-bone set, typically an LOD.
// Parents of the listed bones are included automatically. Defaults to every bone.
//
// Parameters:
//   - bones: skeleton bone indices
//
// Returns:
//   - ProxyBuilderOption: option function to apply
func WithRequiredBones(bones []int32) ProxyBuilderOption {
	return func(p *Proxy) {
		p.requiredBones = bones
	}
}

// WithRefPoseOverride replaces the skeleton's reference pose for this instance.
//
// Parameters:
//   - refPose: one transform per skeleton bone
//
// Returns:
//   - ProxyBuilderOption: option function to apply
func WithRefPoseOverride(refPose []model.Transform) ProxyBuilderOption {
	return func(p *Proxy) {
		p.refPoseOverride = refPose
	}
}

// WithRootMotionMode sets where root motion is extracted from.
// Defaults to RootMotionFromMontagesOnly.
func WithRootMotionMode(mode RootMotionMode) ProxyBuilderOption {
	return func(p *Proxy) {
		p.rootMotionMode = mode
	}
}

// WithDebugChecks makes invariant violations panic and enables NaN and normalization
// scans of every evaluated pose.
func WithDebugChecks(enabled bool) ProxyBuilderOption {
	return func(p *Proxy) {
		p.debugChecks = enabled
	}
}

// WithDebugDrawSink sets the receiver of queued debug draws.
func WithDebugDrawSink(sink DebugDrawSink) ProxyBuilderOption {
	return func(p *Proxy) {
		p.debugDrawSink = sink
	}
}

// WithProperties shares a property bag with the instance instead of allocating one.
func WithProperties(b *PropertyBag) ProxyBuilderOption {
	return func(p *Proxy) {
		if b != nil {
			p.properties = b
		}
	}
}

// WithNativeUpdate sets the hook run at the start of every UpdateAnimation.
func WithNativeUpdate(f NativeUpdateFunc) ProxyBuilderOption {
	return func(p *Proxy) {
		p.nativeUpdate = f
	}
}

// WithCurveSource registers a named curve source.
//
// Parameters:
//   - name: the name curve source nodes bind to
//   - src: the source
//
// Returns:
//   - ProxyBuilderOption: option function to apply
func WithCurveSource(name string, src CurveSource) ProxyBuilderOption {
	return func(p *Proxy) {
		p.RegisterCurveSource(name, src)
	}
}

// WithNativeTransition binds a native rule to a transition before the first Initialize.
func WithNativeTransition(machine, from, to string, rule TransitionRule) ProxyBuilderOption {
	return func(p *Proxy) {
		p.BindNativeTransition(machine, from, to, rule)
	}
}
