package anim

import (
	"github.com/go-gl/mathgl/mgl32"
)

// FloatInput computes a node input from the instance each update.
type FloatInput func(p *Proxy) float32

// BoolInput computes a boolean node input from the instance each update.
type BoolInput func(p *Proxy) bool

// Vec3Input computes a vector node input from the instance each update.
type Vec3Input func(p *Proxy) mgl32.Vec3

// FloatProperty reads the named float from the instance's property bag.
func FloatProperty(name string) FloatInput {
	return func(p *Proxy) float32 { return p.properties.Float(name) }
}

// BoolProperty reads the named bool from the instance's property bag.
func BoolProperty(name string) BoolInput {
	return func(p *Proxy) bool { return p.properties.Bool(name) }
}

// Vec3Property reads the named vector from the instance's property bag.
func Vec3Property(name string) Vec3Input {
	return func(p *Proxy) mgl32.Vec3 { return p.properties.Vec3(name) }
}

// PropertyRule is a transition rule that passes while the named bool property is set.
func PropertyRule(name string) TransitionRule {
	return func(p *Proxy, _ *StateMachine) bool { return p.properties.Bool(name) }
}

// TimeInStateRule passes once the machine has been in its current state for at least d seconds.
func TimeInStateRule(d float32) TransitionRule {
	return func(_ *Proxy, m *StateMachine) bool { return m.ElapsedTime() >= d }
}

func (f FloatInput) eval(p *Proxy, fallback float32) float32 {
	if f == nil {
		return fallback
	}
	return f(p)
}

func (f Vec3Input) eval(p *Proxy, fallback mgl32.Vec3) mgl32.Vec3 {
	if f == nil {
		return fallback
	}
	return f(p)
}
