package anim

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// DebugLine is one entry of a graph debug trace.
type DebugLine struct {
	Indent     int
	Text       string
	Weight     float32
	PoseSource bool
}

// NodeDebugData collects a human-readable trace of a graph. Branches share the same line
// list and add one level of indentation.
type NodeDebugData struct {
	proxy  *Proxy
	lines  *[]DebugLine
	indent int
	weight float32
}

func newNodeDebugData(p *Proxy) *NodeDebugData {
	return &NodeDebugData{proxy: p, lines: &[]DebugLine{}, weight: 1}
}

// AddDebugItem appends a line at the current indentation.
func (d *NodeDebugData) AddDebugItem(text string, poseSource bool) {
	*d.lines = append(*d.lines, DebugLine{Indent: d.indent, Text: text, Weight: d.weight, PoseSource: poseSource})
}

// BranchFlow returns a child scope for a branch contributing weight to this one.
func (d *NodeDebugData) BranchFlow(weight float32) *NodeDebugData {
	return &NodeDebugData{proxy: d.proxy, lines: d.lines, indent: d.indent + 1, weight: d.weight * weight}
}

// Lines returns the collected trace.
func (d *NodeDebugData) Lines() []DebugLine { return *d.lines }

func (d *NodeDebugData) String() string {
	var sb strings.Builder
	for _, l := range *d.lines {
		fmt.Fprintf(&sb, "%s%s (%.2f)\n", strings.Repeat("  ", l.Indent), l.Text, l.Weight)
	}
	return sb.String()
}

// DebugDrawKind identifies the shape of a queued debug draw.
type DebugDrawKind uint8

const (
	DebugDrawOnScreenMessage DebugDrawKind = iota
	DebugDrawLine
	DebugDrawDirectionalArrow
	DebugDrawSphere
	DebugDrawCoordinateSystem
)

func (k DebugDrawKind) String() string {
	switch k {
	case DebugDrawOnScreenMessage:
		return "OnScreenMessage"
	case DebugDrawLine:
		return "Line"
	case DebugDrawDirectionalArrow:
		return "DirectionalArrow"
	case DebugDrawSphere:
		return "Sphere"
	case DebugDrawCoordinateSystem:
		return "CoordinateSystem"
	}
	return "Unknown"
}

// DebugDrawItem is one queued debug primitive.
type DebugDrawItem struct {
	Kind       DebugDrawKind
	Start      mgl32.Vec3
	End        mgl32.Vec3
	Rotation   mgl32.Quat
	Radius     float32
	Size       float32
	Segments   int
	Color      color.RGBA
	Message    string
	Persistent bool
	LifeTime   float32
	Thickness  float32
}

// DebugDrawSink receives queued debug draws when the proxy flushes them on the game thread.
type DebugDrawSink interface {
	DrawDebug(item DebugDrawItem)
}

// DebugDrawSinkFunc adapts a function to DebugDrawSink.
type DebugDrawSinkFunc func(item DebugDrawItem)

func (f DebugDrawSinkFunc) DrawDebug(item DebugDrawItem) { f(item) }

// DrawDebugLine queues a line segment.
func (p *Proxy) DrawDebugLine(start, end mgl32.Vec3, c color.RGBA, persistent bool, lifeTime, thickness float32) {
	p.debugDraws = append(p.debugDraws, DebugDrawItem{Kind: DebugDrawLine, Start: start, End: end, Color: c, Persistent: persistent, LifeTime: lifeTime, Thickness: thickness})
}

// DrawDebugDirectionalArrow queues an arrow from start to end.
func (p *Proxy) DrawDebugDirectionalArrow(start, end mgl32.Vec3, arrowSize float32, c color.RGBA, persistent bool, lifeTime, thickness float32) {
	p.debugDraws = append(p.debugDraws, DebugDrawItem{Kind: DebugDrawDirectionalArrow, Start: start, End: end, Size: arrowSize, Color: c, Persistent: persistent, LifeTime: lifeTime, Thickness: thickness})
}

// DrawDebugSphere queues a wire sphere.
func (p *Proxy) DrawDebugSphere(center mgl32.Vec3, radius float32, segments int, c color.RGBA, persistent bool, lifeTime, thickness float32) {
	p.debugDraws = append(p.debugDraws, DebugDrawItem{Kind: DebugDrawSphere, Start: center, Radius: radius, Segments: segments, Color: c, Persistent: persistent, LifeTime: lifeTime, Thickness: thickness})
}

// DrawDebugCoordinateSystem queues an axis tripod.
func (p *Proxy) DrawDebugCoordinateSystem(origin mgl32.Vec3, rotation mgl32.Quat, scale float32, persistent bool, lifeTime, thickness float32) {
	p.debugDraws = append(p.debugDraws, DebugDrawItem{Kind: DebugDrawCoordinateSystem, Start: origin, Rotation: rotation, Size: scale, Persistent: persistent, LifeTime: lifeTime, Thickness: thickness})
}

// DrawDebugOnScreenMessage queues a line of on-screen text.
func (p *Proxy) DrawDebugOnScreenMessage(message string, c color.RGBA) {
	p.debugDraws = append(p.debugDraws, DebugDrawItem{Kind: DebugDrawOnScreenMessage, Message: message, Color: c})
}
