package pose

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-anim/engine/model"
)

// Curve is a sparse set of named float values evaluated alongside a pose.
// The zero value is an empty curve ready for use.
type Curve struct {
	values map[model.CurveUID]float32
}

func (c *Curve) ensure() {
	if c.values == nil {
		c.values = make(map[model.CurveUID]float32)
	}
}

// Set stores a value for uid.
func (c *Curve) Set(uid model.CurveUID, v float32) {
	c.ensure()
	c.values[uid] = v
}

// Get returns the value for uid and whether it is present.
func (c *Curve) Get(uid model.CurveUID) (float32, bool) {
	v, ok := c.values[uid]
	return v, ok
}

// Value returns the value for uid or 0.
func (c *Curve) Value(uid model.CurveUID) float32 {
	return c.values[uid]
}

// Has reports whether uid has a value.
func (c *Curve) Has(uid model.CurveUID) bool {
	_, ok := c.values[uid]
	return ok
}

// Len returns the number of values.
func (c *Curve) Len() int { return len(c.values) }

// UIDs returns the present uids in ascending order.
func (c *Curve) UIDs() []model.CurveUID {
	out := make([]model.CurveUID, 0, len(c.values))
	for uid := range c.values {
		out = append(out, uid)
	}
	slices.Sort(out)
	return out
}

// Reset removes every value.
func (c *Curve) Reset() {
	clear(c.values)
}

// CopyFrom replaces the contents with another curve's values.
func (c *Curve) CopyFrom(other *Curve) {
	if c == other {
		return
	}
	c.Reset()
	if len(other.values) == 0 {
		return
	}
	c.ensure()
	for uid, v := range other.values {
		c.values[uid] = v
	}
}

// Override replaces the contents with other scaled by weight.
func (c *Curve) Override(other *Curve, weight float32) {
	if c == other {
		for uid, v := range c.values {
			c.values[uid] = v * weight
		}
		return
	}
	c.Reset()
	c.Accumulate(other, weight)
}

// Accumulate adds other scaled by weight. Missing values are treated as zero.
func (c *Curve) Accumulate(other *Curve, weight float32) {
	if len(other.values) == 0 {
		return
	}
	c.ensure()
	for uid, v := range other.values {
		c.values[uid] += v * weight
	}
}

// Combine copies other's values over this curve's, keeping values other does not have.
func (c *Curve) Combine(other *Curve) {
	if len(other.values) == 0 {
		return
	}
	c.ensure()
	for uid, v := range other.values {
		c.values[uid] = v
	}
}

// Lerp stores the interpolation of a and b. A value present in only one input
// interpolates against zero.
func (c *Curve) Lerp(a, b *Curve, alpha float32) {
	result := make(map[model.CurveUID]float32, max(len(a.values), len(b.values)))
	for uid, v := range a.values {
		result[uid] = v * (1 - alpha)
	}
	for uid, v := range b.values {
		result[uid] += v * alpha
	}
	c.values = result
}

// Filter removes every value for which keep returns false.
func (c *Curve) Filter(keep func(uid model.CurveUID) bool) {
	for uid := range c.values {
		if !keep(uid) {
			delete(c.values, uid)
		}
	}
}

// BlendCurves blends curves with weights into out: the first curve overrides and the rest
// accumulate.
//
// Parameters:
//   - curves: the source curves
//   - weights: one weight per curve
//   - out: the destination, which may alias none of the sources except curves[0]
func BlendCurves(curves []*Curve, weights []float32, out *Curve) {
	if len(curves) == 0 {
		out.Reset()
		return
	}
	out.Override(curves[0], weights[0])
	for i := 1; i < len(curves); i++ {
		out.Accumulate(curves[i], weights[i])
	}
}
