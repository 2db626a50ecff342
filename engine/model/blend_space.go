package model

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-anim/common"
	"github.com/go-gl/mathgl/mgl32"
)

// BlendParameter describes one input axis of a blend space.
type BlendParameter struct {
	Name          string
	Min           float32
	Max           float32
	GridDivisions int
}

// BlendSample places an animation at a coordinate in the blend space.
type BlendSample struct {
	Animation *Sequence
	Value     mgl32.Vec3
	RateScale float32
}

// SampleWeight is one contributing sample of a blend space evaluation.
type SampleWeight struct {
	SampleIndex int
	Weight      float32
}

// BlendSpace maps a 1D or 2D input coordinate to weighted animation samples laid out on a grid.
type BlendSpace struct {
	Name       string
	Skeleton   *Skeleton
	Dimensions int
	Parameters [2]BlendParameter
	Samples    []BlendSample

	version atomic.Uint64
}

var _ Asset = &BlendSpace{}

// NewBlendSpace validates and creates a blend space.
//
// Parameters:
//   - name: the asset name
//   - skeleton: the target skeleton
//   - params: one parameter for a 1D space, two for 2D
//   - samples: the samples, each with a non-nil animation
//
// Returns:
//   - *BlendSpace: the blend space
//   - error: an error if the dimensions or samples are invalid
func NewBlendSpace(name string, skeleton *Skeleton, params []BlendParameter, samples []BlendSample) (*BlendSpace, error) {
	if skeleton == nil {
		return nil, fmt.Errorf("blend space %q: %w", name, ErrNilSkeleton)
	}
	if len(params) < 1 || len(params) > 2 {
		return nil, fmt.Errorf("blend space %q: %d parameters, want 1 or 2", name, len(params))
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("blend space %q: no samples", name)
	}
	bs := &BlendSpace{Name: name, Skeleton: skeleton, Dimensions: len(params)}
	for i, p := range params {
		if p.Max <= p.Min {
			return nil, fmt.Errorf("blend space %q: parameter %q has empty range", name, p.Name)
		}
		if p.GridDivisions < 1 {
			p.GridDivisions = 1
		}
		bs.Parameters[i] = p
	}
	for i := range samples {
		if samples[i].Animation == nil {
			return nil, fmt.Errorf("blend space %q: sample %d has no animation", name, i)
		}
		if samples[i].RateScale == 0 {
			samples[i].RateScale = 1
		}
	}
	bs.Samples = samples
	return bs, nil
}

func (b *BlendSpace) AssetName() string         { return b.Name }
func (b *BlendSpace) TargetSkeleton() *Skeleton { return b.Skeleton }

// Length returns the longest sample length. Players use SampleWeights to compute the
// weighted length actually used for playback.
func (b *BlendSpace) Length() float32 {
	var l float32
	for _, s := range b.Samples {
		l = max(l, s.Animation.Length())
	}
	return l
}

// Version returns the edit generation of the blend space. Players rebuild cached grid
// data when it changes.
func (b *BlendSpace) Version() uint64 {
	return b.version.Load()
}

// Invalidate marks cached grid data built from this blend space as stale.
// Call it after mutating Samples or Parameters.
func (b *BlendSpace) Invalidate() {
	b.version.Add(1)
}

// BuildGrid returns, for each grid point, the index of the sample nearest to it.
// Points are stored row-major along the first parameter.
//
// Returns:
//   - []int: sample index per grid point
func (b *BlendSpace) BuildGrid() []int {
	nx := b.Parameters[0].GridDivisions + 1
	ny := 1
	if b.Dimensions == 2 {
		ny = b.Parameters[1].GridDivisions + 1
	}
	grid := make([]int, nx*ny)
	for j := range ny {
		for i := range nx {
			grid[j*nx+i] = b.nearestSample(b.gridPointValue(i, j))
		}
	}
	return grid
}

func (b *BlendSpace) gridPointValue(i, j int) mgl32.Vec3 {
	var v mgl32.Vec3
	for axis, idx := range [2]int{i, j} {
		if axis >= b.Dimensions {
			break
		}
		p := b.Parameters[axis]
		v[axis] = p.Min + (p.Max-p.Min)*float32(idx)/float32(p.GridDivisions)
	}
	return v
}

func (b *BlendSpace) nearestSample(v mgl32.Vec3) int {
	best, bestDist := 0, float32(math.MaxFloat32)
	for i, s := range b.Samples {
		var d float32
		for axis := range b.Dimensions {
			p := b.Parameters[axis]
			n := (s.Value[axis] - v[axis]) / (p.Max - p.Min)
			d += n * n
		}
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// SampleWeights evaluates the grid at input and appends the normalized sample weights to out.
// Weights for the same sample reached through several grid corners are merged.
//
// Parameters:
//   - grid: the table returned by BuildGrid
//   - input: the blend coordinate; components beyond Dimensions are ignored
//   - out: the slice to append to (usually reused across frames)
//
// Returns:
//   - []SampleWeight: out with the contributing samples appended, weights summing to 1
func (b *BlendSpace) SampleWeights(grid []int, input mgl32.Vec3, out []SampleWeight) []SampleWeight {
	out = out[:0]
	nx := b.Parameters[0].GridDivisions + 1

	var cell [2]int
	var frac [2]float32
	for axis := range b.Dimensions {
		p := b.Parameters[axis]
		g := (common.Clamp(input[axis], p.Min, p.Max) - p.Min) / (p.Max - p.Min) * float32(p.GridDivisions)
		c := int(g)
		if c >= p.GridDivisions {
			c = p.GridDivisions - 1
		}
		cell[axis] = c
		frac[axis] = g - float32(c)
	}

	add := func(i, j int, w float32) {
		if w <= common.ZeroAnimWeightThreshold {
			return
		}
		sample := grid[j*nx+i]
		for k := range out {
			if out[k].SampleIndex == sample {
				out[k].Weight += w
				return
			}
		}
		out = append(out, SampleWeight{SampleIndex: sample, Weight: w})
	}

	if b.Dimensions == 1 {
		add(cell[0], 0, 1-frac[0])
		add(cell[0]+1, 0, frac[0])
	} else {
		add(cell[0], cell[1], (1-frac[0])*(1-frac[1]))
		add(cell[0]+1, cell[1], frac[0]*(1-frac[1]))
		add(cell[0], cell[1]+1, (1-frac[0])*frac[1])
		add(cell[0]+1, cell[1]+1, frac[0]*frac[1])
	}

	var total float32
	for _, sw := range out {
		total += sw.Weight
	}
	if total > common.SmallNumber {
		for k := range out {
			out[k].Weight /= total
		}
	}
	return out
}
