// Package field provides multi-channel diffusing scalar grids and the
// signal struct the force kernel reads from them.
package field

import (
	"math"
)

// Channel indexes a grid's channel set. Each grid kind declares its own
// bounded enum of channels.
type Channel int

// ChannelSpec configures one channel of a grid.
type ChannelSpec struct {
	Name      string  `yaml:"name" json:"name"`
	Diffusion float32 `yaml:"diffusion" json:"diffusion"` // blend rate toward 4-neighbor mean, per second
	Decay     float32 `yaml:"decay" json:"decay"`         // exponential decay rate, per second
	Injection float32 `yaml:"injection" json:"injection"` // gain applied to deposits
	Delay     float32 `yaml:"delay" json:"delay"`         // seconds for pending deposits to land (0 = immediate)
	Max       float32 `yaml:"max" json:"max"`             // clamp ceiling; floor is 0
}

// Grid is a tileable multi-channel scalar grid over a world rectangle.
// Every cell of channel c stays within [0, Specs[c].Max] after each operation.
type Grid struct {
	W int `json:"w"`
	H int `json:"h"`

	WorldW float32 `json:"world_w"`
	WorldH float32 `json:"world_h"`

	Specs     []ChannelSpec `json:"specs"`
	GlobalMix float32       `json:"global_mix"` // pull toward channel mean, per second

	Data    [][]float32 `json:"data"`
	Pending [][]float32 `json:"pending"`

	Time float32 `json:"time"`

	// Scratch buffer for diffusion
	tmp []float32
}

// NewGrid creates a w×h grid covering worldW×worldH with one buffer per spec.
func NewGrid(w, h int, worldW, worldH float32, specs []ChannelSpec) *Grid {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	g := &Grid{
		W: w, H: h,
		WorldW: worldW,
		WorldH: worldH,
		Specs:  append([]ChannelSpec(nil), specs...),
		tmp:    make([]float32, w*h),
	}
	g.Data = make([][]float32, len(specs))
	g.Pending = make([][]float32, len(specs))
	for c := range specs {
		g.Data[c] = make([]float32, w*h)
		g.Pending[c] = make([]float32, w*h)
	}
	return g
}

// NumChannels returns the channel count.
func (g *Grid) NumChannels() int { return len(g.Specs) }

// Resolution returns the grid dimensions in cells.
func (g *Grid) Resolution() (int, int) { return g.W, g.H }

// Channel returns the live buffer of channel c, or nil if c is out of range.
func (g *Grid) Channel(c Channel) []float32 {
	if !g.valid(c) {
		return nil
	}
	return g.Data[c]
}

func (g *Grid) valid(c Channel) bool {
	return c >= 0 && int(c) < len(g.Specs)
}

// Clear zeroes every channel without resizing.
func (g *Grid) Clear() {
	for c := range g.Data {
		clear(g.Data[c])
		clear(g.Pending[c])
	}
	g.Time = 0
}

// cell maps world coordinates to a wrapped cell index.
func (g *Grid) cell(x, y float32) (int, int) {
	cx := int(math.Floor(float64(fract(x/g.WorldW) * float32(g.W))))
	cy := int(math.Floor(float64(fract(y/g.WorldH) * float32(g.H))))
	return modInt(cx, g.W), modInt(cy, g.H)
}

// Inject deposits amount (scaled by the channel's injection gain) into the
// cell nearest (x, y). Non-finite or non-positive amounts are ignored.
func (g *Grid) Inject(x, y float32, c Channel, amount float32) {
	if !g.valid(c) || !(amount > 0) || math.IsInf(float64(amount), 0) {
		return
	}
	cx, cy := g.cell(x, y)
	g.deposit(c, cy*g.W+cx, amount*g.Specs[c].Injection)
}

// InjectBrush spreads amount over a circular brush of radiusCells with a
// linear falloff. The weights sum to one, so the total deposit equals Inject's.
func (g *Grid) InjectBrush(x, y float32, c Channel, amount float32, radiusCells int) {
	if radiusCells <= 0 {
		g.Inject(x, y, c, amount)
		return
	}
	if !g.valid(c) || !(amount > 0) || math.IsInf(float64(amount), 0) {
		return
	}
	cx, cy := g.cell(x, y)
	r := float32(radiusCells) + 1

	var wsum float32
	for oy := -radiusCells; oy <= radiusCells; oy++ {
		for ox := -radiusCells; ox <= radiusCells; ox++ {
			if w := brushWeight(ox, oy, r); w > 0 {
				wsum += w
			}
		}
	}
	total := amount * g.Specs[c].Injection
	for oy := -radiusCells; oy <= radiusCells; oy++ {
		yy := modInt(cy+oy, g.H)
		for ox := -radiusCells; ox <= radiusCells; ox++ {
			w := brushWeight(ox, oy, r)
			if w <= 0 {
				continue
			}
			xx := modInt(cx+ox, g.W)
			g.deposit(c, yy*g.W+xx, total*w/wsum)
		}
	}
}

func brushWeight(ox, oy int, r float32) float32 {
	d := float32(math.Sqrt(float64(ox*ox + oy*oy)))
	return 1 - d/r
}

func (g *Grid) deposit(c Channel, i int, v float32) {
	if g.Specs[c].Delay > 0 {
		g.Pending[c][i] += v
		return
	}
	g.Data[c][i] = clampRange(g.Data[c][i]+v, g.Specs[c].Max)
}

// Sample returns the nearest-cell value of channel c at (x, y).
func (g *Grid) Sample(x, y float32, c Channel) float32 {
	if !g.valid(c) {
		return 0
	}
	cx, cy := g.cell(x, y)
	return g.Data[c][cy*g.W+cx]
}

// SampleUnit returns Sample scaled by the channel ceiling, in [0,1].
// A channel with no positive ceiling reads 0.
func (g *Grid) SampleUnit(x, y float32, c Channel) float32 {
	if !g.valid(c) || !(g.Specs[c].Max > 0) {
		return 0
	}
	return g.Sample(x, y, c) / g.Specs[c].Max
}

// SampleBilinear returns a bilinearly interpolated value of channel c.
// Cell centers sit at half-cell offsets.
func (g *Grid) SampleBilinear(x, y float32, c Channel) float32 {
	if !g.valid(c) {
		return 0
	}
	fx := fract(x/g.WorldW)*float32(g.W) - 0.5
	fy := fract(y/g.WorldH)*float32(g.H) - 0.5

	x0f := float32(math.Floor(float64(fx)))
	y0f := float32(math.Floor(float64(fy)))
	tx := fx - x0f
	ty := fy - y0f

	x0 := modInt(int(x0f), g.W)
	y0 := modInt(int(y0f), g.H)
	x1 := modInt(x0+1, g.W)
	y1 := modInt(y0+1, g.H)

	d := g.Data[c]
	a := d[y0*g.W+x0] + (d[y0*g.W+x1]-d[y0*g.W+x0])*tx
	b := d[y1*g.W+x0] + (d[y1*g.W+x1]-d[y1*g.W+x0])*tx
	return a + (b-a)*ty
}

// Step advances every channel by dt seconds: pending release, exponential
// decay, 4-neighbor diffusion, then the optional global-mix pass. Values are
// clamped after each sub-step.
func (g *Grid) Step(dt float32) {
	if dt <= 0 {
		return
	}
	g.Time += dt
	for c := range g.Specs {
		ch := Channel(c)
		g.release(ch, dt)
		g.decay(ch, dt)
		g.diffuse(ch, dt)
		if g.GlobalMix > 0 {
			g.mix(ch, dt)
		}
	}
}

// release moves a first-order share of pending deposits into the live channel.
func (g *Grid) release(c Channel, dt float32) {
	spec := g.Specs[c]
	if spec.Delay <= 0 {
		return
	}
	k := dt / spec.Delay
	if k > 1 {
		k = 1
	}
	live, pend := g.Data[c], g.Pending[c]
	for i, p := range pend {
		if p == 0 {
			continue
		}
		move := p * k
		pend[i] = p - move
		live[i] = clampRange(live[i]+move, spec.Max)
	}
}

func (g *Grid) decay(c Channel, dt float32) {
	spec := g.Specs[c]
	if spec.Decay <= 0 {
		return
	}
	k := float32(math.Exp(-float64(spec.Decay * dt)))
	live := g.Data[c]
	for i := range live {
		live[i] = clampRange(live[i]*k, spec.Max)
	}
}

// diffuse blends each cell toward its 4-neighbor mean on the toroidal grid.
func (g *Grid) diffuse(c Channel, dt float32) {
	a := g.Specs[c].Diffusion * dt
	if a <= 0 {
		return
	}
	// Stability clamp for explicit diffusion
	if a > 1 {
		a = 1
	}

	w, h := g.W, g.H
	src := g.Data[c]
	dst := g.tmp
	if len(dst) != len(src) {
		dst = make([]float32, len(src))
		g.tmp = dst
	}

	for y := 0; y < h; y++ {
		yN := modInt(y-1, h)
		yS := modInt(y+1, h)
		for x := 0; x < w; x++ {
			xW := modInt(x-1, w)
			xE := modInt(x+1, w)

			i := y*w + x
			mean := (src[yN*w+x] + src[yS*w+x] + src[y*w+xE] + src[y*w+xW]) * 0.25
			dst[i] = src[i] + a*(mean-src[i])
		}
	}

	maxV := g.Specs[c].Max
	for i := range src {
		src[i] = clampRange(dst[i], maxV)
	}
}

// mix nudges every cell toward the channel mean, standing in for
// long-range coupling without pairwise cost.
func (g *Grid) mix(c Channel, dt float32) {
	k := g.GlobalMix * dt
	if k > 1 {
		k = 1
	}
	mean := g.Mean(c)
	live := g.Data[c]
	maxV := g.Specs[c].Max
	for i := range live {
		live[i] = clampRange(live[i]+(mean-live[i])*k, maxV)
	}
}

// Sum returns the total of channel c.
func (g *Grid) Sum(c Channel) float64 {
	if !g.valid(c) {
		return 0
	}
	var s float64
	for _, v := range g.Data[c] {
		s += float64(v)
	}
	return s
}

// Mean returns the mean of channel c.
func (g *Grid) Mean(c Channel) float32 {
	if !g.valid(c) || len(g.Data[c]) == 0 {
		return 0
	}
	return float32(g.Sum(c) / float64(len(g.Data[c])))
}

// Fill sets every cell of channel c from fn(u, v), with u, v the cell-center
// coordinates in [0, 1). Values are clamped.
func (g *Grid) Fill(c Channel, fn func(u, v float64) float32) {
	if !g.valid(c) {
		return
	}
	maxV := g.Specs[c].Max
	for y := 0; y < g.H; y++ {
		v := (float64(y) + 0.5) / float64(g.H)
		for x := 0; x < g.W; x++ {
			u := (float64(x) + 0.5) / float64(g.W)
			g.Data[c][y*g.W+x] = clampRange(fn(u, v), maxV)
		}
	}
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := NewGrid(g.W, g.H, g.WorldW, g.WorldH, g.Specs)
	c.GlobalMix = g.GlobalMix
	c.Time = g.Time
	for i := range g.Data {
		copy(c.Data[i], g.Data[i])
		copy(c.Pending[i], g.Pending[i])
	}
	return c
}

// EnsureScratch reallocates the diffusion buffer after the grid was decoded
// from a snapshot.
func (g *Grid) EnsureScratch() {
	if len(g.tmp) != g.W*g.H {
		g.tmp = make([]float32, g.W*g.H)
	}
}

// clampRange clamps v into [0, max]; NaN becomes 0.
func clampRange(v, max float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

func fract(x float32) float32 {
	return x - float32(math.Floor(float64(x)))
}

func modInt(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
