package systems

import (
	"math"

	"github.com/pthm-cable/emergent/components"
	"github.com/pthm-cable/emergent/field"
	"github.com/pthm-cable/emergent/matrix"
)

// minDistSq rejects coincident pairs.
const minDistSq = 1e-6

// KernelStats counts the work done by one kernel step.
type KernelStats struct {
	NeighborChecks int `csv:"neighbor_checks"`
	Interactions   int `csv:"interactions"`
	FeedEvents     int `csv:"feed_events"`
	Deposits       int `csv:"deposits"`
	Rebuilds       int `csv:"rebuilds"`
}

// ForceKernel computes pairwise forces through the spatial grid and
// integrates motion. Per-slot buffers are sized to capacity and only grow.
type ForceKernel struct {
	grid *SpatialGrid

	fx, fy   []float32
	drag     []float32
	nutrient []float32
	feed     []float32

	stats KernelStats

	// per-particle query state read by visit
	cur     query
	visitFn func(slot int)
}

type query struct {
	ps   *components.ParticleSet
	m    *matrix.Matrix
	env  *field.Environment
	p    *ForceParams
	wrap bool
	dt   float32

	i      int
	ti     int
	x, y   float32
	beta   float32
	fx, fy float32
}

// NewForceKernel creates a kernel for a world of the given size.
func NewForceKernel(width, height float32) *ForceKernel {
	k := &ForceKernel{grid: NewSpatialGrid(width, height)}
	k.visitFn = k.visit
	return k
}

// Grid exposes the spatial index.
func (k *ForceKernel) Grid() *SpatialGrid { return k.grid }

// Invalidate forces a spatial rebuild on the next step. Call after restoring state.
func (k *ForceKernel) Invalidate() { k.grid.Invalidate() }

// Stats returns the counters of the last step.
func (k *ForceKernel) Stats() KernelStats { return k.stats }

// Feed returns the per-slot feed accumulator of the last step. Slots past
// the live count hold stale values.
func (k *ForceKernel) Feed() []float32 { return k.feed }

func (k *ForceKernel) ensure(capacity int) {
	if len(k.fx) >= capacity {
		return
	}
	k.fx = make([]float32, capacity)
	k.fy = make([]float32, capacity)
	k.drag = make([]float32, capacity)
	k.nutrient = make([]float32, capacity)
	k.feed = make([]float32, capacity)
}

// Step advances every live particle by dt. Invalid type tags are skipped,
// food is never moved, and missing matrix entries mean no interaction.
func (k *ForceKernel) Step(ps *components.ParticleSet, m *matrix.Matrix, env *field.Environment, p ForceParams, tick uint64, dt float32) {
	k.stats = KernelStats{}
	if ps == nil || m == nil || !(dt > 0) {
		return
	}
	k.ensure(ps.Max)
	wrap := p.Boundary == BoundaryWrap

	cellSize := m.MaxRadius() * p.RadiusScale
	if !(cellSize >= p.MinCellSize) {
		cellSize = p.MinCellSize
	}
	if k.grid.width != p.Width || k.grid.height != p.Height {
		k.grid.width, k.grid.height = p.Width, p.Height
		k.grid.Invalidate()
	}
	if k.grid.NeedsRebuild(cellSize, ps.Max, wrap) {
		k.grid.Rebuild(cellSize, ps.Max, wrap)
		k.stats.Rebuilds++
	} else {
		k.grid.Clear()
	}

	n := ps.Count
	for i := 0; i < n; i++ {
		k.feed[i] = 0
		k.fx[i], k.fy[i] = 0, 0
		if ps.IsFood(i) || ps.ValidType(i, m.N) {
			k.grid.Insert(i, ps.X[i], ps.Y[i])
		}
	}

	k.cur = query{ps: ps, m: m, env: env, p: &p, wrap: wrap, dt: dt}
	for i := 0; i < n; i++ {
		if !ps.ValidType(i, m.N) {
			continue
		}
		x, y := ps.X[i], ps.Y[i]
		sig := env.Read(x, y)

		beta := p.Beta * (1 + p.Coupling.ScarcityBeta*(sig.Scarcity-0.5))
		beta = clampFloat(beta, 0.05, 0.95)
		drag := p.Drag * (1 + p.Coupling.VolatilityDrag*sig.Volatility - p.Coupling.CohesionDrag*sig.Cohesion)
		if !(drag > 0) {
			drag = 0
		}
		k.drag[i] = drag
		k.nutrient[i] = sig.Nutrient

		q := &k.cur
		q.i, q.ti = i, int(ps.Type[i])
		q.x, q.y = x, y
		q.beta = beta
		q.fx, q.fy = 0, 0
		k.grid.QueryNeighbors(x, y, k.visitFn)

		jx, jy := jitter(tick, i)
		k.fx[i] = q.fx + p.Noise*jx
		k.fy[i] = q.fy + p.Noise*jy
	}
	k.cur = query{}

	foodKeep := float32(math.Exp(-float64(p.FoodDecay * dt)))
	for i := 0; i < n; i++ {
		if ps.IsFood(i) {
			ps.Energy[i] *= foodKeep
			continue
		}
		if !ps.ValidType(i, m.N) {
			continue
		}
		k.integrate(ps, env, &p, i, dt)
	}
}

// visit handles one neighbor candidate j of the current particle.
func (k *ForceKernel) visit(j int) {
	q := &k.cur
	if j == q.i {
		return
	}
	k.stats.NeighborChecks++
	ps, p := q.ps, q.p

	var dx, dy float32
	if q.wrap {
		dx, dy = ToroidalDelta(q.x, q.y, ps.X[j], ps.Y[j], p.Width, p.Height)
	} else {
		dx, dy = ps.X[j]-q.x, ps.Y[j]-q.y
	}
	d2 := dx*dx + dy*dy
	if d2 < minDistSq {
		return
	}

	if ps.IsFood(j) {
		if d2 < p.FoodReach*p.FoodReach && ps.Energy[j] > 0 {
			bite := p.FoodBite * q.dt
			if bite > ps.Energy[j] {
				bite = ps.Energy[j]
			}
			ps.Energy[j] -= bite
			k.feed[q.i] += bite / q.dt
			k.stats.FeedEvents++
		}
		return
	}

	a, r, falloff, ok := q.m.At(q.ti, int(ps.Type[j]))
	if !ok {
		return
	}
	r *= p.RadiusScale
	if !(d2 < r*r) {
		return
	}
	d := float32(math.Sqrt(float64(d2)))
	rn := d / r

	var force float32
	if p.Kernel == KernelPower {
		force = a * float32(math.Pow(float64(1-rn), float64(falloff)))
	} else {
		force = classicForce(rn, a, q.beta)
	}
	if force == 0 {
		return
	}
	k.stats.Interactions++

	s := force * p.ForceScale / d
	q.fx += dx * s
	q.fy += dy * s

	if force > 0 {
		k.feed[q.i] += force
	}
	if p.Deposit.Strong > 0 {
		amount := capped(abs32(force)*q.dt, p.Deposit.Cap)
		if force >= p.Deposit.Strong {
			q.env.Deposit(field.Memory, q.x, q.y, amount)
			q.env.DepositRecursive(field.Affinity, q.x, q.y, amount)
			k.stats.Deposits++
		} else if force <= -p.Deposit.Strong {
			q.env.Deposit(field.Tension, q.x, q.y, amount)
			q.env.DepositRecursive(field.Stress, q.x, q.y, amount)
			k.stats.Deposits++
		}
	}
}

// classicForce is the piecewise particle-life law on normalized distance r.
// Below beta it is purely repulsive and linear; above it a triangular bump
// scaled by a that vanishes at r = 1.
func classicForce(r, a, beta float32) float32 {
	if r < beta {
		return r/beta - 1
	}
	if beta >= 1 || r >= 1 {
		return 0
	}
	return a * (1 - abs32(2*r-1-beta)/(1-beta))
}

func (k *ForceKernel) integrate(ps *components.ParticleSet, env *field.Environment, p *ForceParams, i int, dt float32) {
	ox, oy := ps.X[i], ps.Y[i]

	vx := ps.VX[i] + k.fx[i]*dt
	vy := ps.VY[i] + k.fy[i]*dt
	damp := float32(math.Exp(-float64(k.drag[i] * dt)))
	vx *= damp
	vy *= damp

	// Saturation guard
	if !finite32(vx) || !finite32(vy) {
		vx, vy = 0, 0
	}
	speed := float32(math.Sqrt(float64(vx*vx + vy*vy)))
	if p.MaxSpeed > 0 && speed > p.MaxSpeed {
		s := p.MaxSpeed / speed
		vx *= s
		vy *= s
		speed = p.MaxSpeed
	}

	x := ox + vx*dt
	y := oy + vy*dt
	if !finite32(x) || !finite32(y) {
		x, y = ox, oy
		vx, vy = 0, 0
	}

	if p.Boundary == BoundaryWrap {
		x = wrapCoord(x, p.Width)
		y = wrapCoord(y, p.Height)
	} else {
		x, vx = bounceCoord(x, vx, p.Width)
		y, vy = bounceCoord(y, vy, p.Height)
	}
	ps.X[i], ps.Y[i] = x, y
	ps.VX[i], ps.VY[i] = vx, vy

	dp := &p.Deposit
	if dp.Cap <= 0 {
		return
	}
	amount := dp.Cap * dt
	if speed < dp.LowSpeed && k.nutrient[i] >= dp.RichNutrient {
		env.Deposit(field.Memory, x, y, amount)
		env.DepositRecursive(field.Charge, x, y, amount)
		k.stats.Deposits++
	}
	if dp.FastSpeed > 0 && speed > dp.FastSpeed {
		env.Deposit(field.Entropy, x, y, amount)
		k.stats.Deposits++
	}
	env.DepositSigil(x, y, ps.Size[i]*amount)
}

// wrapCoord maps v into [0, size).
func wrapCoord(v, size float32) float32 {
	if v >= 0 && v < size {
		return v
	}
	v -= size * float32(math.Floor(float64(v/size)))
	if !(v >= 0 && v < size) {
		v = 0
	}
	return v
}

// bounceCoord reflects v off [0, size] and flips the velocity.
func bounceCoord(v, vel, size float32) (float32, float32) {
	if v < 0 {
		v = -v
		vel = -vel
	} else if v > size {
		v = 2*size - v
		vel = -vel
	}
	return clampFloat(v, 0, size), vel
}

func capped(v, limit float32) float32 {
	if v > limit {
		return limit
	}
	return v
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func finite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// clampFloat clamps a float32 value between min and max.
func clampFloat(v, minVal, maxVal float32) float32 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clamp01 clamps a float32 value to the [0, 1] range.
func clamp01(v float32) float32 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
