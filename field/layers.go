package field

import (
	"math"

	"github.com/ojrac/opensimplex-go"
)

// Layers grid channels.
const (
	Nutrient Channel = iota
	Tension
	Memory
	Entropy
	NumLayerChannels
)

// Recursive grid channels.
const (
	Charge Channel = iota
	Affinity
	Stress
	NumRecursiveChannels
)

// Sigil grid channels.
const (
	Mark Channel = iota
	Echo
	NumSigilChannels
)

// LayerNames lists the layers channel names in enum order.
var LayerNames = [NumLayerChannels]string{"nutrient", "tension", "memory", "entropy"}

// RecursiveNames lists the recursive channel names in enum order.
var RecursiveNames = [NumRecursiveChannels]string{"charge", "affinity", "stress"}

// SigilNames lists the sigil channel names in enum order.
var SigilNames = [NumSigilChannels]string{"mark", "echo"}

// GridConfig describes one grid instance.
type GridConfig struct {
	Width     int           `yaml:"width"`
	Height    int           `yaml:"height"`
	Interval  float64       `yaml:"interval"` // seconds between Step calls
	GlobalMix float32       `yaml:"global_mix"`
	Channels  []ChannelSpec `yaml:"channels"`
}

// specsFor orders cfg.Channels by the given names, filling any missing
// channel with a neutral spec so the enum always indexes a real buffer.
func specsFor(names []string, cfg GridConfig) []ChannelSpec {
	specs := make([]ChannelSpec, len(names))
	for i, name := range names {
		specs[i] = ChannelSpec{Name: name, Injection: 1, Max: 1}
		for _, c := range cfg.Channels {
			if c.Name == name {
				specs[i] = c
				break
			}
		}
		if specs[i].Max <= 0 {
			specs[i].Max = 1
		}
	}
	return specs
}

// NewLayers creates the fine nutrient/tension/memory/entropy grid.
func NewLayers(cfg GridConfig, worldW, worldH float32) *Grid {
	return NewGrid(cfg.Width, cfg.Height, worldW, worldH, specsFor(LayerNames[:], cfg))
}

// NewRecursive creates the coarse charge/affinity/stress grid with global mixing.
func NewRecursive(cfg GridConfig, worldW, worldH float32) *Grid {
	g := NewGrid(cfg.Width, cfg.Height, worldW, worldH, specsFor(RecursiveNames[:], cfg))
	g.GlobalMix = cfg.GlobalMix
	return g
}

// NewSigil creates the secondary mark/echo grid.
func NewSigil(cfg GridConfig, worldW, worldH float32) *Grid {
	return NewGrid(cfg.Width, cfg.Height, worldW, worldH, specsFor(SigilNames[:], cfg))
}

// SeedNutrient fills the nutrient channel from tileable OpenSimplex noise.
// scale is the number of noise features across the world.
func SeedNutrient(g *Grid, seed int64, scale float64) {
	noise := opensimplex.NewNormalized(seed)
	maxV := float64(g.Specs[Nutrient].Max)
	g.Fill(Nutrient, func(u, v float64) float32 {
		// Sample on a torus in 4D so the field tiles seamlessly
		s, c := math.Sincos(2 * math.Pi * u)
		t, d := math.Sincos(2 * math.Pi * v)
		r := scale / (2 * math.Pi)
		n := noise.Eval4(c*r, s*r, d*r, t*r)
		return float32(n * maxV)
	})
}
