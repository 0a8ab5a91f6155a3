package components

import "github.com/google/uuid"

// Centroid is the mean genotype of the population sample an archetype was minted from.
type Centroid struct {
	Genes [NumGenes]float32
}

// Identity names an archetype.
type Identity struct {
	Index int       // minting order, starting at 0
	ID    uuid.UUID // derived from seed, index and centroid
	Sigil string
	Name  string
	Color [3]uint8 // display hint for hosts, spread by golden angle
}

// Origin records when and under which field conditions an archetype appeared.
type Origin struct {
	SimTime    float64
	Tick       uint64
	Volatility float32
	Scarcity   float32
	Cohesion   float32
}
