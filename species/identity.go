package species

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	"github.com/pthm-cable/emergent/components"
)

// namespace scopes archetype IDs so equal inputs always give the same UUID.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("emergent/archetype"))

// archetypeID derives a version 5 UUID from the run seed, the minting index
// and the centroid bits.
func archetypeID(seed int64, index int, centroid [components.NumGenes]float32) uuid.UUID {
	buf := make([]byte, 0, 16+4*components.NumGenes)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(seed))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(index))
	for _, g := range centroid {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(g))
	}
	return uuid.NewSHA1(namespace, buf)
}

var glyphs = []rune("◇◆○●△▲□■☉☽✦✧⬡⬢⌘※")

// sigilFor builds a three-glyph sigil from the ID bytes.
func sigilFor(id uuid.UUID) string {
	out := make([]rune, 3)
	for i := range out {
		out[i] = glyphs[int(id[i])%len(glyphs)]
	}
	return string(out)
}

var (
	onsets = []string{"k", "v", "th", "s", "m", "r", "z", "l", "n", "dr", "ph", "qu"}
	nuclei = []string{"a", "e", "i", "o", "u", "ae", "io", "y"}
	codas  = []string{"", "n", "x", "th", "l", "r", "s", "m"}
)

// nameFor builds a two-syllable name from the ID bytes.
func nameFor(id uuid.UUID) string {
	var name []byte
	for s := 0; s < 2; s++ {
		b := id[4+s*3:]
		name = append(name, onsets[int(b[0])%len(onsets)]...)
		name = append(name, nuclei[int(b[1])%len(nuclei)]...)
		name = append(name, codas[int(b[2])%len(codas)]...)
	}
	if len(name) > 0 && name[0] >= 'a' && name[0] <= 'z' {
		name[0] -= 'a' - 'A'
	}
	return string(name)
}

// colorFor spreads hues by the golden angle so successive archetypes are distinct.
func colorFor(index int) [3]uint8 {
	const goldenAngle = 137.508
	hue := math.Mod(float64(index)*goldenAngle, 360)
	return hsvToRGB(hue, 0.7, 0.9)
}

func hsvToRGB(h, s, v float64) [3]uint8 {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return [3]uint8{uint8((r + m) * 255), uint8((g + m) * 255), uint8((b + m) * 255)}
}
