package systems

// hash2 mixes two integers and a seed into a well-distributed uint32.
func hash2(x, y, seed uint32) uint32 {
	h := x*374761393 + y*668265263 + seed*1442695041
	h = (h ^ (h >> 13)) * 1274126177
	h ^= h >> 16
	return h
}

// hashUnit maps a hash to [-1, 1].
func hashUnit(h uint32) float32 {
	return float32(h)/float32(^uint32(0))*2 - 1
}

// jitter returns a deterministic 2D offset in [-1, 1]² for a tick and slot.
// It draws nothing from the random source.
func jitter(tick uint64, slot int) (float32, float32) {
	t := uint32(tick) ^ uint32(tick>>32)
	s := uint32(slot)
	return hashUnit(hash2(t, s, 0x9e3779b9)), hashUnit(hash2(s, t, 0x85ebca6b))
}
