package board

// FourProbability is the chance that a spawned tile is a 4 rather than a 2.
const FourProbability = 0.1

// Rand is the randomness a spawn needs. *frand.RNG and *rand.Rand both
// satisfy it.
type Rand interface {
	Intn(n int) int
	Float64() float64
}

// SpawnTile writes a 2 (exponent 1) or, with probability FourProbability, a
// 4 (exponent 2) into a uniformly chosen empty cell. A full board is
// returned unchanged.
func (b Board) SpawnTile(rng Rand) Board {
	empty := b.EmptyCells()
	if len(empty) == 0 {
		return b
	}
	e := uint8(1)
	if rng.Float64() < FourProbability {
		e = 2
	}
	return b.With(empty[rng.Intn(len(empty))], e)
}

// New returns a starting board: two tiles spawned on an empty grid.
func New(rng Rand) Board {
	var b Board
	return b.SpawnTile(rng).SpawnTile(rng)
}
