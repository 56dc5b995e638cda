package ntuple

import (
	"errors"
	"fmt"

	"github.com/pbnjay/memory"
	"github.com/rs/zerolog/log"
)

var ErrTooLarge = errors.New("dense weight tables exceed the memory budget")

// lut is the lookup table of one tuple: a dense array over the full index
// space, or a sparse map in which missing entries read as fill.
type lut struct {
	size   uint64
	dense  []float64
	sparse map[uint64]float64
	fill   float64
}

func newLUT(size uint64, dense bool, fill float64) lut {
	l := lut{size: size, fill: fill}
	if dense {
		l.dense = make([]float64, size)
		if fill != 0 {
			for i := range l.dense {
				l.dense[i] = fill
			}
		}
	} else {
		l.sparse = make(map[uint64]float64)
	}
	return l
}

func (l *lut) isDense() bool { return l.dense != nil }

func (l *lut) get(idx uint64) float64 {
	if l.dense != nil {
		return l.dense[idx]
	}
	if v, ok := l.sparse[idx]; ok {
		return v
	}
	return l.fill
}

func (l *lut) set(idx uint64, v float64) {
	if l.dense != nil {
		l.dense[idx] = v
		return
	}
	l.sparse[idx] = v
}

func (l *lut) add(idx uint64, delta float64) {
	if l.dense != nil {
		l.dense[idx] += delta
		return
	}
	v, ok := l.sparse[idx]
	if !ok {
		v = l.fill
	}
	l.sparse[idx] = v + delta
}

// stored is the number of entries held in memory.
func (l *lut) stored() int {
	if l.dense != nil {
		return len(l.dense)
	}
	return len(l.sparse)
}

// Weights holds one lookup table per tuple of a tuple set, in tuple order.
type Weights struct {
	luts []lut
}

// Options control how a network stores its weights.
type Options struct {
	// DenseMaxArity is the largest tuple arity stored as a dense array.
	// Larger tuples use sparse maps.
	DenseMaxArity int
	// InitWeight is the starting value of every weight.
	InitWeight float64
	// MemoryFraction caps the dense tables at this fraction of system
	// memory. Zero disables the check.
	MemoryFraction float64
}

var DefaultOptions = Options{DenseMaxArity: 6, MemoryFraction: 0.75}

func denseBytes(ts TupleSet, denseMaxArity int) uint64 {
	var total uint64
	for _, t := range ts {
		if t.Arity() <= denseMaxArity {
			total += t.Size() * 8
		}
	}
	return total
}

// checkMemory fails with ErrTooLarge when need bytes of dense tables exceed
// fraction of system memory.
func checkMemory(need uint64, fraction float64) error {
	if fraction <= 0 {
		return nil
	}
	// TotalMemory reports 0 when it cannot tell.
	total := memory.TotalMemory()
	if total == 0 {
		return nil
	}
	budget := uint64(fraction * float64(total))
	if need > budget {
		return fmt.Errorf("%w: need %d bytes, budget %d of %d", ErrTooLarge, need, budget, total)
	}
	return nil
}

func newWeights(ts TupleSet, opts Options) (*Weights, error) {
	need := denseBytes(ts, opts.DenseMaxArity)
	if err := checkMemory(need, opts.MemoryFraction); err != nil {
		return nil, err
	}
	w := &Weights{luts: make([]lut, len(ts))}
	for i, t := range ts {
		w.luts[i] = newLUT(t.Size(), t.Arity() <= opts.DenseMaxArity, opts.InitWeight)
	}
	log.Debug().Int("tuples", len(ts)).Uint64("dense-bytes", need).
		Float64("init-weight", opts.InitWeight).Msg("allocated-weights")
	return w, nil
}

// Get returns the weight at index idx of tuple t's table.
func (w *Weights) Get(t int, idx uint64) float64 {
	return w.luts[t].get(idx)
}

func (w *Weights) Set(t int, idx uint64, v float64) {
	w.luts[t].set(idx, v)
}

func (w *Weights) Add(t int, idx uint64, delta float64) {
	w.luts[t].add(idx, delta)
}

func (w *Weights) Dense(t int) bool {
	return w.luts[t].isDense()
}

// Stored returns how many entries of tuple t's table are held in memory.
func (w *Weights) Stored(t int) int {
	return w.luts[t].stored()
}
