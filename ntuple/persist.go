package ntuple

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"io"
	"math"
	"os"
	"slices"

	"github.com/cespare/xxhash"
	"github.com/rs/zerolog/log"

	"github.com/jgc10/2048-ai/board"
)

// Weight file layout, little-endian:
//
//	magic "NTN1", version uint32, tuple count uint32
//	per tuple: arity uint8, then arity cell indexes (4*row+col) as uint8
//	per tuple: kind uint8 (0 dense, 1 sparse), size uint64 (16^arity)
//	  dense:  size float64 weights, index order
//	  sparse: fill float64, count uint64, count (index uint64, weight float64)
//	          pairs in ascending index order
//	xxhash64 of everything above, uint64
const (
	fileMagic   = "NTN1"
	fileVersion = 1

	kindDense  = 0
	kindSparse = 1

	floatChunk = 8192
)

var (
	ErrBadMagic = errors.New("not a weight file")
	ErrChecksum = errors.New("weight file checksum mismatch")
)

// MismatchError reports a weight file that does not fit the tuple set it is
// loaded into. It means the tuple set changed since the file was written.
type MismatchError struct {
	// Tuple is the offending tuple index, or -1 for the tuple count.
	Tuple    int
	What     string
	Expected uint64
	Actual   uint64
}

func (e *MismatchError) Error() string {
	if e.Tuple < 0 {
		return fmt.Sprintf("weight file %s mismatch: expected %d, file has %d",
			e.What, e.Expected, e.Actual)
	}
	return fmt.Sprintf("weight file tuple %d: %s mismatch: expected %d, file has %d",
		e.Tuple, e.What, e.Expected, e.Actual)
}

func writeFloats(w io.Writer, vals []float64) error {
	buf := make([]byte, 8*floatChunk)
	for len(vals) > 0 {
		k := min(len(vals), floatChunk)
		for i, v := range vals[:k] {
			binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
		}
		if _, err := w.Write(buf[:8*k]); err != nil {
			return err
		}
		vals = vals[k:]
	}
	return nil
}

func readFloats(r io.Reader, vals []float64) error {
	buf := make([]byte, 8*floatChunk)
	for len(vals) > 0 {
		k := min(len(vals), floatChunk)
		if _, err := io.ReadFull(r, buf[:8*k]); err != nil {
			return err
		}
		for i := range vals[:k] {
			vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
		}
		vals = vals[k:]
	}
	return nil
}

// Save writes the tuple set and all weights to w. It holds the write lock
// for the duration so that no learning pass is in flight.
func (n *Network) Save(w io.Writer) error {
	n.Lock()
	defer n.Unlock()
	return n.saveNoLock(w)
}

func (n *Network) saveNoLock(w io.Writer) error {
	h := xxhash.New()
	bw := bufio.NewWriterSize(io.MultiWriter(w, h), 1<<20)
	put := func(v any) error {
		return binary.Write(bw, binary.LittleEndian, v)
	}

	if _, err := bw.WriteString(fileMagic); err != nil {
		return err
	}
	if err := put(uint32(fileVersion)); err != nil {
		return err
	}
	if err := put(uint32(len(n.tuples))); err != nil {
		return err
	}
	for _, t := range n.tuples {
		if err := put(uint8(t.Arity())); err != nil {
			return err
		}
		if err := put([]board.Cell(t)); err != nil {
			return err
		}
	}
	for i := range n.weights.luts {
		l := &n.weights.luts[i]
		if l.isDense() {
			if err := put(uint8(kindDense)); err != nil {
				return err
			}
			if err := put(l.size); err != nil {
				return err
			}
			if err := writeFloats(bw, l.dense); err != nil {
				return err
			}
			continue
		}
		if err := put(uint8(kindSparse)); err != nil {
			return err
		}
		if err := put(l.size); err != nil {
			return err
		}
		if err := put(l.fill); err != nil {
			return err
		}
		if err := put(uint64(len(l.sparse))); err != nil {
			return err
		}
		keys := make([]uint64, 0, len(l.sparse))
		for k := range l.sparse {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if err := put(k); err != nil {
				return err
			}
			if err := put(l.sparse[k]); err != nil {
				return err
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, h.Sum64())
}

type decoder struct {
	src io.Reader
	r   io.Reader
	h   hash.Hash64

	// memoryFraction bounds the dense tables read so far, as in newWeights.
	memoryFraction float64
	dense          uint64
}

func newDecoder(r io.Reader, memoryFraction float64) *decoder {
	br := bufio.NewReaderSize(r, 1<<20)
	h := xxhash.New()
	return &decoder{src: br, r: io.TeeReader(br, h), h: h, memoryFraction: memoryFraction}
}

func (d *decoder) read(v any) error {
	return binary.Read(d.r, binary.LittleEndian, v)
}

func (d *decoder) header() (TupleSet, error) {
	var magic [4]byte
	if _, err := io.ReadFull(d.r, magic[:]); err != nil {
		return nil, err
	}
	if string(magic[:]) != fileMagic {
		return nil, ErrBadMagic
	}
	var version, count uint32
	if err := d.read(&version); err != nil {
		return nil, err
	}
	if version != fileVersion {
		return nil, fmt.Errorf("unsupported weight file version %d", version)
	}
	if err := d.read(&count); err != nil {
		return nil, err
	}
	ts := make(TupleSet, count)
	for i := range ts {
		var arity uint8
		if err := d.read(&arity); err != nil {
			return nil, err
		}
		if arity == 0 || arity > MaxArity {
			return nil, fmt.Errorf("%w: tuple %d has arity %d", ErrInvalidTuple, i, arity)
		}
		t := make(Tuple, arity)
		if err := d.read([]board.Cell(t)); err != nil {
			return nil, err
		}
		ts[i] = t
	}
	if err := ts.Validate(); err != nil {
		return nil, err
	}
	return ts, nil
}

// tables reads one table per tuple of ts, checking each recorded size
// against 16^arity.
func (d *decoder) tables(ts TupleSet) ([]lut, error) {
	luts := make([]lut, len(ts))
	for i, t := range ts {
		var kind uint8
		var size uint64
		if err := d.read(&kind); err != nil {
			return nil, err
		}
		if err := d.read(&size); err != nil {
			return nil, err
		}
		if size != t.Size() {
			return nil, &MismatchError{Tuple: i, What: "table size", Expected: t.Size(), Actual: size}
		}
		l := lut{size: size}
		switch kind {
		case kindDense:
			d.dense += size * 8
			if err := checkMemory(d.dense, d.memoryFraction); err != nil {
				return nil, fmt.Errorf("tuple %d: %w", i, err)
			}
			l.dense = make([]float64, size)
			if err := readFloats(d.r, l.dense); err != nil {
				return nil, err
			}
		case kindSparse:
			var count uint64
			if err := d.read(&l.fill); err != nil {
				return nil, err
			}
			if err := d.read(&count); err != nil {
				return nil, err
			}
			if count > size {
				return nil, fmt.Errorf("tuple %d: %d sparse entries for %d slots", i, count, size)
			}
			l.sparse = make(map[uint64]float64, count)
			for range count {
				var idx uint64
				var v float64
				if err := d.read(&idx); err != nil {
					return nil, err
				}
				if err := d.read(&v); err != nil {
					return nil, err
				}
				if idx >= size {
					return nil, fmt.Errorf("tuple %d: sparse index %d out of range", i, idx)
				}
				l.sparse[idx] = v
			}
		default:
			return nil, fmt.Errorf("tuple %d: unknown table kind %d", i, kind)
		}
		luts[i] = l
	}
	return luts, nil
}

func (d *decoder) verify() error {
	sum := d.h.Sum64()
	var want uint64
	if err := binary.Read(d.src, binary.LittleEndian, &want); err != nil {
		return err
	}
	if sum != want {
		return ErrChecksum
	}
	return nil
}

// Load reads a network, tuple set included, from r. Its dense tables are
// held to DefaultOptions.MemoryFraction of system memory.
func Load(r io.Reader) (*Network, error) {
	d := newDecoder(r, DefaultOptions.MemoryFraction)
	ts, err := d.header()
	if err != nil {
		return nil, err
	}
	luts, err := d.tables(ts)
	if err != nil {
		return nil, err
	}
	if err := d.verify(); err != nil {
		return nil, err
	}
	// Allocate no tables up front; the file's tables replace them.
	n, err := NewNetwork(ts, Options{DenseMaxArity: 0, MemoryFraction: DefaultOptions.MemoryFraction})
	if err != nil {
		return nil, err
	}
	n.weights.luts = luts
	return n, nil
}

// LoadWeights replaces n's weights with those in r. The file's tuple set
// must be identical to n's; any difference is a *MismatchError or a wrapped
// ErrInvalidTuple and n is left untouched.
func (n *Network) LoadWeights(r io.Reader) error {
	d := newDecoder(r, n.memoryFraction)
	ts, err := d.header()
	if err != nil {
		return err
	}
	if len(ts) != len(n.tuples) {
		return &MismatchError{Tuple: -1, What: "tuple count",
			Expected: uint64(len(n.tuples)), Actual: uint64(len(ts))}
	}
	for i := range ts {
		if ts[i].Arity() != n.tuples[i].Arity() {
			return &MismatchError{Tuple: i, What: "table size",
				Expected: n.tuples[i].Size(), Actual: ts[i].Size()}
		}
		if !slices.Equal(ts[i], n.tuples[i]) {
			return fmt.Errorf("%w: tuple %d: expected cells %v, file has %v",
				ErrInvalidTuple, i, n.tuples[i], ts[i])
		}
	}
	luts, err := d.tables(n.tuples)
	if err != nil {
		return err
	}
	if err := d.verify(); err != nil {
		return err
	}
	n.Lock()
	n.weights.luts = luts
	n.Unlock()
	return nil
}

// SaveFile writes the network to path through a temporary file, so that a
// crash mid-write leaves the previous file intact.
func (n *Network) SaveFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := n.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("saved-network")
	return nil
}

func LoadFile(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	n, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("tuples", len(n.tuples)).Msg("loaded-network")
	return n, nil
}

func (n *Network) LoadWeightsFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := n.LoadWeights(f); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	log.Info().Str("path", path).Msg("loaded-weights")
	return nil
}
