package ntuple

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	"github.com/pbnjay/memory"

	"github.com/jgc10/2048-ai/board"
	"github.com/jgc10/2048-ai/config"
)

func savedBytes(t *testing.T, n *Network) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := n.Save(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSaveLoadRoundTrip(t *testing.T) {
	is := is.New(t)
	rng := testRNG("persist-round-trip")
	boards := make([]board.Board, 20)
	for i := range boards {
		boards[i] = randomBoard(rng)
	}
	n := newTestNetwork(t, smallLayout, Options{DenseMaxArity: 3, InitWeight: 0.125})
	randomize(n, rng, boards)
	data := savedBytes(t, n)

	loaded, err := Load(bytes.NewReader(data))
	is.NoErr(err)
	is.True(loaded.Tuples().Equal(smallLayout))
	for i := range smallLayout {
		is.Equal(loaded.Weights().Dense(i), n.Weights().Dense(i))
	}
	for _, b := range boards {
		is.Equal(loaded.Evaluate(b), n.Evaluate(b))
	}
	is.Equal(loaded.Evaluate(board.Board(0)), n.Evaluate(board.Board(0))) // fill survives
	is.Equal(savedBytes(t, loaded), data)

	fresh := newTestNetwork(t, smallLayout, Options{DenseMaxArity: 3})
	is.NoErr(fresh.LoadWeights(bytes.NewReader(data)))
	is.Equal(savedBytes(t, fresh), data)
}

func TestLoadWeightsMismatch(t *testing.T) {
	is := is.New(t)
	pair := mustTupleSet([][][2]int{{{0, 0}, {0, 1}}})
	data := savedBytes(t, newTestNetwork(t, pair, Options{DenseMaxArity: 4}))

	triple := newTestNetwork(t, mustTupleSet([][][2]int{{{0, 0}, {0, 1}, {0, 2}}}),
		Options{DenseMaxArity: 4})
	err := triple.LoadWeights(bytes.NewReader(data))
	var mm *MismatchError
	is.True(errors.As(err, &mm))
	is.Equal(mm.Tuple, 0)
	is.Equal(mm.Expected, uint64(4096))
	is.Equal(mm.Actual, uint64(256))

	two := newTestNetwork(t, mustTupleSet([][][2]int{{{0, 0}, {0, 1}}, {{1, 0}, {1, 1}}}),
		Options{DenseMaxArity: 4})
	err = two.LoadWeights(bytes.NewReader(data))
	is.True(errors.As(err, &mm))
	is.Equal(mm.Tuple, -1)
	is.Equal(mm.Expected, uint64(2))
	is.Equal(mm.Actual, uint64(1))

	moved := newTestNetwork(t, mustTupleSet([][][2]int{{{0, 0}, {1, 0}}}), Options{DenseMaxArity: 4})
	err = moved.LoadWeights(bytes.NewReader(data))
	is.True(errors.Is(err, ErrInvalidTuple))
}

func TestLoadCorrupt(t *testing.T) {
	is := is.New(t)
	n := newTestNetwork(t, mustTupleSet([][][2]int{{{0, 0}, {0, 1}}}), Options{DenseMaxArity: 4})
	n.Weights().Set(0, 7, 1.5)
	data := savedBytes(t, n)

	flipped := bytes.Clone(data)
	flipped[len(flipped)-20] ^= 0x01
	_, err := Load(bytes.NewReader(flipped))
	is.True(errors.Is(err, ErrChecksum))

	_, err = Load(bytes.NewReader(data[:len(data)-100]))
	is.True(err != nil)

	bad := bytes.Clone(data)
	copy(bad, "XXXX")
	_, err = Load(bytes.NewReader(bad))
	is.True(errors.Is(err, ErrBadMagic))
}

func TestLoadMemoryBudget(t *testing.T) {
	if memory.TotalMemory() == 0 {
		t.Skip("total memory unknown on this platform")
	}
	is := is.New(t)
	data := savedBytes(t, newTestNetwork(t, smallLayout, Options{DenseMaxArity: 4}))

	tight := newTestNetwork(t, smallLayout, Options{DenseMaxArity: 0, MemoryFraction: 1e-9})
	err := tight.LoadWeights(bytes.NewReader(data))
	is.True(errors.Is(err, ErrTooLarge))
	is.True(!tight.Weights().Dense(0)) // left untouched

	roomy := newTestNetwork(t, smallLayout, Options{DenseMaxArity: 0, MemoryFraction: 0.75})
	is.NoErr(roomy.LoadWeights(bytes.NewReader(data)))
	is.True(roomy.Weights().Dense(0))
}

func TestSaveFileAndConfig(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	layoutPath := filepath.Join(dir, "small.yaml")
	modelPath := filepath.Join(dir, "small.ntn")

	f, err := os.Create(layoutPath)
	is.NoErr(err)
	is.NoErr(WriteLayout(f, "small", smallLayout))
	is.NoErr(f.Close())

	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigLayoutFile, layoutPath)
	cfg.Set(config.ConfigModelPath, modelPath)
	cfg.Set(config.ConfigDenseMaxArity, 3)
	cfg.Set(config.ConfigMemoryFraction, 0)

	n, err := NewFromConfig(cfg) // no model file yet
	is.NoErr(err)
	is.Equal(n.Weights().Get(0, 0x1234), 0.0)
	n.Weights().Set(0, 0x1234, 2.0)
	n.Weights().Set(3, 0x321, -1.0)
	is.NoErr(n.SaveFile(modelPath))

	_, err = os.Stat(modelPath + ".tmp")
	is.True(errors.Is(err, os.ErrNotExist))

	again, err := NewFromConfig(cfg)
	is.NoErr(err)
	is.Equal(again.Weights().Get(0, 0x1234), 2.0)
	is.Equal(again.Weights().Get(3, 0x321), -1.0)

	byFile, err := LoadFile(modelPath)
	is.NoErr(err)
	is.True(byFile.Tuples().Equal(smallLayout))

	cfg.Set(config.ConfigLayoutFile, "")
	cfg.Set(config.ConfigLayout, "reference")
	_, err = NewFromConfig(cfg) // reference layout against a small-layout model
	var mm *MismatchError
	is.True(errors.As(err, &mm))
}

func TestLoadFromConfig(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	layoutPath := filepath.Join(dir, "small.yaml")
	modelPath := filepath.Join(dir, "small.ntn")

	f, err := os.Create(layoutPath)
	is.NoErr(err)
	is.NoErr(WriteLayout(f, "small", smallLayout))
	is.NoErr(f.Close())

	cfg := config.DefaultConfig()
	cfg.Set(config.ConfigLayoutFile, layoutPath)

	_, err = LoadFromConfig(cfg)
	is.True(errors.Is(err, ErrNoModel))

	cfg.Set(config.ConfigModelPath, modelPath)
	_, err = LoadFromConfig(cfg) // file not written yet
	is.True(errors.Is(err, fs.ErrNotExist))

	trained := newTestNetwork(t, smallLayout, Options{DenseMaxArity: 4})
	trained.Weights().Set(0, 0, 123)
	is.NoErr(trained.SaveFile(modelPath))

	n, err := LoadFromConfig(cfg)
	is.NoErr(err)
	is.Equal(n.Weights().Get(0, 0), 123.0)
	is.True(n.Weights().Dense(0))
}
