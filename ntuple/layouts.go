package ntuple

import (
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

// Reference is the 8 x 6-tuple layout.
var Reference = mustTupleSet([][][2]int{
	{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}},
	{{0, 1}, {0, 2}, {1, 1}, {1, 2}, {2, 1}, {3, 1}},
	{{0, 0}, {0, 1}, {0, 2}, {0, 3}, {1, 0}, {1, 1}},
	{{0, 0}, {0, 1}, {1, 1}, {1, 2}, {1, 3}, {2, 2}},
	{{0, 0}, {0, 1}, {0, 2}, {1, 1}, {2, 1}, {2, 2}},
	{{0, 0}, {0, 1}, {1, 1}, {2, 1}, {3, 1}, {3, 2}},
	{{0, 0}, {0, 1}, {1, 1}, {2, 0}, {2, 1}, {3, 1}},
	{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 2}, {2, 2}},
})

// Extended is the 10 x 8-tuple layout: row pairs, column pairs, L-shaped
// corners and diagonal snakes. Its tables are too large to hold densely.
var Extended = mustTupleSet([][][2]int{
	{{0, 0}, {0, 1}, {0, 2}, {0, 3}, {1, 0}, {1, 1}, {1, 2}, {1, 3}},
	{{2, 0}, {2, 1}, {2, 2}, {2, 3}, {3, 0}, {3, 1}, {3, 2}, {3, 3}},

	{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {0, 1}, {1, 1}, {2, 1}, {3, 1}},
	{{0, 2}, {1, 2}, {2, 2}, {3, 2}, {0, 3}, {1, 3}, {2, 3}, {3, 3}},

	{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {2, 0}, {3, 0}, {1, 1}, {2, 1}},
	{{0, 0}, {1, 0}, {2, 0}, {3, 0}, {3, 1}, {3, 2}, {2, 1}, {1, 1}},
	{{0, 3}, {0, 2}, {0, 1}, {1, 3}, {2, 3}, {3, 3}, {1, 2}, {2, 2}},
	{{3, 3}, {2, 3}, {1, 3}, {0, 3}, {3, 2}, {3, 1}, {2, 2}, {1, 2}},

	{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {1, 2}, {2, 1}, {2, 2}, {3, 2}},
	{{0, 3}, {0, 2}, {1, 3}, {1, 2}, {1, 1}, {2, 2}, {2, 1}, {3, 1}},
})

// Experimental combines both layouts in a single network.
var Experimental = slices.Concat(Reference, Extended)

var layouts = map[string]TupleSet{
	"reference":    Reference,
	"extended":     Extended,
	"experimental": Experimental,
}

// LayoutNames lists the built-in layouts.
func LayoutNames() []string {
	names := make([]string, 0, len(layouts))
	for n := range layouts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Layout returns a built-in layout by name.
func Layout(name string) (TupleSet, error) {
	ts, ok := layouts[name]
	if !ok {
		return nil, fmt.Errorf("unknown layout %q (have %v)", name, LayoutNames())
	}
	return ts, nil
}

// layoutFile is the YAML form of a tuple set:
//
//	name: corners
//	tuples:
//	  - [[0, 0], [0, 1], [1, 0], [1, 1]]
type layoutFile struct {
	Name   string     `yaml:"name"`
	Tuples [][][2]int `yaml:"tuples"`
}

// ReadLayout parses a YAML tuple layout.
func ReadLayout(r io.Reader) (string, TupleSet, error) {
	var lf layoutFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&lf); err != nil {
		return "", nil, fmt.Errorf("decoding layout: %w", err)
	}
	ts, err := NewTupleSet(lf.Tuples)
	if err != nil {
		return "", nil, err
	}
	return lf.Name, ts, nil
}

func LoadLayoutFile(path string) (string, TupleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()
	return ReadLayout(f)
}

// WriteLayout writes ts as a YAML layout.
func WriteLayout(w io.Writer, name string, ts TupleSet) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(layoutFile{Name: name, Tuples: ts.Coords()})
}
