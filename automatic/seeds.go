package automatic

import (
	"bufio"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"lukechampine.com/frand"
)

// GenerateSeeds creates n random 32-byte game seeds.
func GenerateSeeds(n int) [][32]byte {
	seeds := make([][32]byte, n)
	for i := range seeds {
		seeds[i] = frand.Entropy256()
	}
	return seeds
}

// LoadOrCreateSeeds loads the seed file at path, or creates it with n fresh
// seeds when it does not exist. Replaying a seed file against a fixed model
// replays the same games.
func LoadOrCreateSeeds(path string, n int) ([][32]byte, error) {
	seeds, err := LoadSeeds(path)
	if err == nil {
		log.Info().Str("path", path).Int("seeds", len(seeds)).Msg("loaded-seeds")
		return seeds, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	seeds = GenerateSeeds(n)
	if err := SaveSeeds(seeds, path); err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int("seeds", n).Msg("created-seeds")
	return seeds, nil
}

const seedHeader = "# 2048 game seeds, one per game (base64 URL-safe, 32 bytes each)\n"

// SaveSeeds writes one base64 seed per line.
func SaveSeeds(seeds [][32]byte, path string) error {
	var sb strings.Builder
	sb.WriteString(seedHeader)
	for _, seed := range seeds {
		sb.WriteString(base64.RawURLEncoding.EncodeToString(seed[:]))
		sb.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("writing seed file: %w", err)
	}
	return nil
}

// LoadSeeds reads a file written by SaveSeeds. Blank lines and lines
// starting with # are skipped.
func LoadSeeds(path string) ([][32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	var seeds [][32]byte
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		raw, err := base64.RawURLEncoding.DecodeString(text)
		if err != nil {
			return nil, fmt.Errorf("seed file line %d: %w", line, err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("seed file line %d: %d bytes, expected 32", line, len(raw))
		}
		seeds = append(seeds, [32]byte(raw))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return seeds, nil
}
