package automatic

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jgc10/2048-ai/stats"
)

// AnalyzeLogFile reads a game log written by a Trainer and accumulates its
// rows.
func AnalyzeLogFile(path string) (*stats.Games, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return AnalyzeLog(f)
}

func AnalyzeLog(r io.Reader) (*stats.Games, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	g := stats.NewGames()
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if record[0] == "game" {
			continue
		}
		// game,seed,score,maxtile,moves,...
		if len(record) < 5 {
			return nil, fmt.Errorf("game log line %d: %d fields", line, len(record))
		}
		var nums [3]int
		for i := range nums {
			nums[i], err = strconv.Atoi(record[2+i])
			if err != nil {
				return nil, fmt.Errorf("game log line %d: %w", line, err)
			}
		}
		g.Add(nums[0], nums[1], nums[2])
	}
	return g, nil
}
