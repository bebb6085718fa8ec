package monitor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrNoDevices = errors.New("no tenstorrent devices reported")

type Board struct {
	BusID       string
	BoardType   string
	BoardID     string
	Temperature float64
	Power       float64
}

type Snapshot struct {
	Time   string
	Boards []Board
}

// ParseSnapshot reads the JSON printed by `tt-smi -s`. Text before the first
// '{' is ignored since tt-smi may print banners on older releases.
func ParseSnapshot(raw string) (Snapshot, error) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return Snapshot{}, fmt.Errorf("tt-smi snapshot: no JSON object in output")
	}
	doc := raw[start:]
	if !gjson.Valid(doc) {
		return Snapshot{}, fmt.Errorf("tt-smi snapshot: invalid JSON")
	}
	root := gjson.Parse(doc)

	snap := Snapshot{Time: root.Get("time").String()}
	root.Get("device_info").ForEach(func(_, dev gjson.Result) bool {
		snap.Boards = append(snap.Boards, Board{
			BusID:       dev.Get("board_info.bus_id").String(),
			BoardType:   strings.TrimSpace(dev.Get("board_info.board_type").String()),
			BoardID:     dev.Get("board_info.board_id").String(),
			Temperature: parseReading(dev.Get("telemetry.asic_temperature")),
			Power:       parseReading(dev.Get("telemetry.power")),
		})
		return true
	})
	if len(snap.Boards) == 0 {
		return snap, ErrNoDevices
	}
	return snap, nil
}

// BoardTypes returns the distinct board types in report order.
func (s Snapshot) BoardTypes() []string {
	seen := make(map[string]bool, len(s.Boards))
	out := make([]string, 0, len(s.Boards))
	for _, b := range s.Boards {
		if b.BoardType == "" || seen[b.BoardType] {
			continue
		}
		seen[b.BoardType] = true
		out = append(out, b.BoardType)
	}
	return out
}

// tt-smi reports telemetry as padded strings, e.g. " 45.1".
func parseReading(r gjson.Result) float64 {
	if r.Type == gjson.Number {
		return r.Float()
	}
	return gjson.Parse(strings.TrimSpace(r.String())).Float()
}
