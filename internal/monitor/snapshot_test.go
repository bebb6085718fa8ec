package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSnapshot = `Gathering information...
{
  "time": "2026-10-19T09:12:44.120391",
  "host_info": {"OS": "Linux", "Distro": "Ubuntu 22.04"},
  "device_info": [
    {
      "board_info": {"bus_id": "0000:01:00.0", "board_type": "n150 L", "board_id": "100018611902010"},
      "telemetry": {"voltage": "0.80", "asic_temperature": " 45.1", "power": " 18.0"}
    },
    {
      "board_info": {"bus_id": "0000:02:00.0", "board_type": "n150 L", "board_id": "100018611902011"},
      "telemetry": {"asic_temperature": 47.5, "power": "20.5"}
    },
    {
      "board_info": {"bus_id": "0000:03:00.0", "board_type": "p150a", "board_id": "100018611902012"},
      "telemetry": {}
    }
  ]
}`

func TestParseSnapshot(t *testing.T) {
	snap, err := ParseSnapshot(sampleSnapshot)
	require.NoError(t, err)
	require.Len(t, snap.Boards, 3)

	assert.Equal(t, "2026-10-19T09:12:44.120391", snap.Time)
	assert.Equal(t, "0000:01:00.0", snap.Boards[0].BusID)
	assert.InDelta(t, 45.1, snap.Boards[0].Temperature, 0.001)
	assert.InDelta(t, 18.0, snap.Boards[0].Power, 0.001)
	assert.InDelta(t, 47.5, snap.Boards[1].Temperature, 0.001)
	assert.Zero(t, snap.Boards[2].Temperature)
	assert.Equal(t, []string{"n150 L", "p150a"}, snap.BoardTypes())
}

func TestParseSnapshotErrors(t *testing.T) {
	_, err := ParseSnapshot("tt-smi: command not found")
	assert.Error(t, err)

	_, err = ParseSnapshot(`{"device_info": [`)
	assert.Error(t, err)

	_, err = ParseSnapshot(`{"time": "x", "device_info": []}`)
	assert.ErrorIs(t, err, ErrNoDevices)
}
