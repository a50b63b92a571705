package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// tsPacketSize is the MPEG transport stream packet length.
const tsPacketSize = 188

// WriteRecording creates a placeholder transport stream of packets null
// packets at path. Preflight only needs a readable file; decoding is
// replaced by a synthetic source in tests.
func WriteRecording(t testing.TB, path string, packets int) {
	t.Helper()

	if packets <= 0 {
		packets = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	packet := make([]byte, tsPacketSize)
	// Sync byte, then PID 0x1FFF (null packet) with payload only.
	packet[0], packet[1], packet[2], packet[3] = 0x47, 0x1f, 0xff, 0x10
	for i := 4; i < tsPacketSize; i++ {
		packet[i] = 0xff
	}
	data := make([]byte, 0, packets*tsPacketSize)
	for range packets {
		data = append(data, packet...)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
