package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_WritesRequestedProfiles(t *testing.T) {
	// Given a session asking for every profile
	dir := t.TempDir()
	paths := Paths{
		CPU:   filepath.Join(dir, "cpu.prof"),
		Heap:  filepath.Join(dir, "heap.prof"),
		Trace: filepath.Join(dir, "trace.out"),
	}
	s := NewSession(paths)

	// When running some work between Start and Stop
	require.NoError(t, s.Start())
	sum := 0
	for i := range 1_000_000 {
		sum += i
	}
	_ = sum
	require.NoError(t, s.Stop())

	// Then each file exists and is non-empty
	for _, p := range []string{paths.CPU, paths.Heap, paths.Trace} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size(), p)
	}
	assert.NoError(t, s.Stop(), "second stop is a no-op")
}

func TestSession_NothingRequested(t *testing.T) {
	s := NewSession(Paths{})

	assert.False(t, Paths{}.Enabled())
	require.NoError(t, s.Start())
	assert.NoError(t, s.Stop())
}

func TestSession_StartFailsOnBadPath(t *testing.T) {
	s := NewSession(Paths{CPU: filepath.Join(t.TempDir(), "missing", "cpu.prof")})

	assert.Error(t, s.Start())
}

func TestHeapInUse(t *testing.T) {
	assert.Positive(t, HeapInUse())
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 B"},
		{2048, "2.00 KB"},
		{5 * 1024 * 1024, "5.00 MB"},
		{3 * 1024 * 1024 * 1024, "3.00 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.in))
	}
}
