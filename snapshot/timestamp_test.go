package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStampFormat(t *testing.T) {
	s := Stamp{Time: time.Date(2025, 7, 17, 15, 27, 1, 767_400_000, time.UTC)}
	assert.Equal(t, "20250717_152701_767", s.String())
	assert.Equal(t, "2025-07-17 15:27:01 UTC", s.Display())

	parsed, err := ParseStamp(s.String())
	require.NoError(t, err)
	assert.Equal(t, s.Time.Truncate(time.Millisecond), parsed.Time)
}

func TestStampUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	s := Stamp{Time: time.Date(2025, 7, 17, 17, 27, 1, 0, loc)}
	assert.Equal(t, "20250717_152701_000", s.String())
}

func TestParseStampRejectsGarbage(t *testing.T) {
	for _, v := range []string{"", "20250717_152701", "20250717-152701-767", "20251317_152701_767", "20250717_152701_abc"} {
		_, err := ParseStamp(v)
		assert.Error(t, err, v)
	}
}

func TestClockStrictlyIncreasing(t *testing.T) {
	fixed := time.Date(2025, 7, 17, 15, 27, 1, 0, time.UTC)
	c := newClockAt(func() time.Time { return fixed })

	a, b, d := c.Next(), c.Next(), c.Next()
	assert.Equal(t, "20250717_152701_000", a.String())
	assert.Equal(t, "20250717_152701_001", b.String())
	assert.Equal(t, "20250717_152701_002", d.String())
}

func TestClockConcurrentStampsAreDistinct(t *testing.T) {
	c := NewClock()
	const n = 200

	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := c.Next().String()
			mu.Lock()
			seen[s] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
}

func TestLayout(t *testing.T) {
	stamp := Stamp{Time: time.Date(2025, 7, 17, 15, 27, 1, 767_000_000, time.UTC)}
	l := NewLayout("out", stamp)

	assert.Equal(t, filepath.Join("out", "20250717_152701_767_code.go"), l.Code())
	assert.Equal(t, filepath.Join("out", "20250717_152701_767_snapshot.html"), l.HTML())
	assert.Equal(t, filepath.Join("out", "20250717_152701_767_plot.png"), l.Plot(0))
	assert.Equal(t, filepath.Join("out", "20250717_152701_767_plot_2.png"), l.Plot(1))
	assert.Equal(t, filepath.Join("out", "20250717_152701_767_plot_3.png"), l.Plot(2))
}

func TestOutputDir(t *testing.T) {
	base := t.TempDir()

	dir, err := OutputDir(base, "random walk.go")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "snapshot_random-walk"), dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	_, err = OutputDir(blocker, "x")
	assert.Error(t, err)
}

// sampleFunc is captured by TestSourceOf.
func sampleFunc() int {
	return 42
}

func TestSourceOf(t *testing.T) {
	src, err := SourceOf(sampleFunc)
	require.NoError(t, err)
	assert.Equal(t, "timestamp_test.go", src.FileName())
	assert.Equal(t, "sampleFunc", src.ShortFunction())
	assert.True(t, strings.HasPrefix(src.Text, "// sampleFunc is captured by TestSourceOf."), src.Text)
	assert.Contains(t, src.Text, "return 42")
	assert.NotContains(t, src.Text, "TestSourceOf(t")
}

func TestSourceOfLiteral(t *testing.T) {
	fn := func() string {
		return "inside the literal"
	}
	src, err := SourceOf(fn)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(src.Text), "func() string {"), src.Text)
	assert.Contains(t, src.Text, "inside the literal")
	assert.NotContains(t, src.Text, "SourceOf(fn)")
}

func TestSourceOfNonFunction(t *testing.T) {
	_, err := SourceOf(42)
	assert.ErrorIs(t, err, ErrNoSource)

	var nilFn func()
	_, err = SourceOf(nilFn)
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestCallerSource(t *testing.T) {
	src, err := CallerSource(0)
	require.NoError(t, err)
	assert.Equal(t, "TestCallerSource", src.ShortFunction())
	assert.Contains(t, src.Text, "func TestCallerSource(t *testing.T) {")
}
