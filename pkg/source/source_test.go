package source_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-dev/weft/pkg/source"
	"github.com/weft-dev/weft/pkg/weft"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

func startSource(t *testing.T, f *source.FileSource) {
	t.Helper()
	require.NoError(t, f.Start(context.Background()))
	t.Cleanup(f.Stop)
}

func TestFileSourceInitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greeting.txt")
	writeFile(t, path, "hello\n")

	sig := weft.NewSignal("")
	f := source.NewFileSource(path, sig, source.WithDecoder(source.DecodeRaw))
	startSource(t, f)

	// The initial load happens inside Start.
	assert.Equal(t, "hello", sig.Get())
	assert.Equal(t, uint64(1), f.Applied())
}

func TestFileSourceAppliesWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "count.json")
	writeFile(t, path, "1")

	sig := weft.NewSignal(0)
	f := source.NewFileSource(path, sig, source.WithDebounce(time.Millisecond))
	startSource(t, f)

	writeFile(t, path, "2")

	require.Eventually(t, func() bool {
		return sig.Peek() == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFileSourceCoalescesBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "count.json")
	writeFile(t, path, "0")

	sig := weft.NewSignal(0)
	f := source.NewFileSource(path, sig, source.WithDebounce(50*time.Millisecond))
	startSource(t, f)

	for i := 1; i <= 5; i++ {
		writeFile(t, path, "9")
	}

	require.Eventually(t, func() bool {
		return sig.Peek() == 9
	}, 2*time.Second, 5*time.Millisecond)

	// One debounced apply for the burst, plus the initial load.
	assert.LessOrEqual(t, f.Applied(), uint64(3))
}

func TestFileSourceMalformedKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value.json")
	writeFile(t, path, "41")

	sig := weft.NewSignal(0)
	f := source.NewFileSource(path, sig, source.WithDebounce(time.Millisecond))
	startSource(t, f)
	require.Equal(t, 41, sig.Get())

	errsBefore := f.Errors()
	writeFile(t, path, "{broken")

	require.Eventually(t, func() bool {
		return f.Errors() > errsBefore
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 41, sig.Peek(), "bad contents must not clobber the last good value")

	writeFile(t, path, "42")
	require.Eventually(t, func() bool {
		return sig.Peek() == 42
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFileSourceTypeMismatchKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value.json")
	writeFile(t, path, "41")

	sig := weft.NewSignal(0)
	f := source.NewFileSource(path, sig, source.WithDebounce(time.Millisecond))
	startSource(t, f)

	errsBefore := f.Errors()
	writeFile(t, path, `"not a number"`)

	require.Eventually(t, func() bool {
		return f.Errors() > errsBefore
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 41, sig.Peek())
}

func TestFileSourceYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.yaml")
	writeFile(t, path, "- alpha\n- beta\n")

	sig := weft.NewSignal([]string(nil))
	f := source.NewFileSource(path, sig, source.WithDecoder(source.DecodeYAML))
	startSource(t, f)

	assert.Equal(t, []string{"alpha", "beta"}, sig.Get())
}

func TestFileSourceAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	writeFile(t, path, "1")

	sig := weft.NewSignal(0)
	f := source.NewFileSource(path, sig, source.WithDebounce(time.Millisecond))
	startSource(t, f)

	// Editors and config managers write a temp file and rename it over the
	// target. The directory watch must survive that.
	tmp := filepath.Join(dir, ".config.json.tmp")
	writeFile(t, tmp, "2")
	require.NoError(t, os.Rename(tmp, path))

	require.Eventually(t, func() bool {
		return sig.Peek() == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFileSourceMissingFileAppearsLater(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late.json")

	sig := weft.NewSignal(0)
	f := source.NewFileSource(path, sig, source.WithDebounce(time.Millisecond))
	startSource(t, f)

	assert.GreaterOrEqual(t, f.Errors(), uint64(1), "initial load of a missing file counts as an error")
	assert.Zero(t, f.Applied())

	writeFile(t, path, "7")

	require.Eventually(t, func() bool {
		return sig.Peek() == 7
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFileSourcePropagatesThroughGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "limit.json")
	writeFile(t, path, "10")

	sig := weft.NewSignal(0)
	doubled := weft.NewMemo(func() int { return sig.Get() * 2 })

	f := source.NewFileSource(path, sig, source.WithDebounce(time.Millisecond))
	startSource(t, f)
	require.Equal(t, 20, doubled.Get())

	writeFile(t, path, "25")

	require.Eventually(t, func() bool {
		return doubled.Peek() == 50
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFileSourceStartTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.json")
	writeFile(t, path, "1")

	f := source.NewFileSource(path, weft.NewSignal(0))
	startSource(t, f)

	err := f.Start(context.Background())
	assert.ErrorIs(t, err, source.ErrAlreadyStarted)
}

func TestFileSourceStopIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.json")
	writeFile(t, path, "1")

	f := source.NewFileSource(path, weft.NewSignal(0))
	require.NoError(t, f.Start(context.Background()))

	f.Stop()
	f.Stop()
}
