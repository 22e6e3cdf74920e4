package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileErrorSink(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auth.log.errors")
	sink := NewFileErrorSink(path)

	require.NoError(t, sink.Replace([]string{"garbage", "more garbage"}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "garbage\nmore garbage\n", string(data))

	require.NoError(t, sink.Replace([]string{"only"}))
	require.NoError(t, sink.Append("appended"))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "only\nappended\n", string(data))

	require.NoError(t, sink.Replace(nil))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
