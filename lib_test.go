package ole

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/asalih/go-ole/internal/oletest"
)

func TestOpenFile(t *testing.T) {
	img := oletest.Build(oletest.Options{}, sampleTree()...)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/docs/sample.msi", img.Data, 0644))

	cf, err := OpenFile(fs, "/docs/sample.msi")
	require.NoError(t, err)
	assert.Equal(t, V3, cf.Header.Version)

	_, err = OpenFile(fs, "/docs/missing.msi")
	assert.Error(t, err)
}

func TestOpenReader(t *testing.T) {
	img := oletest.Build(oletest.Options{Version: 4}, sampleTree()...)

	cf, err := OpenReader(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, V4, cf.Header.Version)

	slice, err := cf.OpenStream("/dir/inner")
	require.NoError(t, err)
	got, err := io.ReadAll(slice)
	require.NoError(t, err)
	assert.Equal(t, []byte("inner data"), got)
}

func TestOpenTruncated(t *testing.T) {
	img := oletest.Build(oletest.Options{Version: 4}, sampleTree()...)

	_, err := Open(img.Data[:HEADER_LEN])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBadSizeValue)

	var fieldErr *FieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "file size", fieldErr.Field)
}

func TestOpenTruncatedBody(t *testing.T) {
	img := oletest.Build(oletest.Options{}, sampleTree()...)

	// Cut the file in the middle of the large stream.
	end := (int(img.Starts["/large"]) + 4) * img.SectorLen
	_, err := Open(img.Data[:end])
	assert.ErrorIs(t, err, ErrBadSizeValue)
}

func TestOpenLogsStages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	img := oletest.Build(oletest.Options{}, sampleTree()...)

	cf, err := Open(img.Data, WithLogger(zap.New(core)))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, logs.Len(), 3)

	_, err = cf.OpenStream("/small")
	require.NoError(t, err)
	assert.NotEmpty(t, logs.FilterMessageSnippet("open entry").All())
}

func TestWithNilLogger(t *testing.T) {
	img := oletest.Build(oletest.Options{}, sampleTree()...)

	_, err := Open(img.Data, WithLogger(nil))
	assert.NoError(t, err)
}

func TestWalk(t *testing.T) {
	img := oletest.Build(oletest.Options{}, sampleTree()...)

	cf, err := Open(img.Data)
	require.NoError(t, err)

	var paths []string
	err = cf.Walk(func(entry *Entry) error {
		paths = append(paths, entry.Path)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/dir", "/dir/inner", "/large", "/small"}, paths)

	stop := errors.New("stop")
	visited := 0
	err = cf.Walk(func(entry *Entry) error {
		visited++
		if entry.Path == "/dir" {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, visited)
}

func TestPath(t *testing.T) {
	img := oletest.Build(oletest.Options{}, sampleTree()...)

	cf, err := Open(img.Data)
	require.NoError(t, err)

	for path, id := range img.IDs {
		got, err := cf.Path(id)
		require.NoError(t, err)
		assert.Equal(t, path, got)
	}

	_, err = cf.Path(uint32(len(img.IDs)))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = cf.Path(1000)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStat(t *testing.T) {
	img := oletest.Build(oletest.Options{}, sampleTree()...)

	cf, err := Open(img.Data)
	require.NoError(t, err)

	root, err := cf.Stat("/")
	require.NoError(t, err)
	assert.True(t, root.IsStorage())
	assert.Equal(t, "root", root.Type)
	assert.Equal(t, "/", root.Path)

	dir, err := cf.Stat("DIR/")
	require.NoError(t, err)
	assert.True(t, dir.IsStorage())
	assert.False(t, dir.IsStream())
	assert.Equal(t, "/DIR", dir.Path)

	large, err := cf.Stat("/large")
	require.NoError(t, err)
	assert.True(t, large.IsStream())
	assert.Equal(t, uint64(5000), large.StreamLen)
	assert.Equal(t, "stream /large (5000 bytes)", large.String())

	_, err = cf.Stat("/dir/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
