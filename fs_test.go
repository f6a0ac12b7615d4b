package ole

import (
	"io"
	"os"
	"testing"
	"testing/fstest"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asalih/go-ole/internal/oletest"
)

func openFs(t *testing.T, nodes ...*oletest.Node) afero.Fs {
	t.Helper()

	img := oletest.Build(oletest.Options{}, nodes...)
	cf, err := Open(img.Data, WithValidation(ValidationStrict))
	require.NoError(t, err)

	return NewFs(cf)
}

func fsTree() []*oletest.Node {
	inner := oletest.Stream("inner", []byte("inner data"))
	inner.Modified = 132000000000000000

	return []*oletest.Node{
		oletest.Stream("empty", nil),
		oletest.Stream("small", pattern(300)),
		oletest.Stream("large", pattern(9000)),
		oletest.Storage("dir", inner, oletest.Storage("nested", oletest.Stream("leaf", pattern(64)))),
	}
}

func TestFsIOFS(t *testing.T) {
	fs := openFs(t, fsTree()...)

	err := fstest.TestFS(afero.NewIOFS(fs), "empty", "small", "large", "dir/inner", "dir/nested/leaf")
	require.NoError(t, err)
}

func TestFsReadFile(t *testing.T) {
	fs := openFs(t, fsTree()...)

	got, err := afero.ReadFile(fs, "/large")
	require.NoError(t, err)
	assert.Equal(t, pattern(9000), got)

	got, err = afero.ReadFile(fs, "/DIR/Inner")
	require.NoError(t, err)
	assert.Equal(t, []byte("inner data"), got)

	got, err = afero.ReadFile(fs, "/empty")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFsStat(t *testing.T) {
	fs := openFs(t, fsTree()...)

	info, err := fs.Stat("/dir")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "dir", info.Name())
	assert.Equal(t, os.ModeDir|0555, info.Mode())

	info, err = fs.Stat("/dir/inner")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
	assert.Equal(t, int64(10), info.Size())
	assert.Equal(t, os.FileMode(0444), info.Mode())
	assert.Equal(t, FiletimeToTime(132000000000000000), info.ModTime())

	dirEntry, ok := info.Sys().(*DirEntry)
	require.True(t, ok)
	assert.Equal(t, "inner", dirEntry.Name)

	_, err = fs.Stat("/nope")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = fs.Stat("../small")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFsReaddir(t *testing.T) {
	fs := openFs(t, fsTree()...)

	f, err := fs.Open("/")
	require.NoError(t, err)
	defer f.Close()

	first, err := f.Readdir(2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "dir", first[0].Name())
	assert.Equal(t, "empty", first[1].Name())

	rest, err := f.Readdirnames(-1)
	require.NoError(t, err)
	assert.Equal(t, []string{"large", "small"}, rest)

	_, err = f.Readdir(1)
	assert.Equal(t, io.EOF, err)

	names, err := afero.ReadDir(fs, "/dir")
	require.NoError(t, err)
	require.Len(t, names, 2)
	assert.Equal(t, "inner", names[0].Name())
	assert.True(t, names[1].IsDir())
}

func TestFsFileReads(t *testing.T) {
	fs := openFs(t, fsTree()...)

	f, err := fs.Open("/small")
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "small", f.Name())

	buf := make([]byte, 10)
	n, err := f.ReadAt(buf, 290)
	require.NoError(t, err)
	assert.Equal(t, pattern(300)[290:], buf[:n])

	off, err := f.Seek(-5, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(295), off)

	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, pattern(300)[295:], rest)

	_, err = f.Readdir(-1)
	assert.Error(t, err)

	require.NoError(t, f.Close())
	_, err = f.Read(buf)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestFsDirectoryRead(t *testing.T) {
	fs := openFs(t, fsTree()...)

	f, err := fs.Open("/dir")
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestFsEmptyFile(t *testing.T) {
	fs := openFs(t, fsTree()...)

	f, err := fs.Open("/empty")
	require.NoError(t, err)
	defer f.Close()

	n, err := f.Read(make([]byte, 4))
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)

	n, err = f.ReadAt(make([]byte, 4), 0)
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)

	off, err := f.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	assert.Zero(t, off)
}

func TestFsReadOnly(t *testing.T) {
	fs := openFs(t, fsTree()...)

	_, err := fs.Create("/new")
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.ErrorIs(t, fs.Mkdir("/new", 0755), os.ErrPermission)
	assert.ErrorIs(t, fs.MkdirAll("/new/deeper", 0755), os.ErrPermission)
	assert.ErrorIs(t, fs.Remove("/small"), os.ErrPermission)
	assert.ErrorIs(t, fs.RemoveAll("/dir"), os.ErrPermission)
	assert.ErrorIs(t, fs.Rename("/small", "/other"), os.ErrPermission)
	assert.ErrorIs(t, fs.Chmod("/small", 0600), os.ErrPermission)
	assert.ErrorIs(t, fs.Chown("/small", 1, 1), os.ErrPermission)

	_, err = fs.OpenFile("/small", os.O_RDWR, 0)
	assert.ErrorIs(t, err, os.ErrPermission)

	f, err := fs.OpenFile("/small", os.O_RDONLY, 0)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrPermission)
	_, err = f.WriteString("x")
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.ErrorIs(t, f.Truncate(0), os.ErrPermission)
	assert.NoError(t, f.Sync())

	assert.Equal(t, "ole", fs.Name())
}
