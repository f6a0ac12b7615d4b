package ole

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/asalih/go-ole/internal/oletest"
)

func pattern(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}

func TestEntrySliceRead(t *testing.T) {
	slice := newEntrySlice(4, 10)
	slice.addChunk([]byte("abcd"))
	slice.addChunk([]byte("efgh"))
	slice.addChunk([]byte("ijkl"))

	assert.Equal(t, int64(10), slice.Len())
	assert.Equal(t, int64(12), slice.RealLen())

	buf := make([]byte, 3)
	var got []byte
	for {
		n, err := slice.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			assert.Zero(t, n)
			break
		}
		require.NoError(t, err)
	}

	assert.Equal(t, []byte("abcdefghij"), got)
	assert.Zero(t, slice.Remaining())

	n, err := slice.Read(buf)
	assert.Zero(t, n)
	assert.Equal(t, io.EOF, err)
}

func TestEntrySliceReadEmptyBuffer(t *testing.T) {
	slice := newEntrySlice(4, 4)
	slice.addChunk([]byte("abcd"))

	n, err := slice.Read(nil)
	assert.Zero(t, n)
	assert.NoError(t, err)
}

func TestEntrySliceReadAt(t *testing.T) {
	slice := newEntrySlice(4, 10)
	slice.addChunk([]byte("abcd"))
	slice.addChunk([]byte("efgh"))
	slice.addChunk([]byte("ijkl"))

	buf := make([]byte, 5)
	n, err := slice.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("defgh"), buf)

	n, err = slice.ReadAt(buf, 8)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []byte("ij"), buf[:n])

	n, err = slice.ReadAt(buf, 10)
	assert.Equal(t, io.EOF, err)
	assert.Zero(t, n)

	_, err = slice.ReadAt(buf, -1)
	assert.Error(t, err)

	assert.Equal(t, int64(10), slice.Remaining(), "ReadAt must not move the cursor")
}

func TestEntrySliceSeek(t *testing.T) {
	slice := newEntrySlice(4, 10)
	slice.addChunk([]byte("abcd"))
	slice.addChunk([]byte("efgh"))
	slice.addChunk([]byte("ijkl"))

	off, err := slice.Seek(6, io.SeekStart)
	require.NoError(t, err)
	assert.Equal(t, int64(6), off)

	off, err = slice.Seek(-2, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(4), off)

	rest, err := io.ReadAll(slice)
	require.NoError(t, err)
	assert.Equal(t, []byte("efghij"), rest)

	off, err = slice.Seek(-1, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(9), off)

	_, err = slice.Seek(11, io.SeekStart)
	assert.Error(t, err)
	_, err = slice.Seek(-1, io.SeekStart)
	assert.Error(t, err)
	_, err = slice.Seek(0, 42)
	assert.Error(t, err)
}

func TestOpenStreamContents(t *testing.T) {
	tests := []struct {
		name    string
		version uint16
		size    int
	}{
		{name: "mini one byte", size: 1},
		{name: "mini exact sector", size: 64},
		{name: "mini several sectors", size: 1000},
		{name: "below cutoff", size: 4095},
		{name: "at cutoff", size: 4096},
		{name: "regular unaligned", size: 5000},
		{name: "v4 mini", version: 4, size: 3000},
		{name: "v4 regular", version: 4, size: 4096*2 + 17},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := pattern(tt.size)
			img := oletest.Build(oletest.Options{Version: tt.version},
				oletest.Stream("pad", pattern(100)),
				oletest.Stream("data", data),
			)

			cf, err := Open(img.Data, WithValidation(ValidationStrict))
			require.NoError(t, err)

			dirEntry, err := cf.Lookup("/data")
			require.NoError(t, err)
			assert.Equal(t, tt.size < int(MINI_STREAM_CUTOFF), dirEntry.MiniStream)

			slice, err := cf.OpenStream("/data")
			require.NoError(t, err)
			assert.Equal(t, int64(tt.size), slice.Len())
			assert.GreaterOrEqual(t, slice.RealLen(), slice.Len())

			got, err := io.ReadAll(slice)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestOpenStreamLargeCutoff(t *testing.T) {
	data := pattern(6000)
	img := oletest.Build(oletest.Options{Cutoff: 8192}, oletest.Stream("data", data))

	cf, err := Open(img.Data)
	require.NoError(t, err)

	dirEntry, err := cf.Lookup("/data")
	require.NoError(t, err)
	assert.True(t, dirEntry.MiniStream)

	slice, err := cf.OpenEntry(dirEntry)
	require.NoError(t, err)
	got, err := io.ReadAll(slice)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestOpenStreamErrors(t *testing.T) {
	img := oletest.Build(oletest.Options{},
		oletest.Stream("empty", nil),
		oletest.Storage("dir", oletest.Stream("x", []byte("x"))),
		oletest.Stream("small", pattern(200)),
		oletest.Stream("large", pattern(5000)),
	)

	t.Run("empty entry", func(t *testing.T) {
		cf, err := Open(img.Data)
		require.NoError(t, err)

		_, err = cf.OpenStream("/empty")
		assert.ErrorIs(t, err, ErrEmptyEntry)
	})

	t.Run("storage", func(t *testing.T) {
		cf, err := Open(img.Data)
		require.NoError(t, err)

		_, err = cf.OpenStream("/dir")
		assert.Error(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		cf, err := Open(img.Data)
		require.NoError(t, err)

		_, err = cf.OpenStream("/nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("size larger than chain", func(t *testing.T) {
		patched := oletest.Build(oletest.Options{}, oletest.Stream("large", pattern(5000)))
		oletest.PutUint32(patched.Record(patched.IDs["/large"]), oletest.OffEntrySize, 9000)

		_, err := Open(patched.Data)
		assert.ErrorIs(t, err, ErrBadSizeValue)
	})

	t.Run("mini sector outside mini stream", func(t *testing.T) {
		patched := oletest.Build(oletest.Options{}, oletest.Stream("small", pattern(200)))
		oletest.PutUint32(patched.Record(patched.IDs["/small"]), oletest.OffEntryStart, 9)
		minifat := patched.Sector(patched.MinifatSectors[0])
		oletest.PutUint32(minifat, 9*4, 10)
		oletest.PutUint32(minifat, 10*4, 11)
		oletest.PutUint32(minifat, 11*4, 12)
		oletest.PutUint32(minifat, 12*4, END_OF_CHAIN)

		_, err := Open(patched.Data)
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})
}

func TestOpenRootEntry(t *testing.T) {
	img := oletest.Build(oletest.Options{}, oletest.Stream("a", []byte("abc")))

	cf, err := Open(img.Data)
	require.NoError(t, err)

	slice, err := cf.OpenEntry(cf.Directory.RootDirEntry())
	require.NoError(t, err)
	assert.Equal(t, int64(64), slice.Len())

	got, err := io.ReadAll(slice)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got[:3])
}

func TestConcurrentReaders(t *testing.T) {
	nodes := make([]*oletest.Node, 0, 8)
	want := make(map[string][]byte)
	for i := 0; i < 8; i++ {
		name := fmt.Sprintf("stream%d", i)
		data := pattern(i*1500 + 1)
		want["/"+name] = data
		nodes = append(nodes, oletest.Stream(name, data))
	}
	img := oletest.Build(oletest.Options{}, nodes...)

	cf, err := Open(img.Data)
	require.NoError(t, err)

	var g errgroup.Group
	for path, data := range want {
		path, data := path, data
		for r := 0; r < 4; r++ {
			g.Go(func() error {
				slice, err := cf.OpenStream(path)
				if err != nil {
					return err
				}
				got, err := io.ReadAll(slice)
				if err != nil {
					return err
				}
				if !bytes.Equal(got, data) {
					return fmt.Errorf("%s: content mismatch", path)
				}
				return nil
			})
		}
	}
	require.NoError(t, g.Wait())
}

func TestNeededChunks(t *testing.T) {
	assert.Equal(t, int64(0), neededChunks(0, 64))
	assert.Equal(t, int64(1), neededChunks(1, 64))
	assert.Equal(t, int64(1), neededChunks(64, 64))
	assert.Equal(t, int64(2), neededChunks(65, 64))
	assert.Equal(t, int64(1<<54), neededChunks(maxInt64, 512))
}
