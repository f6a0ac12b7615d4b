package ole

import (
	"io"
	"os"
	"sort"
	"syscall"

	"github.com/spf13/afero"
)

// File is an open storage or stream inside an Fs.
type File struct {
	cf    *CompoundFile
	entry *DirEntry
	path  string
	name  string

	// nil for storages and empty streams
	data *EntrySlice

	dirOffset int
	closed    bool
}

var _ afero.File = (*File)(nil)

func newFile(cf *CompoundFile, entry *DirEntry, path, name string) (*File, error) {
	f := &File{
		cf:    cf,
		entry: entry,
		path:  path,
		name:  name,
	}

	if entry.ObjType == Stream && entry.StreamSize > 0 {
		data, err := cf.OpenEntry(entry)
		if err != nil {
			return nil, &os.PathError{Op: "open", Path: path, Err: err}
		}
		f.data = data
	}

	return f, nil
}

func (f *File) Close() error {
	f.closed = true
	return nil
}

func (f *File) checkReadable(op string) error {
	if f.closed {
		return &os.PathError{Op: op, Path: f.path, Err: os.ErrClosed}
	}
	if f.entry.ObjType.IsStorage() {
		return &os.PathError{Op: op, Path: f.path, Err: syscall.EISDIR}
	}
	return nil
}

func (f *File) Read(p []byte) (int, error) {
	if err := f.checkReadable("read"); err != nil {
		return 0, err
	}
	if f.data == nil {
		return 0, io.EOF
	}
	return f.data.Read(p)
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if err := f.checkReadable("readat"); err != nil {
		return 0, err
	}
	if f.data == nil {
		if off < 0 {
			return 0, &os.PathError{Op: "readat", Path: f.path, Err: os.ErrInvalid}
		}
		return 0, io.EOF
	}
	return f.data.ReadAt(p, off)
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	if err := f.checkReadable("seek"); err != nil {
		return 0, err
	}
	if f.data == nil {
		if offset != 0 {
			return 0, &os.PathError{Op: "seek", Path: f.path, Err: os.ErrInvalid}
		}
		return 0, nil
	}
	return f.data.Seek(offset, whence)
}

func (f *File) Write(p []byte) (int, error) {
	return 0, readOnly("write", f.path)
}

func (f *File) WriteAt(p []byte, off int64) (int, error) {
	return 0, readOnly("writeat", f.path)
}

func (f *File) WriteString(s string) (int, error) {
	return 0, readOnly("write", f.path)
}

func (f *File) Name() string {
	return f.name
}

// Readdir returns up to count children in name order. With count <= 0 it
// returns everything left. With count > 0 it returns io.EOF once the
// listing is exhausted.
func (f *File) Readdir(count int) ([]os.FileInfo, error) {
	if f.closed {
		return nil, &os.PathError{Op: "readdir", Path: f.path, Err: os.ErrClosed}
	}
	if !f.entry.ObjType.IsStorage() {
		return nil, &os.PathError{Op: "readdir", Path: f.path, Err: syscall.ENOTDIR}
	}

	children, err := f.cf.Children(f.entry.ID)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: f.path, Err: err}
	}

	infos := make([]os.FileInfo, 0, len(children))
	for _, child := range children {
		infos = append(infos, newFileInfo(child, child.Name))
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name() < infos[j].Name()
	})

	if f.dirOffset > len(infos) {
		f.dirOffset = len(infos)
	}
	rest := infos[f.dirOffset:]

	if count <= 0 {
		f.dirOffset = len(infos)
		return rest, nil
	}

	if len(rest) == 0 {
		return nil, io.EOF
	}
	if count > len(rest) {
		count = len(rest)
	}
	f.dirOffset += count

	return rest[:count], nil
}

func (f *File) Readdirnames(n int) ([]string, error) {
	infos, err := f.Readdir(n)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}

	return names, nil
}

func (f *File) Stat() (os.FileInfo, error) {
	if f.closed {
		return nil, &os.PathError{Op: "stat", Path: f.path, Err: os.ErrClosed}
	}
	return newFileInfo(f.entry, f.name), nil
}

func (f *File) Sync() error {
	return nil
}

func (f *File) Truncate(size int64) error {
	return readOnly("truncate", f.path)
}
