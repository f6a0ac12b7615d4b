package ole

import (
	"errors"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Fs exposes a compound file as a read-only afero.Fs. Storages are
// directories and streams are files. Names match case-insensitively.
type Fs struct {
	cf *CompoundFile
}

var _ afero.Fs = (*Fs)(nil)

// NewFs returns a read-only filesystem view of cf.
func NewFs(cf *CompoundFile) afero.Fs {
	return &Fs{cf: cf}
}

func (fs *Fs) lookup(op, name string) (*DirEntry, string, error) {
	clean := path.Clean("/" + strings.TrimPrefix(name, "/"))
	if strings.HasPrefix(path.Clean(name), "..") {
		return nil, "", &os.PathError{Op: op, Path: name, Err: os.ErrNotExist}
	}

	dirEntry, err := fs.cf.Lookup(clean)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = os.ErrNotExist
		}
		return nil, "", &os.PathError{Op: op, Path: name, Err: err}
	}

	return dirEntry, clean, nil
}

func baseName(name string) string {
	base := path.Base(name)
	if base == "" {
		return "."
	}
	return base
}

func readOnly(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: os.ErrPermission}
}

func (fs *Fs) Create(name string) (afero.File, error) {
	return nil, readOnly("create", name)
}

func (fs *Fs) Mkdir(name string, perm os.FileMode) error {
	return readOnly("mkdir", name)
}

func (fs *Fs) MkdirAll(path string, perm os.FileMode) error {
	return readOnly("mkdir", path)
}

func (fs *Fs) Open(name string) (afero.File, error) {
	dirEntry, clean, err := fs.lookup("open", name)
	if err != nil {
		return nil, err
	}

	f, err := newFile(fs.cf, dirEntry, clean, baseName(name))
	if err != nil {
		return nil, err
	}

	return f, nil
}

func (fs *Fs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, readOnly("open", name)
	}
	return fs.Open(name)
}

func (fs *Fs) Remove(name string) error {
	return readOnly("remove", name)
}

func (fs *Fs) RemoveAll(path string) error {
	return readOnly("remove", path)
}

func (fs *Fs) Rename(oldname, newname string) error {
	return readOnly("rename", oldname)
}

func (fs *Fs) Stat(name string) (os.FileInfo, error) {
	dirEntry, _, err := fs.lookup("stat", name)
	if err != nil {
		return nil, err
	}

	return newFileInfo(dirEntry, baseName(name)), nil
}

func (fs *Fs) Name() string {
	return "ole"
}

func (fs *Fs) Chmod(name string, mode os.FileMode) error {
	return readOnly("chmod", name)
}

func (fs *Fs) Chown(name string, uid, gid int) error {
	return readOnly("chown", name)
}

func (fs *Fs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return readOnly("chtimes", name)
}
