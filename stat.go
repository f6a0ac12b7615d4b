package ole

import (
	"os"
	"time"
)

type entryFileInfo struct {
	entry *DirEntry
	name  string
}

func newFileInfo(entry *DirEntry, name string) os.FileInfo {
	return entryFileInfo{entry: entry, name: name}
}

func (e entryFileInfo) Name() string {
	return e.name
}

func (e entryFileInfo) Size() int64 {
	if e.IsDir() {
		return 0
	}
	return int64(e.entry.StreamSize)
}

func (e entryFileInfo) Mode() os.FileMode {
	if e.IsDir() {
		return os.ModeDir | 0555
	}
	return 0444
}

func (e entryFileInfo) ModTime() time.Time {
	return FiletimeToTime(e.entry.ModifiedTime)
}

func (e entryFileInfo) IsDir() bool {
	return e.entry.ObjType.IsStorage()
}

func (e entryFileInfo) Sys() interface{} {
	return e.entry
}
