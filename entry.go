package ole

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entry is the caller-facing description of a storage or stream.
type Entry struct {
	ID           uint32     `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	Path         string     `json:"path" yaml:"path"`
	ObjType      ObjectType `json:"-" yaml:"-"`
	Type         string     `json:"type" yaml:"type"`
	CLSID        uuid.UUID  `json:"clsid" yaml:"clsid"`
	StateBits    uint32     `json:"state_bits" yaml:"state_bits"`
	CreationTime uint64     `json:"creation_time" yaml:"creation_time"`
	ModifiedTime uint64     `json:"modified_time" yaml:"modified_time"`
	StreamLen    uint64     `json:"size" yaml:"size"`
}

func NewEntry(dirEntry *DirEntry, path string) *Entry {
	entry := Entry{
		ID:           dirEntry.ID,
		Name:         dirEntry.Name,
		Path:         path,
		ObjType:      dirEntry.ObjType,
		Type:         dirEntry.ObjType.String(),
		CLSID:        dirEntry.CLSID,
		StateBits:    dirEntry.StateBits,
		CreationTime: dirEntry.CreationTime,
		ModifiedTime: dirEntry.ModifiedTime,
		StreamLen:    dirEntry.StreamSize,
	}

	return &entry
}

func (e *Entry) IsStorage() bool {
	return e.ObjType.IsStorage()
}

func (e *Entry) IsStream() bool {
	return e.ObjType == Stream
}

// Created returns the creation time, or the zero time if none is recorded.
func (e *Entry) Created() time.Time {
	return FiletimeToTime(e.CreationTime)
}

// Modified returns the modification time, or the zero time if none is recorded.
func (e *Entry) Modified() time.Time {
	return FiletimeToTime(e.ModifiedTime)
}

func (e *Entry) String() string {
	return fmt.Sprintf("%v %v (%v bytes)", e.ObjType, e.Path, e.StreamLen)
}

// Seconds between 1601-01-01 and 1970-01-01.
const filetimeUnixOffset = 11644473600

// FiletimeToTime converts a FILETIME tick count (100ns since 1601) to UTC.
// Zero ticks mean "not set" and return the zero time.
func FiletimeToTime(ticks uint64) time.Time {
	if ticks == 0 {
		return time.Time{}
	}

	secs := int64(ticks/10000000) - filetimeUnixOffset
	nsecs := int64(ticks%10000000) * 100
	return time.Unix(secs, nsecs).UTC()
}
