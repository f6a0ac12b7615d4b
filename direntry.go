package ole

import (
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
	"github.com/google/uuid"
	textunicode "golang.org/x/text/encoding/unicode"
)

const (
	dirNameLen       = 64
	dirNameCodeUnits = dirNameLen / 2
)

// dirEntryFields is the on-disk layout of one 128-byte directory record.
type dirEntryFields struct {
	Name           [dirNameLen]byte
	NameLen        uint16
	ObjType        uint8
	Color          uint8
	LeftSibling    uint32
	RightSibling   uint32
	Child          uint32
	CLSID          [16]byte
	StateBits      uint32
	CreationTime   uint64
	ModifiedTime   uint64
	StartingSector uint32
	StreamSize     uint64
}

type DirEntry struct {
	ID             uint32
	Name           string
	ObjType        ObjectType
	Color          Color
	LeftSibling    uint32
	RightSibling   uint32
	Child          uint32
	CLSID          uuid.UUID
	StateBits      uint32
	CreationTime   uint64
	ModifiedTime   uint64
	StartingSector uint32
	StreamSize     uint64

	// SectorChain holds the sectors (or mini sectors when MiniStream is
	// set) covering the entry's stream. Empty for storages.
	SectorChain []uint32
	MiniStream  bool

	// Parent is NO_STREAM for the root and for entries outside the tree.
	Parent   uint32
	Children []uint32
}

// HasParent reports whether the entry was reached from a storage.
func (d *DirEntry) HasParent() bool {
	return d.Parent != NO_STREAM
}

// IsFreeRecord reports whether record starts with the free-entry marker.
func IsFreeRecord(record []byte) bool {
	return len(record) >= SECTOR_ID_LEN && binary.LittleEndian.Uint32(record) == FREE_SECTOR
}

func ReadDirEntry(record []byte, id uint32, version Version, validation Validation) (*DirEntry, error) {
	if len(record) < DIR_ENTRY_LEN {
		return nil, fmt.Errorf("directory record %v is %v bytes: %w", id, len(record), ErrBadSizeValue)
	}

	fields := dirEntryFields{}
	if err := restruct.Unpack(record[:DIR_ENTRY_LEN], binary.LittleEndian, &fields); err != nil {
		return nil, fmt.Errorf("unpack directory record %v: %v: %w", id, err, ErrInvalidFormat)
	}

	objType, err := ObjectFromByte(fields.ObjType)
	if err != nil {
		return nil, fmt.Errorf("directory record %v: %w", id, err)
	}

	color, err := ColorFromByte(fields.Color)
	if err != nil {
		return nil, fmt.Errorf("directory record %v: %w", id, err)
	}

	if validation.IsStrict() && (fields.NameLen > dirNameLen || fields.NameLen%2 != 0) {
		return nil, fmt.Errorf("directory record %v has name length %v: %w", id, fields.NameLen, ErrInvalidFormat)
	}

	name, err := decodeName(fields.Name[:])
	if err != nil {
		return nil, fmt.Errorf("directory record %v name: %v: %w", id, err, ErrInvalidFormat)
	}
	if validation.IsStrict() && objType.inHierarchy() {
		if err := ValidateName(name); err != nil {
			return nil, fmt.Errorf("directory record %v: %v: %w", id, err, ErrInvalidFormat)
		}
	}

	return &DirEntry{
		ID:             id,
		Name:           name,
		ObjType:        objType,
		Color:          color,
		LeftSibling:    fields.LeftSibling,
		RightSibling:   fields.RightSibling,
		Child:          fields.Child,
		CLSID:          uuid.UUID(fields.CLSID),
		StateBits:      fields.StateBits,
		CreationTime:   fields.CreationTime,
		ModifiedTime:   fields.ModifiedTime,
		StartingSector: fields.StartingSector,
		StreamSize:     fields.StreamSize & version.SectorLenMask(),

		Parent: NO_STREAM,
	}, nil
}

// decodeName decodes the UTF-16LE name field up to the first NUL code unit.
func decodeName(raw []byte) (string, error) {
	n := 0
	for n < dirNameCodeUnits && binary.LittleEndian.Uint16(raw[n*2:]) != 0 {
		n++
	}
	if n == 0 {
		return "", nil
	}

	decoder := textunicode.UTF16(textunicode.LittleEndian, textunicode.IgnoreBOM).NewDecoder()
	name, err := decoder.Bytes(raw[:n*2])
	if err != nil {
		return "", err
	}
	return string(name), nil
}

func (d *DirEntry) String() string {
	return fmt.Sprintf("Entry #%v. Type: %v, Color: %v, Name: %v, Size: %v. SecID chain: %v",
		d.ID, d.ObjType, d.Color, d.Name, d.StreamSize, d.SectorChain)
}
