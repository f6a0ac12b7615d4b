package ole

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
	"github.com/google/uuid"
)

// headerFields is the on-disk layout of the first 512 bytes.
type headerFields struct {
	Signature          [8]byte
	UniqueID           [16]byte
	MinorVersion       uint16
	MajorVersion       uint16
	ByteOrder          [2]byte
	SectorShift        uint16
	MiniSectorShift    uint16
	Reserved           [6]byte
	NumDirSectors      uint32
	NumFatSectors      uint32
	FirstDirSector     uint32
	TransactionSign    uint32
	MiniStreamCutoff   uint32
	FirstMinifatSector uint32
	NumMinifatSectors  uint32
	FirstDifatSector   uint32
	NumDifatSectors    uint32
	InitialDifat       [NUM_DIFAT_ENTRIES_IN_HEADER]uint32
}

// Header holds the values of the file header that the rest of the open
// sequence is seeded from.
type Header struct {
	UniqueID         uuid.UUID
	MinorVersion     uint16
	Version          Version
	SectorShift      uint16
	MiniSectorShift  uint16
	MiniStreamCutoff uint32

	NumDirSectors      uint32
	NumFatSectors      uint32
	FirstDirSector     uint32
	FirstMinifatSector uint32
	NumMinifatSectors  uint32
	FirstDifatSector   uint32
	NumDifatSectors    uint32

	InitialDifatEntries [NUM_DIFAT_ENTRIES_IN_HEADER]uint32
}

// SectorLen returns the size of a regular sector in bytes.
func (h *Header) SectorLen() int {
	return 1 << h.SectorShift
}

// MiniSectorLen returns the size of a mini sector in bytes.
func (h *Header) MiniSectorLen() int {
	return 1 << h.MiniSectorShift
}

func parseHeader(buf []byte, validation Validation) (*Header, error) {
	if len(buf) < HEADER_LEN {
		return nil, newFieldError("header", ErrBadSizeValue, "file is %v bytes, header needs %v", len(buf), HEADER_LEN)
	}

	fields := headerFields{}
	if err := restruct.Unpack(buf[:HEADER_LEN], binary.LittleEndian, &fields); err != nil {
		return nil, fmt.Errorf("unpack header: %v: %w", err, ErrInvalidFormat)
	}

	if !bytes.Equal(fields.Signature[:], MAGIC_NUMBER) {
		return nil, fmt.Errorf("bad signature %x: %w", fields.Signature, ErrInvalidFormat)
	}

	switch fields.ByteOrder {
	case LITTLE_ENDIAN_MARK:
	case BIG_ENDIAN_MARK:
		return nil, fmt.Errorf("big-endian byte order: %w", ErrUnsupported)
	default:
		return nil, fmt.Errorf("invalid byte order mark %x: %w", fields.ByteOrder, ErrInvalidFormat)
	}

	if validation.IsStrict() && fields.MinorVersion != MINOR_VERSION {
		return nil, fmt.Errorf("minor version is 0x%x, expected 0x%x: %w", fields.MinorVersion, MINOR_VERSION, ErrInvalidFormat)
	}

	version, err := VersionNumber(fields.MajorVersion)
	if err != nil {
		return nil, err
	}

	if fields.SectorShift >= MAX_SECTOR_SHIFT {
		return nil, newFieldError("sector shift", ErrBadSizeValue, "overflow (%v)", fields.SectorShift)
	}
	if fields.SectorShift != version.SectorShift() {
		return nil, newFieldError("sector shift", ErrBadSizeValue, "expected %v for version %v, found %v",
			version.SectorShift(), version, fields.SectorShift)
	}

	if fields.MiniSectorShift >= MAX_SECTOR_SHIFT {
		return nil, newFieldError("mini sector shift", ErrBadSizeValue, "overflow (%v)", fields.MiniSectorShift)
	}
	if fields.MiniSectorShift != MINI_SECTOR_SHIFT {
		return nil, newFieldError("mini sector shift", ErrBadSizeValue, "expected %v for version %v, found %v",
			MINI_SECTOR_SHIFT, version, fields.MiniSectorShift)
	}

	if fields.MiniStreamCutoff < MINI_STREAM_CUTOFF {
		return nil, fmt.Errorf("mini stream cutoff %v is below %v: %w", fields.MiniStreamCutoff, MINI_STREAM_CUTOFF, ErrInvalidFormat)
	}

	// Some CFB implementations use FREE_SECTOR to indicate END_OF_CHAIN.
	firstDifatSector := fields.FirstDifatSector
	if firstDifatSector == FREE_SECTOR {
		firstDifatSector = END_OF_CHAIN
	}

	return &Header{
		UniqueID:         uuid.UUID(fields.UniqueID),
		MinorVersion:     fields.MinorVersion,
		Version:          version,
		SectorShift:      fields.SectorShift,
		MiniSectorShift:  fields.MiniSectorShift,
		MiniStreamCutoff: fields.MiniStreamCutoff,

		NumDirSectors:      fields.NumDirSectors,
		NumFatSectors:      fields.NumFatSectors,
		FirstDirSector:     fields.FirstDirSector,
		FirstMinifatSector: fields.FirstMinifatSector,
		NumMinifatSectors:  fields.NumMinifatSectors,
		FirstDifatSector:   firstDifatSector,
		NumDifatSectors:    fields.NumDifatSectors,

		InitialDifatEntries: fields.InitialDifat,
	}, nil
}
