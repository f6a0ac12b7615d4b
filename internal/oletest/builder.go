// Package oletest writes small, well-formed compound files for tests.
//
// The layout is fixed: FAT sectors first, then the optional DIFAT sector,
// the directory, the mini FAT, the mini stream and finally the regular
// streams, each as one contiguous chain. Tests that need a broken file
// build a good one and patch it through the Image helpers.
package oletest

import (
	"encoding/binary"
	"sort"
	"unicode/utf16"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	EndOfChain  uint32 = 0xfffffffe
	Free        uint32 = 0xffffffff
	FatSector   uint32 = 0xfffffffd
	DifatSector uint32 = 0xfffffffc
	NoStream    uint32 = 0xffffffff

	headerLen        = 512
	dirEntryLen      = 128
	miniSectorLen    = 64
	headerDifatSlots = 109
)

// Header field offsets.
const (
	OffMinorVersion     = 24
	OffMajorVersion     = 26
	OffByteOrder        = 28
	OffSectorShift      = 30
	OffMiniSectorShift  = 32
	OffNumDirSectors    = 40
	OffNumFatSectors    = 44
	OffFirstDirSector   = 48
	OffMiniStreamCutoff = 56
	OffFirstMinifat     = 60
	OffNumMinifat       = 64
	OffFirstDifat       = 68
	OffNumDifat         = 72
	OffInitialDifat     = 76
)

// Directory record field offsets.
const (
	OffEntryNameLen  = 64
	OffEntryType     = 66
	OffEntryColor    = 67
	OffEntryLeft     = 68
	OffEntryRight    = 72
	OffEntryChild    = 76
	OffEntryCLSID    = 80
	OffEntryState    = 96
	OffEntryCreated  = 100
	OffEntryModified = 108
	OffEntryStart    = 116
	OffEntrySize     = 120
)

var magic = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}

// Node is a storage or a stream to be written.
type Node struct {
	Name     string
	Storage  bool
	Data     []byte
	Children []*Node

	CLSID    [16]byte
	Created  uint64
	Modified uint64
}

func Stream(name string, data []byte) *Node {
	return &Node{Name: name, Data: data}
}

func Storage(name string, children ...*Node) *Node {
	return &Node{Name: name, Storage: true, Children: children}
}

type Options struct {
	// Version is 3 (default) or 4.
	Version uint16
	// Cutoff is the mini stream cutoff, 4096 when zero.
	Cutoff uint32
	// ForceDifat lists the FAT sectors in a DIFAT sector instead of the header.
	ForceDifat bool
	// RootCLSID and RootModified are stored on the root entry.
	RootCLSID    [16]byte
	RootModified uint64
}

// Image is a written compound file and the locations of its parts.
type Image struct {
	Data      []byte
	SectorLen int

	FatSectors        []uint32
	DifatSectors      []uint32
	DirSectors        []uint32
	MinifatSectors    []uint32
	MiniStreamSectors []uint32

	// IDs maps "/a/b" style paths to directory ids. The root is "/".
	IDs map[string]uint32
	// Starts maps stream paths to their starting sector or mini sector.
	Starts map[string]uint32
	// NumEntries counts the written records, padding included.
	NumEntries int
}

type dirRecord struct {
	node    *Node
	path    string
	objType byte
	child   uint32
	right   uint32
	start   uint32
	size    uint64
}

// Build writes a compound file whose root storage holds nodes.
func Build(opts Options, nodes ...*Node) *Image {
	if opts.Version == 0 {
		opts.Version = 3
	}
	if opts.Cutoff == 0 {
		opts.Cutoff = 4096
	}

	shift := uint16(9)
	if opts.Version == 4 {
		shift = 12
	}
	sectorLen := 1 << shift
	idsPerSector := sectorLen / 4

	root := &Node{Name: "Root Entry", Storage: true, Children: nodes, CLSID: opts.RootCLSID, Modified: opts.RootModified}

	records := []*dirRecord{{node: root, path: "/", objType: 5, child: NoStream, right: NoStream}}
	for i := 0; i < len(records); i++ {
		parent := records[i]
		if !parent.node.Storage {
			continue
		}

		var prev *dirRecord
		for _, child := range sortedChildren(parent.node.Children) {
			rec := &dirRecord{
				node:    child,
				path:    joinPath(parent.path, child.Name),
				objType: 2,
				child:   NoStream,
				right:   NoStream,
			}
			if child.Storage {
				rec.objType = 1
			}

			id := uint32(len(records))
			records = append(records, rec)
			if prev == nil {
				parent.child = id
			} else {
				prev.right = id
			}
			prev = rec
		}
	}

	var ministream []byte
	var minifat []uint32
	var large []*dirRecord
	for _, rec := range records[1:] {
		if rec.node.Storage {
			continue
		}

		rec.size = uint64(len(rec.node.Data))
		switch {
		case rec.size == 0:
			rec.start = EndOfChain
		case rec.size < uint64(opts.Cutoff):
			rec.start = uint32(len(minifat))
			n := chunks(len(rec.node.Data), miniSectorLen)
			for k := 0; k < n; k++ {
				next := uint32(len(minifat) + 1)
				if k == n-1 {
					next = EndOfChain
				}
				minifat = append(minifat, next)
			}
			ministream = append(ministream, pad(rec.node.Data, miniSectorLen)...)
		default:
			large = append(large, rec)
		}
	}

	numDir := chunks(len(records), sectorLen/dirEntryLen)
	numMinifat := chunks(len(minifat), idsPerSector)
	numMini := chunks(len(ministream), sectorLen)
	numDifat := 0
	if opts.ForceDifat {
		numDifat = 1
	}
	rest := numDifat + numDir + numMinifat + numMini
	for _, rec := range large {
		rest += chunks(int(rec.size), sectorLen)
	}

	numFat := 1
	for numFat*idsPerSector < numFat+rest {
		numFat++
	}
	total := numFat + rest

	fat := make([]uint32, numFat*idsPerSector)
	for i := range fat {
		fat[i] = Free
	}

	next := uint32(0)
	alloc := func(n int) []uint32 {
		ids := make([]uint32, 0, n)
		for k := 0; k < n; k++ {
			ids = append(ids, next)
			next++
		}
		return ids
	}
	link := func(ids []uint32) {
		for k, id := range ids {
			if k == len(ids)-1 {
				fat[id] = EndOfChain
			} else {
				fat[id] = ids[k+1]
			}
		}
	}

	img := &Image{
		Data:      make([]byte, (total+1)*sectorLen),
		SectorLen: sectorLen,
		IDs:       make(map[string]uint32),
		Starts:    make(map[string]uint32),
	}

	img.FatSectors = alloc(numFat)
	for _, id := range img.FatSectors {
		fat[id] = FatSector
	}
	img.DifatSectors = alloc(numDifat)
	for _, id := range img.DifatSectors {
		fat[id] = DifatSector
	}
	img.DirSectors = alloc(numDir)
	link(img.DirSectors)
	img.MinifatSectors = alloc(numMinifat)
	link(img.MinifatSectors)
	img.MiniStreamSectors = alloc(numMini)
	link(img.MiniStreamSectors)
	for _, rec := range large {
		ids := alloc(chunks(int(rec.size), sectorLen))
		link(ids)
		rec.start = ids[0]
	}

	records[0].size = uint64(len(ministream))
	records[0].start = EndOfChain
	if numMini > 0 {
		records[0].start = img.MiniStreamSectors[0]
	}

	for i, v := range fat {
		sector := img.Sector(img.FatSectors[i/idsPerSector])
		binary.LittleEndian.PutUint32(sector[(i%idsPerSector)*4:], v)
	}

	img.writeSectors(img.MinifatSectors, encodeIds(minifat, numMinifat*idsPerSector))
	img.writeSectors(img.MiniStreamSectors, ministream)
	for _, rec := range large {
		img.writeSectors(img.chain(rec.start, chunks(int(rec.size), sectorLen)), rec.node.Data)
	}

	dir := make([]byte, numDir*sectorLen)
	img.NumEntries = numDir * (sectorLen / dirEntryLen)
	for id := 0; id < img.NumEntries; id++ {
		record := dir[id*dirEntryLen : (id+1)*dirEntryLen]
		if id >= len(records) {
			writePadding(record)
			continue
		}

		rec := records[id]
		writeRecord(record, rec)
		img.IDs[rec.path] = uint32(id)
		if rec.objType == 2 {
			img.Starts[rec.path] = rec.start
		}
	}
	img.writeSectors(img.DirSectors, dir)

	header := img.Data[:headerLen]
	copy(header, magic)
	binary.LittleEndian.PutUint16(header[OffMinorVersion:], 0x3e)
	binary.LittleEndian.PutUint16(header[OffMajorVersion:], opts.Version)
	header[OffByteOrder] = 0xfe
	header[OffByteOrder+1] = 0xff
	binary.LittleEndian.PutUint16(header[OffSectorShift:], shift)
	binary.LittleEndian.PutUint16(header[OffMiniSectorShift:], 6)
	if opts.Version == 4 {
		binary.LittleEndian.PutUint32(header[OffNumDirSectors:], uint32(numDir))
	}
	binary.LittleEndian.PutUint32(header[OffNumFatSectors:], uint32(numFat))
	binary.LittleEndian.PutUint32(header[OffFirstDirSector:], img.DirSectors[0])
	binary.LittleEndian.PutUint32(header[OffMiniStreamCutoff:], opts.Cutoff)
	firstMinifat := EndOfChain
	if numMinifat > 0 {
		firstMinifat = img.MinifatSectors[0]
	}
	binary.LittleEndian.PutUint32(header[OffFirstMinifat:], firstMinifat)
	binary.LittleEndian.PutUint32(header[OffNumMinifat:], uint32(numMinifat))

	difat := make([]uint32, headerDifatSlots)
	for i := range difat {
		difat[i] = Free
	}
	if opts.ForceDifat {
		binary.LittleEndian.PutUint32(header[OffFirstDifat:], img.DifatSectors[0])
		binary.LittleEndian.PutUint32(header[OffNumDifat:], 1)

		ids := make([]uint32, idsPerSector)
		for i := range ids {
			ids[i] = Free
		}
		copy(ids, img.FatSectors)
		ids[idsPerSector-1] = EndOfChain
		copy(img.Sector(img.DifatSectors[0]), encodeIds(ids, idsPerSector))
	} else {
		binary.LittleEndian.PutUint32(header[OffFirstDifat:], EndOfChain)
		copy(difat, img.FatSectors)
	}
	copy(header[OffInitialDifat:], encodeIds(difat, headerDifatSlots))

	return img
}

// Sector returns the bytes of sector id.
func (img *Image) Sector(id uint32) []byte {
	start := (int(id) + 1) * img.SectorLen
	return img.Data[start : start+img.SectorLen]
}

// Record returns the directory record of id.
func (img *Image) Record(id uint32) []byte {
	perSector := img.SectorLen / dirEntryLen
	sector := img.Sector(img.DirSectors[int(id)/perSector])
	offset := (int(id) % perSector) * dirEntryLen
	return sector[offset : offset+dirEntryLen]
}

// SetName rewrites the name of directory record id.
func (img *Image) SetName(id uint32, name string) {
	record := img.Record(id)
	for i := 0; i < 64; i++ {
		record[i] = 0
	}
	units := utf16.Encode([]rune(name))
	for i, u := range units {
		binary.LittleEndian.PutUint16(record[i*2:], u)
	}
	binary.LittleEndian.PutUint16(record[OffEntryNameLen:], uint16((len(units)+1)*2))
}

// SetFat overwrites the FAT entry of sector id.
func (img *Image) SetFat(id, value uint32) {
	idsPerSector := uint32(img.SectorLen / 4)
	sector := img.Sector(img.FatSectors[id/idsPerSector])
	binary.LittleEndian.PutUint32(sector[(id%idsPerSector)*4:], value)
}

// PutUint16 and PutUint32 patch little-endian values at off in b.
func PutUint16(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:], v)
}

func PutUint32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:], v)
}

func (img *Image) chain(start uint32, n int) []uint32 {
	ids := make([]uint32, n)
	for k := range ids {
		ids[k] = start + uint32(k)
	}
	return ids
}

func (img *Image) writeSectors(ids []uint32, data []byte) {
	for k, id := range ids {
		from := k * img.SectorLen
		if from >= len(data) {
			return
		}
		to := from + img.SectorLen
		if to > len(data) {
			to = len(data)
		}
		copy(img.Sector(id), data[from:to])
	}
}

func writeRecord(record []byte, rec *dirRecord) {
	units := utf16.Encode([]rune(rec.node.Name))
	if len(units) > 31 {
		units = units[:31]
	}
	for i, u := range units {
		binary.LittleEndian.PutUint16(record[i*2:], u)
	}
	nameLen := uint16(0)
	if len(units) > 0 {
		nameLen = uint16((len(units) + 1) * 2)
	}
	binary.LittleEndian.PutUint16(record[OffEntryNameLen:], nameLen)

	record[OffEntryType] = rec.objType
	record[OffEntryColor] = 1
	binary.LittleEndian.PutUint32(record[OffEntryLeft:], NoStream)
	binary.LittleEndian.PutUint32(record[OffEntryRight:], rec.right)
	binary.LittleEndian.PutUint32(record[OffEntryChild:], rec.child)
	copy(record[OffEntryCLSID:], rec.node.CLSID[:])
	binary.LittleEndian.PutUint64(record[OffEntryCreated:], rec.node.Created)
	binary.LittleEndian.PutUint64(record[OffEntryModified:], rec.node.Modified)
	if rec.objType != 1 {
		binary.LittleEndian.PutUint32(record[OffEntryStart:], rec.start)
		binary.LittleEndian.PutUint64(record[OffEntrySize:], rec.size)
	}
}

func writePadding(record []byte) {
	binary.LittleEndian.PutUint32(record[OffEntryLeft:], NoStream)
	binary.LittleEndian.PutUint32(record[OffEntryRight:], NoStream)
	binary.LittleEndian.PutUint32(record[OffEntryChild:], NoStream)
}

func encodeIds(ids []uint32, n int) []byte {
	b := make([]byte, n*4)
	for i := 0; i < n; i++ {
		v := Free
		if i < len(ids) {
			v = ids[i]
		}
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

func sortedChildren(children []*Node) []*Node {
	sorted := append([]*Node(nil), children...)
	upper := cases.Upper(language.Und)
	sort.SliceStable(sorted, func(i, j int) bool {
		left := utf16.Encode([]rune(sorted[i].Name))
		right := utf16.Encode([]rune(sorted[j].Name))
		if len(left) != len(right) {
			return len(left) < len(right)
		}
		left = utf16.Encode([]rune(upper.String(sorted[i].Name)))
		right = utf16.Encode([]rune(upper.String(sorted[j].Name)))
		for k := 0; k < len(left) && k < len(right); k++ {
			if left[k] != right[k] {
				return left[k] < right[k]
			}
		}
		return len(left) < len(right)
	})
	return sorted
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

func chunks(n, size int) int {
	return (n + size - 1) / size
}

func pad(data []byte, size int) []byte {
	padded := make([]byte, chunks(len(data), size)*size)
	copy(padded, data)
	return padded
}
