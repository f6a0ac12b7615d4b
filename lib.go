package ole

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/afero"
)

// CompoundFile is an opened container. All of its tables and entries are
// built by Open and never change afterwards, so a CompoundFile is safe for
// concurrent use.
type CompoundFile struct {
	Header    *Header
	Tables    *AllocationTables
	Directory *Directory

	sectors *Sectors
	opts    options
}

// Open parses the container held in data. The buffer is borrowed, not copied,
// and must not be modified while the CompoundFile is in use.
func Open(data []byte, opts ...Option) (*CompoundFile, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger

	header, err := parseHeader(data, o.validation)
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	log.Debugf("header: version=%v sector=%d mini=%d cutoff=%d fat=%d difat=%d",
		header.Version, header.SectorLen(), header.MiniSectorLen(), header.MiniStreamCutoff,
		header.NumFatSectors, header.NumDifatSectors)

	sectorLen := int64(header.SectorLen())
	if int64(len(data)) < sectorLen {
		return nil, newFieldError("file size", ErrBadSizeValue, "file is %v bytes, smaller than one %v-byte sector", len(data), sectorLen)
	}
	if int64(len(data)) > (int64(MAX_REGULAR_SECTOR)+1)*sectorLen {
		return nil, newFieldError("file size", ErrBadSizeValue, "file is too large (%v bytes)", len(data))
	}

	sectors := NewSectors(header.Version, data)

	tables, err := buildAllocationTables(header, sectors, o.validation)
	if err != nil {
		return nil, fmt.Errorf("build allocation tables: %w", err)
	}
	log.Debugf("tables: fat=%d minifat=%d dir sectors=%d", len(tables.Fat), len(tables.Minifat), len(tables.DirSectors))

	directory, err := buildDirectory(header, tables, sectors, o.validation)
	if err != nil {
		return nil, fmt.Errorf("build directory: %w", err)
	}
	log.Debugf("directory: %d entries", len(directory.DirEntries))

	return &CompoundFile{
		Header:    header,
		Tables:    tables,
		Directory: directory,

		sectors: sectors,
		opts:    o,
	}, nil
}

// OpenReader reads r to the end and opens the result.
func OpenReader(r io.Reader, opts ...Option) (*CompoundFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read container: %w", err)
	}

	return Open(data, opts...)
}

// OpenFile loads name from fs and opens it.
func OpenFile(fs afero.Fs, name string, opts ...Option) (*CompoundFile, error) {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		return nil, err
	}

	return Open(data, opts...)
}

// Entries returns every parsed directory entry, indexed by id.
func (c *CompoundFile) Entries() []*DirEntry {
	return c.Directory.DirEntries
}

func (c *CompoundFile) RootEntry() *Entry {
	return NewEntry(c.Directory.RootDirEntry(), "/")
}

// Path returns the absolute path of directory entry id.
func (c *CompoundFile) Path(id uint32) (string, error) {
	names := make([]string, 0)
	seen := make(map[uint32]bool)

	for id != c.Directory.RootID {
		dirEntry, err := c.Directory.Entry(id)
		if err != nil {
			return "", err
		}
		if !dirEntry.HasParent() || seen[id] {
			return "", fmt.Errorf("entry %v is not attached to the root: %w", id, ErrNotFound)
		}
		seen[id] = true

		names = append(names, dirEntry.Name)
		id = dirEntry.Parent
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}

	return PathFromNameChain(names), nil
}

// Lookup returns the entry at path. Names match case-insensitively.
func (c *CompoundFile) Lookup(path string) (*DirEntry, error) {
	id, err := c.Directory.StreamIDForNameChain(NameChainFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", path, err)
	}

	return c.Directory.DirEntries[id], nil
}

// Stat returns the description of the entry at path.
func (c *CompoundFile) Stat(path string) (*Entry, error) {
	dirEntry, err := c.Lookup(path)
	if err != nil {
		return nil, err
	}

	return NewEntry(dirEntry, PathFromNameChain(NameChainFromPath(path))), nil
}

// Children returns the entries directly inside storage id, in name order.
func (c *CompoundFile) Children(id uint32) ([]*DirEntry, error) {
	dirEntry, err := c.Directory.Entry(id)
	if err != nil {
		return nil, err
	}

	children := make([]*DirEntry, 0, len(dirEntry.Children))
	for _, childId := range dirEntry.Children {
		children = append(children, c.Directory.DirEntries[childId])
	}
	sort.Slice(children, func(i, j int) bool {
		return CompareNames(children[i].Name, children[j].Name) == OrderLess
	})

	return children, nil
}

// WalkFunc is called for every entry visited by Walk.
type WalkFunc func(entry *Entry) error

// Walk visits the root and all entries below it depth-first, storages
// before their children and siblings in name order.
func (c *CompoundFile) Walk(fn WalkFunc) error {
	return c.walk(c.Directory.RootID, "/", fn)
}

func (c *CompoundFile) walk(id uint32, path string, fn WalkFunc) error {
	dirEntry := c.Directory.DirEntries[id]
	if err := fn(NewEntry(dirEntry, path)); err != nil {
		return err
	}

	children, err := c.Children(id)
	if err != nil {
		return err
	}

	for _, child := range children {
		childPath := path + "/" + child.Name
		if path == "/" {
			childPath = "/" + child.Name
		}
		if err := c.walk(child.ID, childPath, fn); err != nil {
			return err
		}
	}

	return nil
}

// OpenStream returns a reader for the stream at path.
func (c *CompoundFile) OpenStream(path string) (*EntrySlice, error) {
	dirEntry, err := c.Lookup(path)
	if err != nil {
		return nil, err
	}

	if dirEntry.ObjType != Stream {
		return nil, fmt.Errorf("not a stream: %s", path)
	}

	return c.OpenEntry(dirEntry)
}

// OpenEntry returns a reader for the contents of dirEntry. The root entry
// yields the raw mini stream. Chains were checked against their sizes by
// Open, so only ErrEmptyEntry is expected here for entries of c.
func (c *CompoundFile) OpenEntry(dirEntry *DirEntry) (*EntrySlice, error) {
	if dirEntry.StreamSize == 0 {
		return nil, fmt.Errorf("entry %v (%q): %w", dirEntry.ID, dirEntry.Name, ErrEmptyEntry)
	}

	if dirEntry.ObjType != Stream && dirEntry.ObjType != Root {
		return nil, fmt.Errorf("entry %v (%q) is a %v, not a stream: %w",
			dirEntry.ID, dirEntry.Name, dirEntry.ObjType, ErrInvalidFormat)
	}

	if dirEntry.StreamSize > uint64(maxInt64) {
		return nil, newFieldError("stream size", ErrBadSizeValue, "entry %v declares %v bytes", dirEntry.ID, dirEntry.StreamSize)
	}
	size := int64(dirEntry.StreamSize)

	c.opts.logger.Debugf("open entry %d %q: size=%d chain=%d mini=%v",
		dirEntry.ID, dirEntry.Name, size, len(dirEntry.SectorChain), dirEntry.MiniStream)

	var slice *EntrySlice
	var err error
	if dirEntry.MiniStream {
		slice, err = c.miniStreamSlices(dirEntry.SectorChain, size)
	} else {
		slice, err = c.streamSlices(dirEntry.SectorChain, size)
	}
	if err != nil {
		return nil, fmt.Errorf("entry %v (%q): %w", dirEntry.ID, dirEntry.Name, err)
	}

	return slice, nil
}

const maxInt64 = 1<<63 - 1

func (c *CompoundFile) streamSlices(chain []uint32, size int64) (*EntrySlice, error) {
	sectorLen := c.sectors.SectorLen()
	needed := neededChunks(size, sectorLen)
	if int64(len(chain)) < needed {
		return nil, newFieldError("stream size", ErrBadSizeValue, "%v bytes need %v sectors, chain has %v",
			size, needed, len(chain))
	}

	slice := newEntrySlice(sectorLen, size)
	for _, sectorId := range chain[:needed] {
		sector, err := c.sectors.Sector(sectorId)
		if err != nil {
			return nil, err
		}
		slice.addChunk(sector)
	}

	return slice, nil
}

// miniStreamSlices stages mini sectors. Mini sector m lives in the root
// chain's sector m / (sectorLen / miniSectorLen).
func (c *CompoundFile) miniStreamSlices(chain []uint32, size int64) (*EntrySlice, error) {
	miniSectorLen := c.Header.MiniSectorLen()
	needed := neededChunks(size, miniSectorLen)
	if int64(len(chain)) < needed {
		return nil, newFieldError("stream size", ErrBadSizeValue, "%v bytes need %v mini sectors, chain has %v",
			size, needed, len(chain))
	}

	rootChain := c.Directory.RootDirEntry().SectorChain
	perSector := uint32(c.sectors.SectorLen() / miniSectorLen)

	slice := newEntrySlice(miniSectorLen, size)
	for _, miniSectorId := range chain[:needed] {
		index := miniSectorId / perSector
		if index >= uint32(len(rootChain)) {
			return nil, fmt.Errorf("mini sector %v lies outside the mini stream (%v sectors): %w",
				miniSectorId, len(rootChain), ErrInvalidFormat)
		}

		offset := int(miniSectorId%perSector) * miniSectorLen
		chunk, err := c.sectors.SubSector(rootChain[index], offset, miniSectorLen)
		if err != nil {
			return nil, err
		}
		slice.addChunk(chunk)
	}

	return slice, nil
}
