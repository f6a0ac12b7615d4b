package ole

import (
	"fmt"
)

// Directory is the arena of directory entries, indexed by directory id.
type Directory struct {
	DirEntries []*DirEntry
	RootID     uint32
}

func buildDirectory(header *Header, tables *AllocationTables, sectors *Sectors, validation Validation) (*Directory, error) {
	dirEntries, err := readDirEntries(header, tables, sectors, validation)
	if err != nil {
		return nil, err
	}

	dir := &Directory{
		DirEntries: dirEntries,
		RootID:     ROOT_STREAM_ID,
	}

	rootDirEntry := dir.RootDirEntry()
	if rootDirEntry == nil {
		return nil, fmt.Errorf("directory has no entries: %w", ErrInvalidFormat)
	}
	if rootDirEntry.ObjType != Root {
		return nil, fmt.Errorf("root entry has object type %v: %w", rootDirEntry.ObjType, ErrInvalidFormat)
	}

	if err := dir.resolveChains(header, tables, sectors); err != nil {
		return nil, err
	}

	if err := dir.buildTree(); err != nil {
		return nil, err
	}

	if validation.IsStrict() {
		if err := validateMinifat(rootDirEntry, tables.Minifat, header.MiniSectorLen()); err != nil {
			return nil, err
		}
		if err := dir.Validate(); err != nil {
			return nil, err
		}
	}

	return dir, nil
}

// readDirEntries parses the records of every directory sector in order.
// Parsing stops at the first record that starts with the free marker.
func readDirEntries(header *Header, tables *AllocationTables, sectors *Sectors, validation Validation) ([]*DirEntry, error) {
	perSector := header.Version.DirEntriesPerSector()
	dirEntries := make([]*DirEntry, 0, len(tables.DirSectors)*perSector)

	var id uint32
	for _, sectorId := range tables.DirSectors {
		sector, err := sectors.Sector(sectorId)
		if err != nil {
			return nil, fmt.Errorf("read directory sector %v: %w", sectorId, err)
		}

		for i := 0; i < perSector; i++ {
			record := sector[i*DIR_ENTRY_LEN : (i+1)*DIR_ENTRY_LEN]
			if IsFreeRecord(record) {
				return dirEntries, nil
			}

			entry, err := ReadDirEntry(record, id, header.Version, validation)
			if err != nil {
				return nil, err
			}

			dirEntries = append(dirEntries, entry)
			id++
		}
	}

	return dirEntries, nil
}

// resolveChains replaces each stream's starting sector with its full chain.
// Streams below the cutoff live in the mini stream; the root's own chain is
// the mini stream container and always lives in the FAT.
//
// Every chain must cover its declared size and every sector it stages must
// exist in the file, so a stream that opens cleanly here can always be read.
func (d *Directory) resolveChains(header *Header, tables *AllocationTables, sectors *Sectors) error {
	for _, entry := range d.DirEntries {
		var err error
		switch entry.ObjType {
		case Stream:
			if entry.StreamSize == 0 {
				entry.SectorChain = []uint32{}
				continue
			}
			if entry.StreamSize < uint64(header.MiniStreamCutoff) {
				entry.MiniStream = true
				entry.SectorChain, err = walkChain(tables.Minifat, entry.StartingSector)
			} else {
				entry.SectorChain, err = walkChain(tables.Fat, entry.StartingSector)
			}
		case Root:
			if entry.ID != ROOT_STREAM_ID {
				return fmt.Errorf("entry %v is a second root entry: %w", entry.ID, ErrInvalidFormat)
			}
			d.RootID = entry.ID
			entry.SectorChain, err = walkChain(tables.Fat, entry.StartingSector)
		default:
			continue
		}

		if err != nil {
			return fmt.Errorf("entry %v (%q): %w", entry.ID, entry.Name, err)
		}
	}

	rootChain := d.DirEntries[ROOT_STREAM_ID].SectorChain
	for _, entry := range d.DirEntries {
		if entry.ObjType != Stream && entry.ObjType != Root {
			continue
		}

		var err error
		if entry.MiniStream {
			err = checkMiniChain(entry, rootChain, header.MiniSectorLen(), sectors.SectorLen())
		} else {
			err = checkChain(entry, sectors)
		}
		if err != nil {
			return fmt.Errorf("entry %v (%q): %w", entry.ID, entry.Name, err)
		}
	}

	return nil
}

// neededChunks is the number of chunkSize pieces that hold size bytes.
func neededChunks(size int64, chunkSize int) int64 {
	if size <= 0 {
		return 0
	}
	return (size-1)/int64(chunkSize) + 1
}

func checkChain(entry *DirEntry, sectors *Sectors) error {
	if entry.StreamSize > uint64(maxInt64) {
		return newFieldError("stream size", ErrBadSizeValue, "%v bytes", entry.StreamSize)
	}

	needed := neededChunks(int64(entry.StreamSize), sectors.SectorLen())
	if int64(len(entry.SectorChain)) < needed {
		return newFieldError("stream size", ErrBadSizeValue, "%v bytes need %v sectors, chain has %v",
			entry.StreamSize, needed, len(entry.SectorChain))
	}

	for _, sectorId := range entry.SectorChain[:needed] {
		if _, err := sectors.Sector(sectorId); err != nil {
			return err
		}
	}

	return nil
}

func checkMiniChain(entry *DirEntry, rootChain []uint32, miniSectorLen, sectorLen int) error {
	needed := neededChunks(int64(entry.StreamSize), miniSectorLen)
	if int64(len(entry.SectorChain)) < needed {
		return newFieldError("stream size", ErrBadSizeValue, "%v bytes need %v mini sectors, chain has %v",
			entry.StreamSize, needed, len(entry.SectorChain))
	}

	perSector := uint32(sectorLen / miniSectorLen)
	for _, miniSectorId := range entry.SectorChain[:needed] {
		if miniSectorId/perSector >= uint32(len(rootChain)) {
			return fmt.Errorf("mini sector %v lies outside the mini stream (%v sectors): %w",
				miniSectorId, len(rootChain), ErrInvalidFormat)
		}
	}

	return nil
}

// buildTree records parent and children links for the whole directory.
func (d *Directory) buildTree() error {
	visited := make([]bool, len(d.DirEntries))
	return d.linkEntry(visited, ROOT_STREAM_ID, NO_STREAM)
}

// linkEntry records parent and children links starting at id. Child links
// descend one level with id as the new parent; left and right links stay on
// the same level and keep parentId. An entry reached twice is an error.
func (d *Directory) linkEntry(visited []bool, id uint32, parentId uint32) error {
	if id == NO_STREAM || id >= uint32(len(d.DirEntries)) {
		return nil
	}

	entry := d.DirEntries[id]
	if visited[id] {
		return fmt.Errorf("entry %v is reachable twice (parents %v and %v): %w",
			id, entry.Parent, parentId, ErrInvalidFormat)
	}
	visited[id] = true

	// Records outside the hierarchy are not registered, but their sibling
	// links still lead to entries of the same storage.
	if entry.ObjType.inHierarchy() {
		if parentId != NO_STREAM {
			parent := d.DirEntries[parentId]
			parent.Children = append(parent.Children, id)
			entry.Parent = parentId
		}

		if entry.ObjType.IsStorage() {
			if err := d.linkEntry(visited, entry.Child, id); err != nil {
				return err
			}
		}
	}

	if err := d.linkEntry(visited, entry.LeftSibling, parentId); err != nil {
		return err
	}

	return d.linkEntry(visited, entry.RightSibling, parentId)
}

func (d *Directory) RootDirEntry() *DirEntry {
	if len(d.DirEntries) == 0 {
		return nil
	}
	return d.DirEntries[ROOT_STREAM_ID]
}

// Entry returns the entry with the given directory id.
func (d *Directory) Entry(id uint32) (*DirEntry, error) {
	if id >= uint32(len(d.DirEntries)) {
		return nil, fmt.Errorf("directory id %v of %v: %w", id, len(d.DirEntries), ErrNotFound)
	}
	return d.DirEntries[id], nil
}

// Validate checks the sibling trees of every storage for the CFB name
// ordering and for dangling links.
func (d *Directory) Validate() error {
	visited := make(map[uint32]bool)
	stack := []uint32{ROOT_STREAM_ID}

	for len(stack) > 0 {
		dirEntryId := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[dirEntryId] {
			return fmt.Errorf("directory has a cycle at entry %v: %w", dirEntryId, ErrInvalidFormat)
		}
		visited[dirEntryId] = true

		dirEntry := d.DirEntries[dirEntryId]

		if dirEntryId == ROOT_STREAM_ID {
			if dirEntry.ObjType != Root {
				return fmt.Errorf("root entry has object type %v: %w", dirEntry.ObjType, ErrInvalidFormat)
			}
		} else if dirEntry.ObjType != Storage && dirEntry.ObjType != Stream {
			return fmt.Errorf("non-root entry %v with object type %v: %w", dirEntryId, dirEntry.ObjType, ErrInvalidFormat)
		}

		leftSibling := dirEntry.LeftSibling
		if leftSibling != NO_STREAM {
			if leftSibling >= uint32(len(d.DirEntries)) {
				return fmt.Errorf("left sibling index is %v, but directory entry count is %v: %w",
					leftSibling, len(d.DirEntries), ErrInvalidFormat)
			}

			entry := d.DirEntries[leftSibling]
			if CompareNames(entry.Name, dirEntry.Name) != OrderLess {
				return fmt.Errorf("name ordering, %q vs %q: %w", entry.Name, dirEntry.Name, ErrInvalidFormat)
			}

			stack = append(stack, leftSibling)
		}

		rightSibling := dirEntry.RightSibling
		if rightSibling != NO_STREAM {
			if rightSibling >= uint32(len(d.DirEntries)) {
				return fmt.Errorf("right sibling index is %v, but directory entry count is %v: %w",
					rightSibling, len(d.DirEntries), ErrInvalidFormat)
			}

			entry := d.DirEntries[rightSibling]
			if CompareNames(dirEntry.Name, entry.Name) != OrderLess {
				return fmt.Errorf("name ordering, %q vs %q: %w", dirEntry.Name, entry.Name, ErrInvalidFormat)
			}

			stack = append(stack, rightSibling)
		}

		child := dirEntry.Child
		if child != NO_STREAM && dirEntry.ObjType.IsStorage() {
			if child >= uint32(len(d.DirEntries)) {
				return fmt.Errorf("child index is %v, but directory entry count is %v: %w",
					child, len(d.DirEntries), ErrInvalidFormat)
			}

			stack = append(stack, child)
		}
	}

	return nil
}

// ChildByName returns the child of storage id whose name matches name
// case-insensitively.
func (d *Directory) ChildByName(id uint32, name string) (*DirEntry, error) {
	parent, err := d.Entry(id)
	if err != nil {
		return nil, err
	}

	for _, childId := range parent.Children {
		child := d.DirEntries[childId]
		if CompareNames(name, child.Name) == OrderEqual {
			return child, nil
		}
	}

	return nil, fmt.Errorf("%q in %q: %w", name, parent.Name, ErrNotFound)
}

// StreamIDForNameChain resolves names from the root storage down.
func (d *Directory) StreamIDForNameChain(names []string) (uint32, error) {
	streamId := d.RootID

	for _, name := range names {
		entry, err := d.ChildByName(streamId, name)
		if err != nil {
			return 0, err
		}
		streamId = entry.ID
	}

	return streamId, nil
}
