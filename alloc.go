package ole

import (
	"fmt"
)

// AllocationTables are the tables rebuilt from the header seeds.
type AllocationTables struct {
	// DifatSectorIds lists the sectors holding the DIFAT chain.
	DifatSectorIds []uint32
	// Difat lists the sectors holding the FAT, in FAT order.
	Difat []uint32
	// Fat maps a sector id to the next sector id of its chain.
	Fat []uint32
	// Minifat maps a mini sector id to the next mini sector id of its chain.
	Minifat []uint32
	// MinifatSectorIds lists the sectors holding the mini FAT.
	MinifatSectorIds []uint32
	// DirSectors lists the sectors holding directory records.
	DirSectors []uint32
}

func buildAllocationTables(header *Header, sectors *Sectors, validation Validation) (*AllocationTables, error) {
	difatSectorIds, difat, err := buildDifat(header, sectors)
	if err != nil {
		return nil, err
	}

	if validation.IsStrict() && header.NumDifatSectors != uint32(len(difatSectorIds)) {
		return nil, fmt.Errorf("incorrect DIFAT chain length (header says %v, actual is %v): %w",
			header.NumDifatSectors, len(difatSectorIds), ErrInvalidFormat)
	}

	if header.NumFatSectors != uint32(len(difat)) {
		return nil, fmt.Errorf("incorrect number of FAT sectors (header says %v, DIFAT says %v): %w",
			header.NumFatSectors, len(difat), ErrInvalidFormat)
	}

	fat := make([]uint32, 0, len(difat)*header.Version.SectorIdsPerSector())
	for _, sectorId := range difat {
		ids, err := sectors.SectorIds(sectorId)
		if err != nil {
			return nil, fmt.Errorf("read FAT sector %v: %w", sectorId, err)
		}
		fat = append(fat, ids...)
	}

	tables := &AllocationTables{
		DifatSectorIds: difatSectorIds,
		Difat:          difat,
		Fat:            fat,
	}

	if validation.IsStrict() {
		if err := tables.Validate(sectors); err != nil {
			return nil, err
		}
	}

	tables.MinifatSectorIds, err = walkChain(fat, header.FirstMinifatSector)
	if err != nil {
		return nil, fmt.Errorf("mini FAT chain: %w", err)
	}

	if validation.IsStrict() && header.NumMinifatSectors != uint32(len(tables.MinifatSectorIds)) {
		return nil, fmt.Errorf("incorrect number of MiniFAT sectors (header says %v, FAT says %v): %w",
			header.NumMinifatSectors, len(tables.MinifatSectorIds), ErrInvalidFormat)
	}

	tables.Minifat = make([]uint32, 0, len(tables.MinifatSectorIds)*header.Version.SectorIdsPerSector())
	for _, sectorId := range tables.MinifatSectorIds {
		ids, err := sectors.SectorIds(sectorId)
		if err != nil {
			return nil, fmt.Errorf("read mini FAT sector %v: %w", sectorId, err)
		}
		tables.Minifat = append(tables.Minifat, ids...)
	}

	tables.DirSectors, err = walkChain(fat, header.FirstDirSector)
	if err != nil {
		return nil, fmt.Errorf("directory chain: %w", err)
	}
	if len(tables.DirSectors) == 0 {
		return nil, fmt.Errorf("directory chain is empty: %w", ErrInvalidFormat)
	}

	return tables, nil
}

// buildDifat collects the FAT sector locations from the header and the
// DIFAT chain. Free slots are skipped wherever they appear.
func buildDifat(header *Header, sectors *Sectors) ([]uint32, []uint32, error) {
	difat := make([]uint32, 0, NUM_DIFAT_ENTRIES_IN_HEADER)
	for _, sectorId := range header.InitialDifatEntries {
		if sectorId == FREE_SECTOR {
			continue
		}
		if sectorId > MAX_REGULAR_SECTOR {
			return nil, nil, fmt.Errorf("header DIFAT refers to invalid sector index %x: %w", sectorId, ErrInvalidFormat)
		}
		difat = append(difat, sectorId)
	}

	difatSectorIds := make([]uint32, 0)
	if header.NumDifatSectors == 0 {
		return difatSectorIds, difat, nil
	}

	seenSectorIds := make(map[uint32]bool)
	currentDifatSector := header.FirstDifatSector

	for !isChainEnd(currentDifatSector) {
		if currentDifatSector > MAX_REGULAR_SECTOR {
			return nil, nil, fmt.Errorf("DIFAT chain does not end with END_OF_CHAIN (found %x): %w",
				currentDifatSector, ErrInvalidFormat)
		}

		if seenSectorIds[currentDifatSector] {
			return nil, nil, fmt.Errorf("DIFAT chain includes duplicate sector index %v: %w",
				currentDifatSector, ErrInvalidFormat)
		}
		seenSectorIds[currentDifatSector] = true
		difatSectorIds = append(difatSectorIds, currentDifatSector)

		ids, err := sectors.SectorIds(currentDifatSector)
		if err != nil {
			return nil, nil, fmt.Errorf("read DIFAT sector %v: %w", currentDifatSector, err)
		}

		for _, next := range ids[:len(ids)-1] {
			if next == FREE_SECTOR {
				continue
			}
			if next > MAX_REGULAR_SECTOR {
				return nil, nil, fmt.Errorf("DIFAT refers to invalid sector index %x: %w", next, ErrInvalidFormat)
			}
			difat = append(difat, next)
		}

		currentDifatSector = ids[len(ids)-1]
	}

	return difatSectorIds, difat, nil
}

// Validate checks that the FAT agrees with the DIFAT and that no sector is
// claimed by two chains.
func (t *AllocationTables) Validate(sectors *Sectors) error {
	numEntries := trimmedLen(t.Fat)
	if numEntries > int(sectors.NumSectors) {
		return fmt.Errorf("fat has %v entries, but file has %v sectors: %w",
			numEntries, sectors.NumSectors, ErrInvalidFormat)
	}

	for _, difatSector := range t.DifatSectorIds {
		if difatSector >= uint32(len(t.Fat)) {
			return fmt.Errorf("FAT has %v entries, but DIFAT lists %v as a DIFAT sector: %w",
				len(t.Fat), difatSector, ErrInvalidFormat)
		}

		if t.Fat[difatSector] != DIFAT_SECTOR {
			return fmt.Errorf("DIFAT sector %v is not marked as such in the FAT: %w", difatSector, ErrInvalidFormat)
		}
	}

	for _, fatSector := range t.Difat {
		if fatSector >= uint32(len(t.Fat)) {
			return fmt.Errorf("FAT has %v entries, but DIFAT lists %v as a FAT sector: %w",
				len(t.Fat), fatSector, ErrInvalidFormat)
		}

		if t.Fat[fatSector] != FAT_SECTOR {
			return fmt.Errorf("FAT sector %v is not marked as such in the FAT: %w", fatSector, ErrInvalidFormat)
		}
	}

	return checkPointees("FAT", t.Fat)
}

// checkPointees rejects tables where two entries point at the same id or an
// entry holds a reserved value.
func checkPointees(name string, table []uint32) error {
	pointees := make(map[uint32]bool)
	for idx, next := range table {
		if next <= MAX_REGULAR_SECTOR {
			if next >= uint32(len(table)) {
				return fmt.Errorf("%s entry %v points to %v, but table has only %v entries: %w",
					name, idx, next, len(table), ErrInvalidFormat)
			}
			if pointees[next] {
				return fmt.Errorf("%s entry %v points to %v, which is already pointed to by another entry: %w",
					name, idx, next, ErrInvalidFormat)
			}
			pointees[next] = true
		} else if next == INVALID_SECTOR {
			return fmt.Errorf("%s entry %v holds the reserved value %x: %w", name, idx, next, ErrInvalidFormat)
		}
	}

	return nil
}

// trimmedLen is the table length without trailing free entries.
func trimmedLen(table []uint32) int {
	n := len(table)
	for n > 0 && table[n-1] == FREE_SECTOR {
		n--
	}
	return n
}
