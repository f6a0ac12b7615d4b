package ole

import (
	"encoding/binary"
	"fmt"
)

// walkChain follows table from start and returns the visited ids in order.
// The walk ends when the entry of the current id is END_OF_CHAIN or
// FREE_SECTOR. A start of END_OF_CHAIN or FREE_SECTOR is an empty chain.
//
// Every id in the chain indexes table, so out-of-range ids, reserved marker
// values and revisited ids are reported as ErrInvalidFormat instead of
// looping or indexing out of bounds.
func walkChain(table []uint32, start uint32) ([]uint32, error) {
	sectorIds := make([]uint32, 0)
	if isChainEnd(start) {
		return sectorIds, nil
	}

	seen := make([]bool, len(table))
	currentSectorId := start

	for {
		if currentSectorId > MAX_REGULAR_SECTOR || currentSectorId >= uint32(len(table)) {
			return nil, fmt.Errorf("chain from %v refers to sector %v, but table has %v entries: %w",
				start, currentSectorId, len(table), ErrInvalidFormat)
		}

		if seen[currentSectorId] {
			return nil, fmt.Errorf("chain from %v contains duplicate sector id %v: %w",
				start, currentSectorId, ErrInvalidFormat)
		}
		seen[currentSectorId] = true

		sectorIds = append(sectorIds, currentSectorId)

		next := table[currentSectorId]
		if isChainEnd(next) {
			return sectorIds, nil
		}
		currentSectorId = next
	}
}

func decodeSectorIds(b []byte) []uint32 {
	ids := make([]uint32, len(b)/SECTOR_ID_LEN)
	for i := range ids {
		ids[i] = binary.LittleEndian.Uint32(b[i*SECTOR_ID_LEN:])
	}
	return ids
}
