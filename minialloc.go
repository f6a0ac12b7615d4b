package ole

import "fmt"

// validateMinifat checks the mini FAT against the mini stream held by the
// root entry.
func validateMinifat(root *DirEntry, minifat []uint32, miniSectorLen int) error {
	if root.StreamSize%uint64(miniSectorLen) != 0 {
		return fmt.Errorf("root stream len is %v, but should be multiple of %v: %w",
			root.StreamSize, miniSectorLen, ErrInvalidFormat)
	}

	used := minifat[:trimmedLen(minifat)]
	rootStreamMiniSectors := root.StreamSize / uint64(miniSectorLen)
	if rootStreamMiniSectors < uint64(len(used)) {
		return fmt.Errorf("miniFAT has %v entries, but root stream has only %v mini sectors: %w",
			len(used), rootStreamMiniSectors, ErrInvalidFormat)
	}

	return checkPointees("miniFAT", used)
}
