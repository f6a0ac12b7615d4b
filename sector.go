package ole

import "fmt"

// Sectors maps sector ids onto the in-memory file body. Sector 0 starts
// right after the header sector.
type Sectors struct {
	Version    Version
	NumSectors uint32

	body []byte
}

func NewSectors(v Version, body []byte) *Sectors {
	sectorLen := int64(v.SectorLen())
	numSectors := ((int64(len(body)) + sectorLen - 1) / sectorLen) - 1
	if numSectors < 0 {
		numSectors = 0
	}

	return &Sectors{
		Version:    v,
		NumSectors: uint32(numSectors),
		body:       body,
	}
}

func (s *Sectors) SectorLen() int {
	return s.Version.SectorLen()
}

// Sector returns the bytes of sector sectorId. A sector that lies beyond
// the end of the buffer, fully or partly, is a ErrBadSizeValue.
func (s *Sectors) Sector(sectorId uint32) ([]byte, error) {
	sectorLen := int64(s.SectorLen())
	start := (int64(sectorId) + 1) * sectorLen
	end := start + sectorLen

	if sectorId > MAX_REGULAR_SECTOR || end > int64(len(s.body)) {
		return nil, fmt.Errorf("sector %v ends at offset %v, but file is only %v bytes: %w",
			sectorId, end, len(s.body), ErrBadSizeValue)
	}

	return s.body[start:end:end], nil
}

// SubSector returns length bytes at offset within sector sectorId.
func (s *Sectors) SubSector(sectorId uint32, offset, length int) ([]byte, error) {
	sector, err := s.Sector(sectorId)
	if err != nil {
		return nil, err
	}

	if offset < 0 || length < 0 || offset+length > len(sector) {
		return nil, fmt.Errorf("range [%v, %v) outside sector %v: %w", offset, offset+length, sectorId, ErrBadSizeValue)
	}

	return sector[offset : offset+length : offset+length], nil
}

// SectorIds decodes sector sectorId as a run of little-endian sector ids.
func (s *Sectors) SectorIds(sectorId uint32) ([]uint32, error) {
	sector, err := s.Sector(sectorId)
	if err != nil {
		return nil, err
	}

	return decodeSectorIds(sector), nil
}
