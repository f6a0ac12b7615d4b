package ole

import (
	"fmt"
	"io"
)

// EntrySlice reads the logical bytes of one stream. A stream can be
// fragmented through the file, so the slice keeps one view per sector (or
// mini sector) of its chain and copies across them as needed.
//
// An EntrySlice owns only its cursor. The chunk views borrow the file
// buffer and are never written to.
type EntrySlice struct {
	maxChunkSize int
	chunks       [][]byte

	// bytes already read
	read int64
	// logical size of the stream
	totalSize int64
	// sum of all chunk lengths
	realSize int64
}

func newEntrySlice(maxChunkSize int, size int64) *EntrySlice {
	return &EntrySlice{
		maxChunkSize: maxChunkSize,
		chunks:       make([][]byte, 0, neededChunks(size, maxChunkSize)),
		totalSize:    size,
	}
}

func (s *EntrySlice) addChunk(chunk []byte) {
	s.realSize += int64(len(chunk))
	s.chunks = append(s.chunks, chunk)
}

// Len returns the logical length of the stream.
func (s *EntrySlice) Len() int64 {
	return s.totalSize
}

// RealLen returns the number of bytes staged across all chunks. The last
// chunk is a whole sector, so RealLen may exceed Len.
func (s *EntrySlice) RealLen() int64 {
	return s.realSize
}

// Remaining returns the number of bytes left to read.
func (s *EntrySlice) Remaining() int64 {
	return s.totalSize - s.read
}

// Read copies up to len(p) bytes and advances the cursor. Once the stream
// is exhausted it returns 0, io.EOF.
func (s *EntrySlice) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := s.copyAt(p, s.read)
	s.read += int64(n)

	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// ReadAt copies bytes starting at off without moving the cursor.
func (s *EntrySlice) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %v", off)
	}

	n := s.copyAt(p, off)
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *EntrySlice) Seek(offset int64, whence int) (int64, error) {
	var newOffset int64
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekCurrent:
		newOffset = s.read + offset
	case io.SeekEnd:
		newOffset = s.totalSize + offset
	default:
		return 0, fmt.Errorf("invalid whence %v", whence)
	}

	if newOffset < 0 || newOffset > s.totalSize {
		return 0, fmt.Errorf("invalid offset %v", newOffset)
	}

	s.read = newOffset
	return newOffset, nil
}

// copyAt copies min(len(p), Len()-off) bytes starting at off.
func (s *EntrySlice) copyAt(p []byte, off int64) int {
	if off >= s.totalSize {
		return 0
	}

	toRead := s.totalSize - off
	if int64(len(p)) < toRead {
		toRead = int64(len(p))
	}

	chunkSize := int64(s.maxChunkSize)
	read := int64(0)
	for read < toRead {
		offset := off + read
		chunkIndex := offset / chunkSize
		if chunkIndex >= int64(len(s.chunks)) {
			break
		}

		chunk := s.chunks[chunkIndex]
		localOffset := offset % chunkSize
		if localOffset >= int64(len(chunk)) {
			break
		}

		read += int64(copy(p[read:toRead], chunk[localOffset:]))
	}

	return int(read)
}
