package kvstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
)

var (
	ErrInvalidCRC    = errors.New("invalid crc, the data may be corrupted")
	ErrCorruptHeader = errors.New("corrupt record header, invalid length")
)

var crcTable = crc32.MakeTable(crc32.Castagnoli)

const (
	logFileHeaderSize = 16
	// just a string of "PSPL": paystream spill log.
	logMagicNumber   = 0x5053504C
	logHeaderVersion = 1

	// layout: 4 (checksum) + 4 (key length) + 4 (value length) = 12 bytes
	logRecordHeaderSize = 12

	// initial mmap size; the file doubles when a write would exceed it.
	initialLogSize = 1 * 1024 * 1024
	maxLogSize     = 4 * 1024 * 1024 * 1024

	logFileModePerm = 0o644
)

type recordPos struct {
	offset int64
	keyLen uint32
	valLen uint32
}

// LogStore is a log-structured backing store engine: records append to a
// single memory-mapped file and an in-memory index maps each key to its
// latest record, so overwrites are appends and the last write wins. Records
// carry a CRC32C checksum validated on every read.
type LogStore struct {
	path        string
	fd          *os.File
	mmapData    mmap.MMap
	mmapSize    int64
	writeOffset int64
	index       map[string]recordPos
	closed      bool
}

// OpenLog creates a log-structured store inside dir.
func OpenLog(dir string) (Store, error) {
	path := filepath.Join(dir, "spill.log")

	fd, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, logFileModePerm)
	if err != nil {
		return nil, fmt.Errorf("open log store: %w", err)
	}
	if err := fd.Truncate(initialLogSize); err != nil {
		_ = fd.Close()
		return nil, fmt.Errorf("truncate log store: %w", err)
	}
	mmapData, err := mmap.Map(fd, mmap.RDWR, 0)
	if err != nil {
		_ = fd.Close()
		return nil, fmt.Errorf("mmap log store: %w", err)
	}

	s := &LogStore{
		path:        path,
		fd:          fd,
		mmapData:    mmapData,
		mmapSize:    initialLogSize,
		writeOffset: logFileHeaderSize,
		index:       make(map[string]recordPos),
	}
	s.writeInitialHeader()
	return s, nil
}

func (s *LogStore) writeInitialHeader() {
	binary.LittleEndian.PutUint32(s.mmapData[0:4], logMagicNumber)
	binary.LittleEndian.PutUint32(s.mmapData[4:8], logHeaderVersion)
	binary.LittleEndian.PutUint64(s.mmapData[8:16], 0)
}

// grow remaps the file at double the current size until the next record
// fits. The index keeps absolute offsets so it survives the remap as-is.
func (s *LogStore) grow(need int64) error {
	newSize := s.mmapSize
	for s.writeOffset+need > newSize {
		newSize *= 2
	}
	if newSize > maxLogSize {
		return fmt.Errorf("log store size exceeds 4 GiB limit: %d bytes", newSize)
	}

	if err := s.mmapData.Unmap(); err != nil {
		return fmt.Errorf("unmap for grow: %w", err)
	}
	if err := s.fd.Truncate(newSize); err != nil {
		return fmt.Errorf("truncate for grow: %w", err)
	}
	mmapData, err := mmap.Map(s.fd, mmap.RDWR, 0)
	if err != nil {
		return fmt.Errorf("remap after grow: %w", err)
	}

	s.mmapData = mmapData
	s.mmapSize = newSize
	return nil
}

func (s *LogStore) Put(key, value []byte) error {
	if s.closed {
		return ErrStoreClosed
	}

	recordSize := int64(logRecordHeaderSize + len(key) + len(value))
	if s.writeOffset+recordSize > s.mmapSize {
		if err := s.grow(recordSize); err != nil {
			return err
		}
	}

	offset := s.writeOffset
	header := s.mmapData[offset : offset+logRecordHeaderSize]
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(key)))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(value)))

	copy(s.mmapData[offset+logRecordHeaderSize:], key)
	copy(s.mmapData[offset+logRecordHeaderSize+int64(len(key)):], value)

	sum := crc32.Checksum(header[4:12], crcTable)
	sum = crc32.Update(sum, crcTable, key)
	sum = crc32.Update(sum, crcTable, value)
	binary.LittleEndian.PutUint32(header[0:4], sum)

	s.index[string(key)] = recordPos{
		offset: offset,
		keyLen: uint32(len(key)),
		valLen: uint32(len(value)),
	}
	s.writeOffset = offset + recordSize
	return nil
}

func (s *LogStore) Get(key []byte) ([]byte, bool, error) {
	if s.closed {
		return nil, false, ErrStoreClosed
	}

	pos, ok := s.index[string(key)]
	if !ok {
		return nil, false, nil
	}

	end := pos.offset + logRecordHeaderSize + int64(pos.keyLen) + int64(pos.valLen)
	if end > s.writeOffset {
		return nil, false, ErrCorruptHeader
	}

	header := s.mmapData[pos.offset : pos.offset+logRecordHeaderSize]
	keyStart := pos.offset + logRecordHeaderSize
	valStart := keyStart + int64(pos.keyLen)

	savedSum := binary.LittleEndian.Uint32(header[0:4])
	sum := crc32.Checksum(header[4:12], crcTable)
	sum = crc32.Update(sum, crcTable, s.mmapData[keyStart:valStart])
	sum = crc32.Update(sum, crcTable, s.mmapData[valStart:end])
	if savedSum != sum {
		return nil, false, ErrInvalidCRC
	}

	// copy out: the mmap slice is invalidated by grow and Close
	value := append([]byte(nil), s.mmapData[valStart:end]...)
	return value, true, nil
}

func (s *LogStore) Contains(key []byte) (bool, error) {
	if s.closed {
		return false, ErrStoreClosed
	}
	_, ok := s.index[string(key)]
	return ok, nil
}

func (s *LogStore) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.index = nil

	if err := s.mmapData.Unmap(); err != nil {
		_ = s.fd.Close()
		return fmt.Errorf("unmap log store: %w", err)
	}
	if err := s.fd.Close(); err != nil {
		return fmt.Errorf("close log store: %w", err)
	}
	return nil
}

var _ Store = (*LogStore)(nil)
