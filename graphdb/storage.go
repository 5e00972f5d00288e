package graphdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// fileMagic identifies a KiteDB graph file. It occupies the first four bytes
// of page 0, followed by the page size and page count as little-endian uint32.
var fileMagic = []byte("GDB\000")

const (
	headerMagicOff     = 0
	headerPageSizeOff  = 4
	headerPageCountOff = 8
	minPageSize        = 16
)

// StorageManager handles disk I/O for the database
type StorageManager struct {
	file     afero.File
	pageSize int
	numPages int
}

// NewStorageManager opens or initializes the database file. An empty file is
// given a fresh header; an existing file must be page-aligned and carry a
// matching header.
func NewStorageManager(fs afero.Fs, filename string, pageSize int) (*StorageManager, error) {
	log := logrus.WithFields(logrus.Fields{
		"filename":  filename,
		"page_size": pageSize,
	})
	log.Info("Initializing StorageManager")

	if pageSize < minPageSize {
		log.Error("Page size too small")
		return nil, fmt.Errorf("%w: page size %d below minimum %d", ErrInvalidArgument, pageSize, minPageSize)
	}

	file, err := fs.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		log.WithError(err).Error("Failed to open storage file")
		return nil, err
	}

	fileInfo, err := file.Stat()
	if err != nil {
		log.WithError(err).Error("Failed to stat storage file")
		file.Close()
		return nil, err
	}
	fileSize := fileInfo.Size()

	sm := &StorageManager{file: file, pageSize: pageSize}

	if fileSize == 0 {
		log.Debug("Initializing new database file with header")
		sm.numPages = 1
		if err := sm.writeHeader(); err != nil {
			log.WithError(err).Error("Failed to write header")
			file.Close()
			return nil, err
		}
		return sm, nil
	}

	if fileSize%int64(pageSize) != 0 {
		log.Error("File size not aligned with page size")
		file.Close()
		return nil, fmt.Errorf("%w: file size %d not a multiple of page size %d", ErrInvalidArgument, fileSize, pageSize)
	}
	sm.numPages = int(fileSize / int64(pageSize))

	header := make([]byte, pageSize)
	if _, err := file.ReadAt(header, 0); err != nil {
		log.WithError(err).Error("Failed to read header")
		file.Close()
		return nil, err
	}
	if !bytes.Equal(header[headerMagicOff:headerMagicOff+4], fileMagic) {
		log.Error("Bad magic in header")
		file.Close()
		return nil, fmt.Errorf("%w: not a graph database file", ErrMalformed)
	}
	if stored := binary.LittleEndian.Uint32(header[headerPageSizeOff : headerPageSizeOff+4]); int(stored) != pageSize {
		log.WithField("stored_page_size", stored).Error("Page size mismatch")
		file.Close()
		return nil, fmt.Errorf("%w: file uses page size %d, opened with %d", ErrInvalidArgument, stored, pageSize)
	}

	log.WithField("num_pages", sm.numPages).Debug("Opened existing database file")
	return sm, nil
}

// writeHeader rewrites page 0 with the current page count
func (sm *StorageManager) writeHeader() error {
	header := make([]byte, sm.pageSize)
	copy(header[headerMagicOff:], fileMagic)
	binary.LittleEndian.PutUint32(header[headerPageSizeOff:], uint32(sm.pageSize))
	binary.LittleEndian.PutUint32(header[headerPageCountOff:], uint32(sm.numPages))
	_, err := sm.file.WriteAt(header, 0)
	return err
}

// ReadPage reads a page from disk
func (sm *StorageManager) ReadPage(pageID int) ([]byte, error) {
	log := logrus.WithField("page_id", pageID)
	if pageID < 0 || pageID >= sm.numPages {
		log.Error("Invalid page ID")
		return nil, fmt.Errorf("%w: page %d out of range [0, %d)", ErrInvalidArgument, pageID, sm.numPages)
	}

	data := make([]byte, sm.pageSize)
	if _, err := sm.file.ReadAt(data, int64(pageID)*int64(sm.pageSize)); err != nil {
		log.WithError(err).Error("Failed to read page")
		return nil, err
	}
	return data, nil
}

// WritePage writes a full page to disk
func (sm *StorageManager) WritePage(pageID int, data []byte) error {
	log := logrus.WithField("page_id", pageID)
	if pageID < 0 || pageID >= sm.numPages {
		log.Error("Invalid page ID")
		return fmt.Errorf("%w: page %d out of range [0, %d)", ErrInvalidArgument, pageID, sm.numPages)
	}
	if len(data) != sm.pageSize {
		log.WithField("data_len", len(data)).Error("Invalid data length")
		return fmt.Errorf("%w: write of %d bytes to page of %d", ErrInvalidArgument, len(data), sm.pageSize)
	}

	if _, err := sm.file.WriteAt(data, int64(pageID)*int64(sm.pageSize)); err != nil {
		log.WithError(err).Error("Failed to write page")
		return err
	}
	return nil
}

// AllocatePage extends the file by one zeroed page and returns its ID
func (sm *StorageManager) AllocatePage() (int, error) {
	log := logrus.WithField("component", "StorageManager")
	pageID := sm.numPages
	newPage := make([]byte, sm.pageSize)
	if _, err := sm.file.WriteAt(newPage, int64(pageID)*int64(sm.pageSize)); err != nil {
		log.WithError(err).Error("Failed to allocate new page")
		return -1, err
	}
	sm.numPages++

	if err := sm.writeHeader(); err != nil {
		log.WithError(err).Error("Failed to update header")
		return -1, err
	}
	log.WithField("new_page_id", pageID).Debug("Allocated new page")
	return pageID, nil
}

// NumPages returns the current page count, header page included
func (sm *StorageManager) NumPages() int {
	return sm.numPages
}

// PageSize returns the page size the file was opened with
func (sm *StorageManager) PageSize() int {
	return sm.pageSize
}

// Close flushes and closes the storage file
func (sm *StorageManager) Close() error {
	log := logrus.WithField("component", "StorageManager")
	if err := sm.file.Sync(); err != nil {
		log.WithError(err).Error("Failed to sync file")
		return err
	}
	if err := sm.file.Close(); err != nil {
		log.WithError(err).Error("Failed to close file")
		return err
	}
	log.Info("Storage file closed")
	return nil
}
