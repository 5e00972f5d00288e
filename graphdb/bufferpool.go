package graphdb

import (
	"container/list"
	"fmt"

	"github.com/sirupsen/logrus"
)

// BufferPool is a write-through LRU cache of pages over a StorageManager.
// Returned slices are owned by the pool; callers must not retain them across
// later pool calls.
type BufferPool struct {
	storage  *StorageManager
	capacity int
	pages    map[int][]byte
	lru      *list.List
	lruKeys  map[int]*list.Element
}

// NewBufferPool initializes a BufferPool with the given page capacity
func NewBufferPool(storage *StorageManager, capacity int) (*BufferPool, error) {
	log := logrus.WithField("capacity", capacity)
	if capacity < 1 {
		log.Error("Buffer capacity below one")
		return nil, fmt.Errorf("%w: buffer capacity %d", ErrInvalidArgument, capacity)
	}
	log.Info("Initializing BufferPool (single-threaded, write-through)")
	return &BufferPool{
		storage:  storage,
		capacity: capacity,
		pages:    make(map[int][]byte),
		lru:      list.New(),
		lruKeys:  make(map[int]*list.Element),
	}, nil
}

// GetPage retrieves a page, loading from disk if not in cache
func (bp *BufferPool) GetPage(pageID int) ([]byte, error) {
	log := logrus.WithField("page_id", pageID)

	if data, ok := bp.pages[pageID]; ok {
		bp.lru.MoveToFront(bp.lruKeys[pageID])
		log.Debug("Page found in buffer pool")
		return data, nil
	}

	data, err := bp.storage.ReadPage(pageID)
	if err != nil {
		log.WithError(err).Error("Failed to read page from storage")
		return nil, err
	}

	bp.insert(pageID, data)
	log.Debug("Page loaded into buffer pool")
	return data, nil
}

// WritePage writes a page through to disk and refreshes the cache entry
func (bp *BufferPool) WritePage(pageID int, data []byte) error {
	log := logrus.WithField("page_id", pageID)

	if err := bp.storage.WritePage(pageID, data); err != nil {
		log.WithError(err).Error("Failed to write page to storage")
		return err
	}

	if _, ok := bp.pages[pageID]; ok {
		bp.pages[pageID] = data
		bp.lru.MoveToFront(bp.lruKeys[pageID])
	} else {
		bp.insert(pageID, data)
	}
	log.Debug("Page written and cached")
	return nil
}

// insert adds a page to the cache, evicting the LRU entry at capacity
func (bp *BufferPool) insert(pageID int, data []byte) {
	if len(bp.pages) >= bp.capacity {
		bp.evictPage()
	}
	bp.pages[pageID] = data
	bp.lruKeys[pageID] = bp.lru.PushFront(pageID)
}

// evictPage removes the least recently used page from the cache
func (bp *BufferPool) evictPage() {
	elem := bp.lru.Back()
	if elem == nil {
		return
	}
	pageID := elem.Value.(int)
	bp.lru.Remove(elem)
	delete(bp.pages, pageID)
	delete(bp.lruKeys, pageID)
	logrus.WithField("page_id", pageID).Debug("Evicted page")
}

// Len returns the number of cached pages
func (bp *BufferPool) Len() int {
	return len(bp.pages)
}

// Close drops all cached entries; storage holds the durable copies
func (bp *BufferPool) Close() error {
	log := logrus.WithField("component", "buffer_pool")
	bp.pages = make(map[int][]byte)
	bp.lru.Init()
	bp.lruKeys = make(map[int]*list.Element)
	log.Info("BufferPool closed")
	return nil
}
