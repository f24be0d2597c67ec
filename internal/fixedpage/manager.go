package fixedpage

import (
	"sync"

	"github.com/tin2003tin/tagfilterdb/internal/errs"
)

// Manager owns a growable collection of fixed-size pages, all sharing one
// capacity and block size, and assigns free slots to callers. Grounded on
// page.h's PageNodeManager; unlike the original's single-threaded std::vector
// walk, every operation here takes the manager's mutex, since spec.md §5
// requires the fixed-page layer (backing the R-tree's persisted form) to be
// safe for concurrent callers the way the heap and mempool are.
type Manager struct {
	mu sync.Mutex

	pages     map[PageID]*Page
	order     []PageID
	blockSize int
	maxBytes  int
	nextID    PageID
}

// NewManager constructs a Manager whose pages hold blockSize-byte slots
// within maxBytes-byte pages (raised to minimumPageBytes if smaller). The
// first page (id 1) is allocated eagerly.
func NewManager(maxBytes, blockSize int) *Manager {
	if maxBytes < minimumPageBytes {
		maxBytes = minimumPageBytes
	}
	m := &Manager{
		pages:     make(map[PageID]*Page),
		blockSize: blockSize,
		maxBytes:  maxBytes,
		nextID:    2,
	}
	first := newPage(1, maxBytes, blockSize)
	m.pages[1] = first
	m.order = append(m.order, 1)
	return m
}

// AllocatePage returns the page with the given id, extending the manager
// with fresh pages up to and including id if necessary, then walks forward
// from id to find the first page with a free slot, creating a new trailing
// page if every existing page from id onward is full.
func (m *Manager) AllocatePage(id PageID) *Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allocatePageLocked(id)
}

func (m *Manager) allocatePageLocked(id PageID) *Page {
	for int(id) > len(m.order) {
		newID := PageID(len(m.order) + 1)
		m.pages[newID] = newPage(newID, m.maxBytes, m.blockSize)
		m.order = append(m.order, newID)
		m.nextID = newID + 1
	}

	for cur := id; int(cur) <= len(m.order); cur++ {
		p := m.pages[cur]
		if _, ok := p.FindFreeSlot(); ok {
			return p
		}
	}

	newID := m.nextID
	p := newPage(newID, m.maxBytes, m.blockSize)
	m.pages[newID] = p
	m.order = append(m.order, newID)
	m.nextID = newID + 1
	return p
}

// Assign finds and reserves the first free slot at or after pageID, marking
// it used, and returns the page id and byte offset it was assigned.
func (m *Manager) Assign(pageID PageID) (PageID, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.allocatePageLocked(pageID)
	slot, ok := p.FindFreeSlot()
	if !ok {
		return 0, 0, errs.New(errs.OutOfRange, "fixedpage: manager returned a full page")
	}
	if err := p.AllocateSlot(slot); err != nil {
		return 0, 0, err
	}
	return p.id, slot * p.blockSize, nil
}

// GetPage returns the page with the given id, or false if it doesn't exist.
func (m *Manager) GetPage(id PageID) (*Page, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[id]
	return p, ok
}

// Size returns the number of pages the manager holds.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

// NextPageID returns the id that will be used for the next page the manager
// creates.
func (m *Manager) NextPageID() PageID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextID
}
