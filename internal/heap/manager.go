package heap

// manager.go implements PageHeapManager (spec.md §4.5): add_record,
// get_data, free_block, and compact, driving the cache the way spec.md
// describes ("brings each touched page into cache (insert on miss) and
// releases it after reading"). Grounded on pageH.h's PageHeapManager.

import (
	"context"
	"sync"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/tin2003tin/tagfilterdb/internal/errs"
	"github.com/tin2003tin/tagfilterdb/internal/lru"
)

// Adjust records that a block moved during compaction: callers (the
// mempool) must rewrite any stored addr from Old to New.
type Adjust struct {
	Old  BlockAddress
	New  BlockAddress
	Data []byte
}

// freeListStressThreshold mirrors pageH.h's hard-coded FREE_LIST_SIZE: once
// a page's explicit free list grows past this, FreeBlock's stress_compact
// path triggers a compaction starting at that page.
const freeListStressThreshold = 10

// Manager owns the set of heap pages, a working-set cache over them, and
// drives record placement, retrieval, freeing and compaction.
type Manager struct {
	mu sync.Mutex

	pages        map[PageID]*Page
	order        []PageID
	maxPageBytes int

	cache *lru.Cache[*Page]

	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// Config configures a Manager.
type Config struct {
	MaxPageBytes int
	// CacheCapacityPages bounds the page working set kept warm in the LRU
	// cache (charge is one unit per resident page).
	CacheCapacityPages int
	// CompressPages, when true, runs payloads through zstd before they are
	// written into a page and decompresses them on read back.
	CompressPages bool
}

// NewManager constructs a Manager per cfg.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.MaxPageBytes <= 0 {
		cfg.MaxPageBytes = 4096
	}
	if cfg.CacheCapacityPages <= 0 {
		cfg.CacheCapacityPages = 100
	}
	cache, err := lru.New[*Page](
		lru.WithShardBits[*Page](0),
		lru.WithTotalCharge[*Page](cfg.CacheCapacityPages),
	)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		pages:        make(map[PageID]*Page),
		maxPageBytes: cfg.MaxPageBytes,
		cache:        cache,
		compress:     cfg.CompressPages,
	}
	if cfg.CompressPages {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, errs.Wrap(errs.IOError, err, "heap: constructing zstd encoder")
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, errs.Wrap(errs.IOError, err, "heap: constructing zstd decoder")
		}
		m.enc, m.dec = enc, dec
	}
	m.allocatePage(1)
	return m, nil
}

func (m *Manager) allocatePage(id PageID) *Page {
	if p, ok := m.pages[id]; ok {
		return p
	}
	p := NewPage(id, m.maxPageBytes)
	m.pages[id] = p
	m.order = append(m.order, id)
	return p
}

func (m *Manager) lastPageID() PageID {
	if len(m.order) == 0 {
		return 0
	}
	return m.order[len(m.order)-1]
}

// acquire brings page id into the working-set cache (inserting on a miss)
// and returns a handle the caller must release.
func (m *Manager) acquire(id PageID) *lru.Handle[*Page] {
	key := pageKey(id)
	if h := m.cache.Lookup(key); h != nil {
		return h
	}
	p := m.pages[id]
	return m.cache.Insert(key, p, 1)
}

func pageKey(id PageID) string {
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(id >> (8 * i))
	}
	return string(buf)
}

func (m *Manager) maybeCompress(payload []byte) []byte {
	if !m.compress {
		return payload
	}
	return m.enc.EncodeAll(payload, nil)
}

func (m *Manager) maybeDecompress(payload []byte) ([]byte, error) {
	if !m.compress {
		return payload, nil
	}
	out, err := m.dec.DecodeAll(payload, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Corruption, err, "heap: zstd decode failed")
	}
	return out, nil
}

// AddRecord stores bytes, spanning across pages as needed, and returns the
// address of the head block (spec.md §4.5).
func (m *Manager) AddRecord(data []byte) (BlockAddress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload := m.maybeCompress(data)
	return m.placeChain(1, payload)
}

// placeChain writes payload starting at or after startPage, spanning into
// further pages for any suffix that doesn't fit, and returns the address of
// the first block written.
func (m *Manager) placeChain(startPage PageID, payload []byte) (BlockAddress, error) {
	pageID := startPage
	var head BlockAddress
	first := true

	for {
		if pageID > m.lastPageID() {
			m.allocatePage(pageID)
		}
		p := m.pages[pageID]

		blockSize := int32(headerSize + len(payload))
		offset, isTail := p.FindFreeHole(blockSize)

		fits := isTail && p.TailRoom() >= blockSize
		fitsHole := !isTail

		switch {
		case fitsHole:
			block := EncodeBlock(false, payload)
			if err := p.Place(offset, false, block); err != nil {
				return BlockAddress{}, err
			}
			addr := BlockAddress{PageID: pageID, Offset: offset}
			if first {
				head, first = addr, false
			}
			return head, nil

		case fits:
			block := EncodeBlock(false, payload)
			if err := p.Place(offset, true, block); err != nil {
				return BlockAddress{}, err
			}
			addr := BlockAddress{PageID: pageID, Offset: offset}
			if first {
				head, first = addr, false
			}
			return head, nil

		default:
			// Spanning: write what fits here with is_append=true, recurse
			// into the next page with the remainder.
			room := p.TailRoom() - headerSize
			if room <= 0 {
				pageID++
				continue
			}
			chunk := payload[:room]
			rest := payload[room:]

			block := EncodeBlock(true, chunk)
			if err := p.Place(offset, isTail, block); err != nil {
				return BlockAddress{}, err
			}
			addr := BlockAddress{PageID: pageID, Offset: offset}
			if first {
				head, first = addr, false
			}
			payload = rest
			pageID++
		}
	}
}

// GetData follows addr's append chain and returns the reassembled bytes.
func (m *Manager) GetData(addr BlockAddress) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []byte
	pageID, offset := addr.PageID, addr.Offset
	for {
		h := m.acquire(pageID)
		p := h.Value()
		assigned, isAppend, size, err := p.DecodeBlockHeader(offset)
		if err != nil {
			m.cache.Release(h)
			return nil, err
		}
		if !assigned {
			m.cache.Release(h)
			return nil, errs.New(errs.Corruption, "heap: read of freed block")
		}
		chunk, err := p.Payload(offset, size)
		m.cache.Release(h)
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
		if !isAppend {
			break
		}
		pageID++
		offset = 0
	}
	return m.maybeDecompress(out)
}

// FreeBlock releases addr's chain. When stressCompact is set and the head
// page's free list has grown past freeListStressThreshold, it runs Compact
// starting at that page and reports whether compaction ran, along with
// whatever Adjusts that compaction produced (the mempool's flush folds
// these into its own adjust_list, per spec.md §4.8).
func (m *Manager) FreeBlock(addr BlockAddress, stressCompact bool) (bool, []Adjust, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freeChainLocked(addr, stressCompact)
}

func (m *Manager) freeChainLocked(addr BlockAddress, stressCompact bool) (bool, []Adjust, error) {
	p, ok := m.pages[addr.PageID]
	if !ok {
		return false, nil, errs.New(errs.OutOfRange, "heap: free of unknown page")
	}
	assigned, isAppend, size, err := p.DecodeBlockHeader(addr.Offset)
	if err != nil {
		return false, nil, err
	}
	if !assigned {
		return false, nil, errs.New(errs.Corruption, "heap: double free")
	}
	if isAppend {
		if _, _, err := m.freeChainLocked(BlockAddress{PageID: addr.PageID + 1, Offset: 0}, false); err != nil {
			return false, nil, err
		}
	}
	blockSize := int32(headerSize) + size
	if err := p.Free(addr.Offset, blockSize); err != nil {
		return false, nil, err
	}

	if stressCompact && p.FreeListLen() > freeListStressThreshold {
		adjusts, err := m.compactLocked(addr.PageID)
		if err != nil {
			return false, nil, err
		}
		return true, adjusts, nil
	}
	return false, nil, nil
}

// Compact packs live blocks toward the front of each page from pageID
// onward, going on to the next page only while the current page's last
// live block carries is_append, and reports every block that moved. Blocks
// move only within their own page; the pieces of a spanning record are not
// merged across page boundaries.
func (m *Manager) Compact(pageID PageID) ([]Adjust, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.compactLocked(pageID)
}

func (m *Manager) compactLocked(pageID PageID) ([]Adjust, error) {
	var adjusts []Adjust

	for pid := pageID; pid <= m.lastPageID(); pid++ {
		p, ok := m.pages[pid]
		if !ok {
			break
		}
		writeOffset := int32(0)
		offset := p.FirstLiveOffset()
		lastWasAppend := false

		for offset != -1 {
			assigned, isAppend, size, err := p.DecodeBlockHeader(offset)
			if err != nil {
				return adjusts, err
			}
			if !assigned {
				break
			}
			payload, err := p.Payload(offset, size)
			if err != nil {
				return adjusts, err
			}
			blockSize := int32(headerSize) + size
			// Find the next live block before moving this one: the move
			// merges this block's old bytes into the hole before it.
			next := p.NextLiveOffset(offset + blockSize)

			if offset != writeOffset {
				if err := p.Free(offset, blockSize); err != nil {
					return adjusts, err
				}
				block := EncodeBlock(isAppend, payload)
				if err := p.Place(writeOffset, writeOffset == p.lastOffset, block); err != nil {
					return adjusts, err
				}
				adjusts = append(adjusts, Adjust{
					Old:  BlockAddress{PageID: pid, Offset: offset},
					New:  BlockAddress{PageID: pid, Offset: writeOffset},
					Data: payload,
				})
			}

			lastWasAppend = isAppend
			writeOffset += blockSize
			offset = next
		}

		if !lastWasAppend {
			break
		}
	}
	return adjusts, nil
}

// CompactAll finds every maximal append-connected run of pages and starts
// one errgroup goroutine per run. Each goroutine calls Compact, which takes
// the manager's mutex, so the runs are compacted one at a time.
func (m *Manager) CompactAll(ctx context.Context) ([]Adjust, error) {
	m.mu.Lock()
	runs := m.findCompactionRuns()
	m.mu.Unlock()

	results := make([][]Adjust, len(runs))
	g, ctx := errgroup.WithContext(ctx)
	for i, start := range runs {
		i, start := i, start
		g.Go(func() error {
			adjusts, err := m.Compact(start)
			if err != nil {
				return err
			}
			results[i] = adjusts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Adjust
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// findCompactionRuns returns the start page of every maximal run of pages
// connected by append chains (a run ends at, and includes, the first page
// whose last live block does not carry is_append).
func (m *Manager) findCompactionRuns() []PageID {
	var starts []PageID
	inRun := false
	for _, pid := range m.order {
		if !inRun {
			starts = append(starts, pid)
			inRun = true
		}
		p := m.pages[pid]
		offset := p.FirstLiveOffset()
		lastWasAppend := false
		for offset != -1 {
			_, isAppend, size, err := p.DecodeBlockHeader(offset)
			if err != nil {
				break
			}
			lastWasAppend = isAppend
			offset = p.NextLiveOffset(offset + int32(headerSize) + size)
		}
		if !lastWasAppend {
			inRun = false
		}
	}
	return starts
}

// PageCount returns the number of pages the manager has allocated.
func (m *Manager) PageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}
