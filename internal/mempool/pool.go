// Package mempool implements the mempool described in spec.md §4.8: it
// buffers inserts (unsigned records awaiting a disk address), serves reads
// by consulting a signed-record cache before falling through to the paged
// heap, batches deletes until flush, and on flush signs every pending
// insert while folding in whatever Adjusts a stress-triggered compaction
// produced. Grounded on
// original_source/include/tagfilterdb/memPool.h.
package mempool

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/tin2003tin/tagfilterdb/internal/arena"
	"github.com/tin2003tin/tagfilterdb/internal/heap"
)

// Config mirrors the original's MemPoolOpinion: a page size and a total
// cache charge, the latter defaulting to 100 pages' worth (spec.md §6's
// "default total cache charge = 1000 × per-entry charge of 8" governs the
// LRU cache directly; the page-working-set cache here uses the analogous
// one-unit-per-page convention from internal/heap).
type Config struct {
	PageMaxBytes       int
	CacheCapacityPages int
	CompressPages      bool
}

func (c Config) heapConfig() heap.Config {
	return heap.Config{
		MaxPageBytes:       c.PageMaxBytes,
		CacheCapacityPages: c.CacheCapacityPages,
		CompressPages:      c.CompressPages,
	}
}

// Pool is the mempool: a page manager plus the three pending lists spec.md
// §4.8 names (signed, unsigned, freed) and a singleflight group that
// deduplicates concurrent Get calls for the same not-yet-cached address
// (SPEC_FULL.md §6a).
type Pool struct {
	mu sync.Mutex

	manager *heap.Manager
	arena   *arena.Arena

	signed   map[heap.BlockAddress]*DataView
	unsigned []*Record
	freed    []heap.BlockAddress

	getGroup singleflight.Group
}

// New constructs a Pool over a fresh heap.Manager, with records allocated
// from a (typically the owning memtable's arena).
func New(cfg Config, a *arena.Arena) (*Pool, error) {
	m, err := heap.NewManager(cfg.heapConfig())
	if err != nil {
		return nil, err
	}
	return &Pool{
		manager: m,
		arena:   a,
		signed:  make(map[heap.BlockAddress]*DataView),
	}, nil
}

// Insert arena-copies data and appends it to the unsigned list, returning
// the pointer the spatial index stores as a branch's payload (spec.md
// §4.8). The record's Addr is zero until Flush signs it.
func (p *Pool) Insert(data []byte) *Record {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := &Record{Data: DataView{Bytes: data}.Align(p.arena)}
	p.unsigned = append(p.unsigned, rec)
	return rec
}

// Get returns the DataView at addr, consulting the signed list first and
// falling through to the page manager on a miss (spec.md §4.8). Concurrent
// misses for the same address collapse into a single page-manager read.
func (p *Pool) Get(addr heap.BlockAddress) (*DataView, error) {
	p.mu.Lock()
	if dv, ok := p.signed[addr]; ok {
		p.mu.Unlock()
		return dv, nil
	}
	p.mu.Unlock()

	v, err, _ := p.getGroup.Do(addrKey(addr), func() (interface{}, error) {
		p.mu.Lock()
		if dv, ok := p.signed[addr]; ok {
			p.mu.Unlock()
			return dv, nil
		}
		p.mu.Unlock()

		raw, err := p.manager.GetData(addr)
		if err != nil {
			return nil, err
		}
		view := DataView{Bytes: raw}.Align(p.arena)

		p.mu.Lock()
		p.signed[addr] = &view
		p.mu.Unlock()
		return &view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*DataView), nil
}

// Delete appends addr to the freed list; the actual free happens on the
// next Flush (spec.md §4.8).
func (p *Pool) Delete(addr heap.BlockAddress) heap.BlockAddress {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freed = append(p.freed, addr)
	return addr
}

// CancelInsert removes rec from the pending unsigned list if Flush hasn't
// signed it yet, reporting whether it found and removed it. This is what
// lets a caller remove a just-inserted-but-not-yet-flushed record without
// it silently reappearing on disk at the next Flush.
func (p *Pool) CancelInsert(rec *Record) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, r := range p.unsigned {
		if r == rec {
			p.unsigned = append(p.unsigned[:i], p.unsigned[i+1:]...)
			return true
		}
	}
	return false
}

// Flush applies every pending free (with stress compaction), then signs
// every pending insert by writing it to the page manager and updating its
// Record's Addr in place. It reports whether any compaction ran and the
// combined Adjust list from every compaction that did, which the memtable
// uses to rewrite the spatial index's branch pointers (SPEC_FULL.md
// supplemented feature 4).
func (p *Pool) Flush() (bool, []heap.Adjust, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var didCompact bool
	var adjusts []heap.Adjust

	for _, addr := range p.freed {
		compacted, a, err := p.manager.FreeBlock(addr, true)
		if err != nil {
			return didCompact, adjusts, err
		}
		if compacted {
			didCompact = true
			adjusts = append(adjusts, a...)
		}
	}
	p.freed = p.freed[:0]

	for _, rec := range p.unsigned {
		addr, err := p.manager.AddRecord(rec.Data.Bytes)
		if err != nil {
			return didCompact, adjusts, err
		}
		rec.Addr = addr
	}
	p.unsigned = p.unsigned[:0]

	return didCompact, adjusts, nil
}

// Manager exposes the underlying page manager, e.g. for the memtable's
// Save/Load of the paged heap file (spec.md §6).
func (p *Pool) Manager() *heap.Manager { return p.manager }

func addrKey(addr heap.BlockAddress) string {
	return strconv.FormatInt(int64(addr.PageID), 10) + ":" + strconv.FormatInt(int64(addr.Offset), 10)
}
