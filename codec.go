package tagfilterdb

// codec.go implements rtree.PayloadCodec[*mempool.Record]: the spatial
// index file (spec.md §6) only ever needs a leaf's signed on-disk
// address, since by Save time every record reachable from the index has
// already been flushed — Save runs Flush before writing (see memtable.go).

import (
	"github.com/tin2003tin/tagfilterdb/internal/heap"
	"github.com/tin2003tin/tagfilterdb/internal/mempool"
)

type recordCodec struct{}

func (recordCodec) Encode(rec *mempool.Record) (int64, int32) {
	return int64(rec.Addr.PageID), rec.Addr.Offset
}

func (recordCodec) Decode(pageID int64, offset int32) *mempool.Record {
	return &mempool.Record{Addr: heap.BlockAddress{PageID: heap.PageID(pageID), Offset: offset}}
}
