package fixedpage

// persist.go serializes the whole fixed-size-slot page set to the layout
// spec.md §6 describes for the spatial index file's body ("Fixed-sized-slot
// pages follow"): since every page shares one blockSize/maxBytes, each
// page's Serialize() output is the same length, so the header records that
// frame size once and the body is just that many fixed-size frames back to
// back, one per page from id 1 to last_page_id.

import (
	"encoding/binary"
	"io"

	"github.com/tin2003tin/tagfilterdb/internal/errs"
)

// Save writes last_page_id | frame_size followed by every page's
// serialized image, in order, to w.
func (m *Manager) Save(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := make([][]byte, len(m.order))
	frameSize := 0
	for i, id := range m.order {
		buf, err := m.pages[id].Serialize()
		if err != nil {
			return err
		}
		frames[i] = buf
		if frameSize == 0 {
			frameSize = len(buf)
		} else if len(buf) != frameSize {
			return errs.New(errs.Corruption, "fixedpage: inconsistent page frame size")
		}
	}

	var header [12]byte
	binary.LittleEndian.PutUint64(header[0:8], uint64(len(m.order)))
	binary.LittleEndian.PutUint32(header[8:12], uint32(frameSize))
	if _, err := w.Write(header[:]); err != nil {
		return errs.Wrap(errs.IOError, err, "fixedpage: writing file header")
	}
	for _, f := range frames {
		if _, err := w.Write(f); err != nil {
			return errs.Wrap(errs.IOError, err, "fixedpage: writing page frame")
		}
	}
	return nil
}

// Load replaces the Manager's page set by decoding buf in the format Save
// wrote. Like heap.Manager.Load, callers must not have touched the
// Manager yet.
func (m *Manager) Load(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(buf) < 12 {
		return errs.New(errs.Corruption, "fixedpage: truncated file header")
	}
	pageCount := int(binary.LittleEndian.Uint64(buf[0:8]))
	frameSize := int(binary.LittleEndian.Uint32(buf[8:12]))
	off := 12

	pages := make(map[PageID]*Page, pageCount)
	order := make([]PageID, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		if len(buf) < off+frameSize {
			return errs.New(errs.Corruption, "fixedpage: truncated page frame")
		}
		p, err := Deserialize(buf[off:off+frameSize], m.maxBytes)
		if err != nil {
			return err
		}
		pages[p.id] = p
		order = append(order, p.id)
		off += frameSize
	}

	m.pages = pages
	m.order = order
	if len(order) > 0 {
		m.nextID = order[len(order)-1] + 1
	}
	return nil
}
