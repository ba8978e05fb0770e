package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/roach88/mdrepo/internal/blob"
	"github.com/roach88/mdrepo/internal/events"
	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/store"
	"github.com/roach88/mdrepo/internal/vocab"
)

// Data is the binary payload of a Local entry, held by the blob store and
// counted against the context quota.
type Data struct {
	repo  *Repository
	entry *Entry

	size int64
}

func (d *Data) Entry() *Entry { return d.entry }

func (d *Data) key() blob.Key {
	return blob.Key{Context: d.entry.ContextID(), Entry: d.entry.ID()}
}

// Read returns the payload. Requires ReadResource.
func (d *Data) Read(s Session) ([]byte, error) {
	if err := d.repo.Authorize(s, d.entry, ReadResource); err != nil {
		return nil, err
	}
	data, err := d.repo.blobs.Read(d.key())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, newEntryMissingError(d.entry.ResourceURI())
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}

func (d *Data) currentSize() (int64, error) {
	n, ok, err := d.repo.blobs.Size(d.key())
	if err != nil {
		return 0, fmt.Errorf("stat payload: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return n, nil
}

// Write replaces the payload. Requires WriteResource. The quota check
// counts the old payload as freed; a rejected or failed write leaves
// payload, extent and fill level untouched.
func (d *Data) Write(s Session, data []byte) error {
	r := d.repo
	m := r.lock()
	defer m.unlock()
	if err := r.Authorize(s, d.entry, WriteResource); err != nil {
		return err
	}
	prev, had, err := d.snapshot()
	if err != nil {
		return err
	}
	err = d.entry.Context().adjust(m.ctx, int64(len(prev)), int64(len(data)), func() error {
		n, err := r.blobs.Write(d.key(), data)
		if err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
		if err := d.recordExtent(m, s, n); err != nil {
			d.restore(prev, had)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.fire(s, events.ResourceUpdated, d.entry)
	slog.Debug("payload written", "entry", d.entry.URI(), "bytes", len(data), "replaced", len(prev))
	return nil
}

// Delete removes the payload but keeps the entry. Requires WriteResource.
func (d *Data) Delete(s Session) error {
	r := d.repo
	m := r.lock()
	defer m.unlock()
	if err := r.Authorize(s, d.entry, WriteResource); err != nil {
		return err
	}
	prev, had, err := d.snapshot()
	if err != nil {
		return err
	}
	err = d.entry.Context().adjust(m.ctx, int64(len(prev)), 0, func() error {
		if err := r.blobs.Delete(d.key()); err != nil {
			return fmt.Errorf("delete payload: %w", err)
		}
		if err := d.recordExtent(m, s, -1); err != nil {
			d.restore(prev, had)
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}
	m.fire(s, events.ResourceDeleted, d.entry)
	return nil
}

// snapshot returns the stored payload, if any, so that a failed extent
// update can put it back.
func (d *Data) snapshot() ([]byte, bool, error) {
	prev, err := d.repo.blobs.Read(d.key())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read payload: %w", err)
	}
	return prev, true, nil
}

func (d *Data) restore(prev []byte, had bool) {
	var err error
	if had {
		_, err = d.repo.blobs.Write(d.key(), prev)
	} else {
		err = d.repo.blobs.Delete(d.key())
	}
	if err != nil {
		slog.Error("restore payload", "entry", d.entry.URI(), "error", err)
	}
}

// recordExtent stores the payload size on the entry; negative drops it.
func (d *Data) recordExtent(m *mutation, s Session, n int64) error {
	e := d.entry
	g := e.Graph().Without(e.uri, vocab.Extent, ir.Term{})
	if n >= 0 {
		g.Add(e.uri, vocab.Extent, ir.Long(n))
	}
	return e.commitGraph(m, s, "record extent", g)
}

func (d *Data) prepareRemove(*mutation) error {
	n, err := d.currentSize()
	if err != nil {
		return err
	}
	d.size = n
	return nil
}

func (d *Data) removeIn(context.Context, store.Tx) error { return nil }

// afterRemove deletes the payload and frees its quota. Failures are
// logged: the entry is already gone.
func (d *Data) afterRemove(m *mutation, s Session) {
	if d.size == 0 {
		return
	}
	if err := d.repo.blobs.Delete(d.key()); err != nil {
		slog.Error("delete payload", "entry", d.entry.URI(), "error", err)
	}
	if err := d.entry.Context().adjust(m.ctx, d.size, 0, nil); err != nil {
		slog.Error("release quota", "entry", d.entry.URI(), "error", err)
	}
	m.fire(s, events.ResourceDeleted, d.entry)
}
