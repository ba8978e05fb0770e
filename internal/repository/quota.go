package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/mdrepo/internal/blob"
	"github.com/roach88/mdrepo/internal/ir"
	"github.com/roach88/mdrepo/internal/queryir"
	"github.com/roach88/mdrepo/internal/vocab"
)

// Unlimited is the quota value without a limit.
const Unlimited int64 = -1

// uncached marks a quota or fill level that must be read from the store.
const uncached int64 = -2

// quotaAccountant caches the quota and fill level of one context. Its
// lock is taken after the repository lock and before any store
// transaction.
type quotaAccountant struct {
	mu    sync.Mutex
	quota int64
	fill  int64
}

func newQuotaAccountant() *quotaAccountant {
	return &quotaAccountant{quota: uncached, fill: uncached}
}

// Quota returns the byte budget of the context: its own quota, or the
// repository default. Unlimited is -1.
func (c *Context) Quota() (int64, error) {
	c.quota.mu.Lock()
	defer c.quota.mu.Unlock()
	return c.quotaLocked(context.Background())
}

func (c *Context) quotaLocked(ctx context.Context) (int64, error) {
	if c.quota.quota != uncached {
		return c.quota.quota, nil
	}
	t, ok, err := c.stored(ctx, vocab.HasQuota)
	if err != nil {
		return 0, storeError("read quota", err)
	}
	q := c.repo.defaultQuota
	if ok {
		if q, err = t.Int(); err != nil {
			return 0, integrityViolation(c.URI(), "bad quota %q", t.Value)
		}
	}
	c.quota.quota = q
	return q, nil
}

// HasDefaultQuota reports whether the context falls back to the
// repository default.
func (c *Context) HasDefaultQuota() (bool, error) {
	_, ok, err := c.stored(context.Background(), vocab.HasQuota)
	if err != nil {
		return false, storeError("read quota", err)
	}
	return !ok, nil
}

func (c *Context) stored(ctx context.Context, p ir.Term) (ir.Term, bool, error) {
	qs, err := c.repo.store.Query(ctx, queryir.Select{Pattern: queryir.S(c.uri, p, ir.Term{}, c.uri), Limit: 1})
	if err != nil || len(qs) == 0 {
		return ir.Term{}, false, err
	}
	return qs[0].Object, true, nil
}

// SetQuota stores an explicit budget. Only the admin user or members of
// the admins group may change quotas.
func (c *Context) SetQuota(s Session, bytes int64) error {
	if bytes < Unlimited {
		return integrityViolation(c.URI(), "invalid quota %d", bytes)
	}
	return c.writeQuota(s, "set quota", bytes, ir.NewQuad(c.uri, vocab.HasQuota, ir.Long(bytes), c.uri))
}

// RemoveQuota drops the explicit budget; the default applies again.
func (c *Context) RemoveQuota(s Session) error {
	return c.writeQuota(s, "remove quota", uncached)
}

func (c *Context) writeQuota(s Session, op string, quota int64, add ...ir.Quad) error {
	r := c.repo
	m := r.lock()
	defer m.unlock()
	admin, err := r.isAdmin(s)
	if err != nil {
		return err
	}
	if !admin {
		r.metrics.Denied(Administer.String())
		return newAuthorizationError(s.Principal(), c.URI(), Administer)
	}
	c.quota.mu.Lock()
	defer c.quota.mu.Unlock()
	tx, err := r.store.Begin(m.ctx)
	if err != nil {
		return storeError(op, err)
	}
	if _, err := tx.Remove(m.ctx, queryir.S(c.uri, vocab.HasQuota, ir.Term{}, c.uri)); err != nil {
		m.abort(tx, op, nil)
		return storeError(op, err)
	}
	if err := tx.Add(m.ctx, add...); err != nil {
		m.abort(tx, op, nil)
		return storeError(op, err)
	}
	if err := tx.Commit(); err != nil {
		m.abort(tx, op, nil)
		return storeError(op, err)
	}
	c.quota.quota = quota
	slog.Info("quota changed", "context", c.id, "op", op)
	return nil
}

// isAdmin reports whether the session is the admin user or in the admins
// group.
func (r *Repository) isAdmin(s Session) (bool, error) {
	if !r.authorization || s.Escalated() || s.Principal() == r.AdminURI() {
		return true, nil
	}
	groups, err := r.Groups(s.Escalate(), s.Principal())
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		if g == r.AdminsURI() {
			return true, nil
		}
	}
	return false, nil
}

// FillLevel returns the bytes used by the payloads of the context.
func (c *Context) FillLevel() (int64, error) {
	c.quota.mu.Lock()
	defer c.quota.mu.Unlock()
	return c.fillLocked(context.Background())
}

func (c *Context) fillLocked(ctx context.Context) (int64, error) {
	if c.quota.fill != uncached {
		return c.quota.fill, nil
	}
	t, ok, err := c.stored(ctx, vocab.HasQuotaFillLevel)
	if err != nil {
		return 0, storeError("read fill level", err)
	}
	if ok {
		n, err := t.Int()
		if err == nil {
			c.quota.fill = n
			return n, nil
		}
		slog.Warn("bad fill level, recalculating", "context", c.id, "value", t.Value)
	}
	return c.recalculateLocked(ctx)
}

// RecalculateFillLevel sums the payload sizes of every Local data entry
// and stores the result.
func (c *Context) RecalculateFillLevel() (int64, error) {
	c.quota.mu.Lock()
	defer c.quota.mu.Unlock()
	return c.recalculateLocked(context.Background())
}

func (c *Context) recalculateLocked(ctx context.Context) (int64, error) {
	uris, err := c.Entries()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, u := range uris {
		e, err := c.repo.Entry(u)
		if IsEntryMissingError(err) {
			continue
		}
		if err != nil {
			return 0, err
		}
		if _, ok := c.repo.resourceOf(e).(*Data); !ok {
			continue
		}
		n, ok, err := c.repo.blobs.Size(blob.Key{Context: c.id, Entry: e.ID()})
		if err != nil {
			return 0, fmt.Errorf("recalculate fill level: %w", err)
		}
		if ok {
			total += n
		}
	}
	if err := c.persistFill(ctx, total); err != nil {
		return 0, err
	}
	slog.Debug("fill level recalculated", "context", c.id, "bytes", total)
	return total, nil
}

func (c *Context) persistFill(ctx context.Context, fill int64) error {
	tx, err := c.repo.store.Begin(ctx)
	if err != nil {
		return storeError("store fill level", err)
	}
	if _, err := tx.Remove(ctx, queryir.S(c.uri, vocab.HasQuotaFillLevel, ir.Term{}, c.uri)); err != nil {
		_ = tx.Rollback()
		return storeError("store fill level", err)
	}
	if err := tx.Add(ctx, ir.NewQuad(c.uri, vocab.HasQuotaFillLevel, ir.Long(fill), c.uri)); err != nil {
		_ = tx.Rollback()
		return storeError("store fill level", err)
	}
	if err := tx.Commit(); err != nil {
		return storeError("store fill level", err)
	}
	c.quota.fill = fill
	c.repo.metrics.FillLevel(c.id, fill)
	return nil
}

// Increase adds bytes to the fill level. It fails with QuotaExceededError,
// changing nothing, when the result would exceed a limited quota.
func (c *Context) Increase(bytes int64) error {
	return c.adjust(context.Background(), 0, bytes, nil)
}

// Decrease subtracts bytes from the fill level, stopping at zero.
func (c *Context) Decrease(bytes int64) error {
	return c.adjust(context.Background(), bytes, 0, nil)
}

// adjust replaces a payload of from bytes by one of to bytes. apply runs
// after the check while the quota lock is held; if it fails the fill
// level is left alone. With quotas disabled only apply runs.
func (c *Context) adjust(ctx context.Context, from, to int64, apply func() error) error {
	c.quota.mu.Lock()
	defer c.quota.mu.Unlock()
	if !c.repo.quotaEnabled {
		if apply == nil {
			return nil
		}
		return apply()
	}
	quota, err := c.quotaLocked(ctx)
	if err != nil {
		return err
	}
	fill, err := c.fillLocked(ctx)
	if err != nil {
		return err
	}
	next := max(fill-from+to, 0)
	if to > from && quota >= 0 && next > quota {
		c.repo.metrics.QuotaExceeded(c.id)
		return &QuotaExceededError{
			Code:      ErrCodeQuotaExceeded,
			Context:   c.id,
			Quota:     quota,
			FillLevel: fill,
			Requested: to,
		}
	}
	if apply != nil {
		if err := apply(); err != nil {
			return err
		}
	}
	if err := c.persistFill(ctx, next); err != nil {
		c.quota.fill = uncached
		return err
	}
	slog.Debug("fill level changed", "context", c.id, "from", fill, "to", next)
	return nil
}
