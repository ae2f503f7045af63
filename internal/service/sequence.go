package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/tillpoint/api/internal/database"
	"github.com/tillpoint/api/internal/enum"
)

// SequenceStore defines the DB methods the allocator needs.
// Satisfied by *database.Queries (and its WithTx variant).
type SequenceStore interface {
	IssueSequenceNumber(ctx context.Context, arg database.IssueSequenceNumberParams) (int64, error)
	SetDraftNumber(ctx context.Context, arg database.SetDraftNumberParams) (database.Order, error)
	SetReceiptNumber(ctx context.Context, arg database.SetReceiptNumberParams) (database.Order, error)
}

// SequenceAllocator issues tenant+date scoped draft and receipt numbers.
// Numbers are contiguous from 1 per tenant per day and never reissued;
// the counter upsert in the store is the atomic primitive that makes
// concurrent issuance safe. Draft and receipt series never share a counter.
type SequenceAllocator struct {
	loc *time.Location
}

// NewSequenceAllocator pins the calendar used for date codes. Counters
// roll over at midnight in this zone, not in the server's local zone.
func NewSequenceAllocator(loc *time.Location) *SequenceAllocator {
	if loc == nil {
		loc = time.UTC
	}
	return &SequenceAllocator{loc: loc}
}

func (a *SequenceAllocator) dateCode(now time.Time) string {
	return now.In(a.loc).Format("20060102")
}

// EnsureDraftNumber issues the order's draft number, or returns the
// order unchanged if one was already issued. Idempotency is mandatory:
// creation flows may retry and must not burn a second number.
func (a *SequenceAllocator) EnsureDraftNumber(ctx context.Context, store SequenceStore, o database.Order, now time.Time) (database.Order, error) {
	if o.DraftNo.Valid {
		return o, nil
	}

	number, err := store.IssueSequenceNumber(ctx, database.IssueSequenceNumberParams{
		TenantID: o.TenantID,
		Series:   enum.SeriesDraft,
		DateCode: a.dateCode(now),
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("issue draft number: %w", err)
	}

	updated, err := store.SetDraftNumber(ctx, database.SetDraftNumberParams{
		ID:       o.ID,
		TenantID: o.TenantID,
		Number:   number,
		Label:    strconv.FormatInt(number, 10),
		Now:      now,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("set draft number: %w", err)
	}
	return updated, nil
}

// EnsureReceiptNumber issues the order's receipt number, or returns the
// order unchanged if one was already issued. prefix is the tenant's
// optional receipt prefix.
func (a *SequenceAllocator) EnsureReceiptNumber(ctx context.Context, store SequenceStore, o database.Order, prefix string, now time.Time) (database.Order, error) {
	if o.ReceiptNo.Valid {
		return o, nil
	}

	number, err := store.IssueSequenceNumber(ctx, database.IssueSequenceNumberParams{
		TenantID: o.TenantID,
		Series:   enum.SeriesReceipt,
		DateCode: a.dateCode(now),
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("issue receipt number: %w", err)
	}

	updated, err := store.SetReceiptNumber(ctx, database.SetReceiptNumberParams{
		ID:       o.ID,
		TenantID: o.TenantID,
		Number:   number,
		Label:    a.receiptLabel(prefix, now, number),
		Now:      now,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("set receipt number: %w", err)
	}
	return updated, nil
}

// receiptLabel renders [PREFIX-]YYMMDD-NNN. The counter grows past 999
// without truncation, the padding only guarantees a minimum width.
func (a *SequenceAllocator) receiptLabel(prefix string, now time.Time, number int64) string {
	date := now.In(a.loc).Format("060102")
	if prefix != "" {
		return fmt.Sprintf("%s-%s-%03d", prefix, date, number)
	}
	return fmt.Sprintf("%s-%03d", date, number)
}
