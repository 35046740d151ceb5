// Package paginate turns an offset/limit paginated API into a lazily fetched,
// forward only sequence of records.
//
// A Fetcher requests one page at a time, only when the records of the previous
// page have been consumed. Whether a page is the last page is decided by the
// PageFunc, since APIs signal completion differently; TotalCountDone and
// ShortPageDone implement the two common conventions.
package paginate

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrLimit is returned when a Fetcher is constructed with a non positive limit.
	ErrLimit = errors.New("page limit must be greater than zero")

	// ErrStalled is returned when a page has no records and does not signal completion.
	ErrStalled = errors.New("empty page returned before last page")
)

// Page is one page of records.
type Page[T any] struct {
	Records []T
	// Done is set when no further pages are to be requested.
	Done bool
}

// PageFunc fetches the page of records starting at offset, with up to limit records.
type PageFunc[T any] func(ctx context.Context, offset, limit int) (Page[T], error)

// TotalCountDone returns true when the page at offset is the last page for an API
// that reports the total record count.
func TotalCountDone(offset, limit, total int) bool {
	return total == 0 || offset+limit >= total
}

// ShortPageDone returns true when a page is the last page for an API that does not
// report a total count, a page with fewer records than the limit is the last one.
func ShortPageDone(n, limit int) bool {
	return n < limit
}

// Fetcher yields the records returned by a PageFunc in page order.
//
// Fetcher is not restartable and not safe for concurrent use, construct a new
// Fetcher to iterate again.
//
//	f, _ := paginate.New(100, pageFn)
//	for f.Next(ctx) {
//		r := f.Record()
//	}
//
//	if err := f.Err(); err != nil {
//	}
type Fetcher[T any] struct {
	fetch  PageFunc[T]
	limit  int
	offset int
	pages  int
	buf    []T
	cur    T
	done   bool
	err    error
}

// New returns a Fetcher requesting pages of limit records from fetch.
func New[T any](limit int, fetch PageFunc[T]) (*Fetcher[T], error) {
	if limit <= 0 {
		return nil, errors.Wrapf(ErrLimit, "limit: %d", limit)
	}

	if fetch == nil {
		return nil, errors.New("nil PageFunc")
	}

	return &Fetcher[T]{fetch: fetch, limit: limit}, nil
}

// Next advances to the next record, fetching the next page when required.
//
// Next returns false once the last page has been consumed or an error occurred,
// the error is then available from Err.
func (f *Fetcher[T]) Next(ctx context.Context) bool {
	for len(f.buf) == 0 {
		if f.done || f.err != nil {
			return false
		}

		if err := ctx.Err(); err != nil {
			f.err = errors.Wrapf(err, "fetch page at offset %d", f.offset)
			return false
		}

		page, err := f.fetch(ctx, f.offset, f.limit)
		if err != nil {
			f.err = errors.Wrapf(err, "fetch page at offset %d, limit %d", f.offset, f.limit)
			return false
		}

		f.pages++

		if len(page.Records) == 0 && !page.Done {
			f.err = errors.Wrapf(ErrStalled, "offset %d, limit %d", f.offset, f.limit)
			return false
		}

		f.offset += len(page.Records)
		f.done = page.Done
		f.buf = page.Records
	}

	f.cur, f.buf = f.buf[0], f.buf[1:]

	return true
}

// Record returns the current record.
func (f *Fetcher[T]) Record() T {
	return f.cur
}

// Err returns the error that stopped the iteration, if any.
func (f *Fetcher[T]) Err() error {
	return f.err
}

// Pages returns the number of pages fetched so far.
func (f *Fetcher[T]) Pages() int {
	return f.pages
}

// Collect consumes f and returns the records in order.
//
// When an error stops the iteration the records yielded before the error are
// returned along with it.
func Collect[T any](ctx context.Context, f *Fetcher[T]) ([]T, error) {
	records := []T{}

	for f.Next(ctx) {
		records = append(records, f.Record())
	}

	return records, f.Err()
}
