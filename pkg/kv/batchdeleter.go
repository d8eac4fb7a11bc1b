package kv

import (
	"context"
	"log"
	"regexp"
)

// BatchDeleter scans a range (optionally restricted to a family and
// filtered by a row regex) and deletes every cell it visits, for bulk
// cleanup paths like clear() and drop_index that cannot be expressed as a
// handful of point deletes.
type BatchDeleter struct {
	table   *Table
	threads int

	family    []byte
	rowFilter *regexp.Regexp
}

// WithFamily restricts deletion to a single column family.
func (d *BatchDeleter) WithFamily(family string) *BatchDeleter {
	d.family = []byte(family)
	return d
}

// WithRowFilter restricts deletion to rows matching pattern.
func (d *BatchDeleter) WithRowFilter(pattern string) (*BatchDeleter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	d.rowFilter = re
	return d, nil
}

// DeleteRange scans r and deletes every matching cell. ts of 0 gives each
// flushed chunk of tombstones its own fresh auto timestamp; a nonzero ts
// backs every delete onto that explicit timestamp instead.
func (d *BatchDeleter) DeleteRange(ctx context.Context, r Range, ts uint64) error {
	if err := d.table.engine.checkOpen(); err != nil {
		return err
	}

	s := d.table.Scanner().WithRange(r)
	if d.family != nil {
		s = s.WithFamily(string(d.family))
	}
	if d.rowFilter != nil {
		s = s.WithFilter(ScanFilter{Row: &RowRegexFilter{Pattern: d.rowFilter}})
	}

	// BatchDeleter scans and deletes in chunks rather than buffering the
	// entire range, so a table-wide delete (drop_table, clear()) doesn't
	// hold an unbounded mutation list in memory.
	const chunkSize = 4096
	w := d.table.Writer()
	var scanErr error
	count := 0

	var totalDeleted int
	err := s.Each(func(c Cell) (bool, error) {
		select {
		case <-ctx.Done():
			log.Printf("kv: batch delete on table %q cancelled after %d cells", d.table.name, totalDeleted)
			return false, ctx.Err()
		default:
		}
		w.Delete(c.Row, c.Family, c.Qualifier, ts)
		count++
		totalDeleted++
		if count >= chunkSize {
			if err := w.Flush(); err != nil {
				log.Printf("kv: batch delete on table %q: flush failed after %d cells: %v", d.table.name, totalDeleted, err)
				scanErr = err
				return false, err
			}
			count = 0
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if scanErr != nil {
		return scanErr
	}
	return w.Flush()
}
