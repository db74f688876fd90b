package store

import "fmt"

// TimeSeries (C5) extends KeyValueStore with range scans over a store
// keyed by Timestamp. All ranges are half-open [from, to) unless noted.
type TimeSeries[V any] interface {
	KeyValueStore[Timestamp, V]

	RetrieveNearest(ts Timestamp, direction Direction) (Record[Timestamp, V], error)
	RetrieveAll() ([]Record[Timestamp, V], error)
	RetrieveFrom(ts Timestamp) ([]Record[Timestamp, V], error)
	RetrieveTo(ts Timestamp) ([]Record[Timestamp, V], error)
	RetrieveRange(from, to Timestamp) ([]Record[Timestamp, V], error)
}

var _ TimeSeries[int32] = (*Store[int32])(nil)

// RetrieveNearest locates a single record via binary search over the whole
// file, resolved per direction.
func (s *Store[V]) RetrieveNearest(ts Timestamp, direction Direction) (Record[Timestamp, V], error) {
	var zero Record[Timestamp, V]

	if s.items == 0 {
		return zero, fmt.Errorf("%w: store is empty", ErrNotFound)
	}

	off, err := s.locate(direction, ts, 0, s.endOffset)
	if err != nil {
		return zero, err
	}

	buf := make([]byte, s.itemSize)
	key, val, err := s.readRecordAt(off, buf)
	if err != nil {
		return zero, err
	}

	return Record[Timestamp, V]{Key: key, Value: val}, nil
}

// RetrieveAll returns every stored record in order.
func (s *Store[V]) RetrieveAll() ([]Record[Timestamp, V], error) {
	if s.items == 0 {
		return nil, nil
	}
	return s.scan(0, s.endOffset)
}

// RetrieveFrom returns every record with key >= ts.
func (s *Store[V]) RetrieveFrom(ts Timestamp) ([]Record[Timestamp, V], error) {
	if s.items == 0 || ts > s.lastKey {
		return nil, nil
	}

	off, err := s.locate(Forward, ts, 0, s.endOffset)
	if err != nil {
		return nil, err
	}

	return s.scan(off, s.endOffset)
}

// RetrieveTo returns every record with key < ts.
func (s *Store[V]) RetrieveTo(ts Timestamp) ([]Record[Timestamp, V], error) {
	if s.items == 0 {
		return nil, nil
	}

	off, err := s.findTo(ts)
	if err != nil {
		if isEmptyRangeSentinel(err) {
			return nil, nil
		}
		return nil, err
	}

	return s.scan(0, off)
}

// RetrieveRange returns every record with key in [from, to).
func (s *Store[V]) RetrieveRange(from, to Timestamp) ([]Record[Timestamp, V], error) {
	if s.items == 0 || from >= to {
		return nil, nil
	}

	fromOff, err := s.findFrom(from)
	if err != nil {
		if isEmptyRangeSentinel(err) {
			return nil, nil
		}
		return nil, err
	}

	toOff, err := s.findTo(to)
	if err != nil {
		if isEmptyRangeSentinel(err) {
			return nil, nil
		}
		return nil, err
	}

	if toOff < fromOff {
		return nil, nil
	}

	return s.scan(fromOff, toOff)
}

// findFrom locates the offset of the first record with key >= search,
// inclusive. If search is before the first record, the first record's
// offset is returned (find_from is inclusive; see Design Notes §9).
func (s *Store[V]) findFrom(search Timestamp) (int64, error) {
	if search >= s.firstKey {
		return s.locate(Forward, search, 0, s.endOffset)
	}
	return 0, nil
}

// findTo locates the offset of the last record with key < search,
// exclusive: if the bound is found exactly, the previous record's offset
// is returned instead. If that would precede offset 0, ErrInvalidInput is
// returned (callers translate this to an empty result).
func (s *Store[V]) findTo(search Timestamp) (int64, error) {
	off, err := s.locate(Backward, search, 0, s.endOffset)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, TimestampCodec{}.Size())
	key, err := s.readKeyAt(off, buf)
	if err != nil {
		return 0, err
	}

	if key != search {
		return off, nil
	}
	if off > 0 {
		return off - int64(s.itemSize), nil
	}
	return 0, fmt.Errorf("%w: findTo search key was equal to the first record", ErrInvalidInput)
}

// isEmptyRangeSentinel reports whether err is one of the two sentinels
// that scan callers (RetrieveTo/RetrieveRange/PoolTo/PoolRange) translate
// into an empty result rather than propagating, per spec §7's propagation
// policy: ErrNotFound from a locate() call that found nothing in range, or
// the ErrInvalidInput raised by findTo when the bound equals the first
// record.
func isEmptyRangeSentinel(err error) bool {
	return isErr(err, ErrNotFound) || isErr(err, ErrInvalidInput)
}
