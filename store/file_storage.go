package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Store is an append-only, order-preserving on-disk record file (C2),
// keyed by Timestamp. It owns a single OS file handle exclusively and
// caches the bounds needed to avoid a full scan on every operation: item
// size, record count, first and last key, and the byte offset of the last
// record.
//
// The original source parameterizes its file storage over any ordered key
// type K, with TimeSeries/PooledTimeSeries provided by separate impl
// blocks specific to K = Timestamp (Rust allows overlapping generic impls
// per concrete instantiation). Go's generics have no equivalent
// specialization: a method on Store[K, V] must type-check for every K
// satisfying the constraint, so it cannot assume K's underlying
// representation supports bucket-interval arithmetic. Since every
// consumer in this system keys by Timestamp, Store fixes K = Timestamp
// and is generic only over V; KeyValueStore[K, V] is still expressed as a
// constraint-generic interface at the documentation/contract level (C4),
// matching "a single trait object handed to callers that don't care which
// concrete ordered-key medium backs it" — Store is simply the one
// concrete medium this repo provides.
//
// A Store is not safe for concurrent use; callers that multiplex stores
// across goroutines must provide their own mutual exclusion (see
// internal/registry).
type Store[V any] struct {
	file *os.File

	valCodec Codec[V]

	itemSize  int
	items     int
	firstKey  Timestamp
	lastKey   Timestamp
	endOffset int64
}

// NewStore opens (creating if absent) an append-only record file at path,
// using valCodec to encode and decode the value half of each record.
func NewStore[V any](path string, valCodec Codec[V]) (*Store[V], error) {
	keyCodec := TimestampCodec{}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	end, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("store: seek end of %s: %w", path, err)
	}

	itemSize := keyCodec.Size() + 1 + valCodec.Size() + 1

	if end%int64(itemSize) != 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s length %d is not a multiple of item size %d", ErrInvalidData, path, end, itemSize)
	}

	s := &Store[V]{
		file:     f,
		valCodec: valCodec,
		itemSize: itemSize,
	}

	if end == 0 {
		return s, nil
	}

	s.items = int(end / int64(itemSize))

	buf := make([]byte, keyCodec.Size())

	firstKey, err := s.readKeyAt(0, buf)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.firstKey = firstKey

	s.endOffset = end - int64(itemSize)
	lastKey, err := s.readKeyAt(s.endOffset, buf)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.lastKey = lastKey

	return s, nil
}

// Close releases the underlying file handle.
func (s *Store[V]) Close() error {
	return s.file.Close()
}

// Len returns the number of stored records.
func (s *Store[V]) Len() int {
	return s.items
}

// Store appends (k, v) to the file. k must be strictly greater than the
// last recorded key (or this must be the first record).
func (s *Store[V]) Store(k Timestamp, v V) error {
	if s.items > 0 && !(k > s.lastKey) {
		return fmt.Errorf("%w: key must be greater than the last recorded key", ErrInvalidInput)
	}

	keyCodec := TimestampCodec{}

	keyBytes, err := keyCodec.IntoBytes(k)
	if err != nil {
		return err
	}
	valBytes, err := s.valCodec.IntoBytes(v)
	if err != nil {
		return err
	}

	if _, err := s.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("store: seek end: %w", err)
	}

	w := bufio.NewWriterSize(s.file, s.itemSize)
	if _, err := w.Write(keyBytes); err != nil {
		return err
	}
	if err := w.WriteByte(' '); err != nil {
		return err
	}
	if _, err := w.Write(valBytes); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("store: write record: %w", err)
	}

	if s.items == 0 {
		s.firstKey = k
	} else {
		s.endOffset += int64(s.itemSize)
	}
	s.items++
	s.lastKey = k

	return nil
}

// readKeyAt reads only the key portion of the record at offset off.
func (s *Store[V]) readKeyAt(off int64, buf []byte) (Timestamp, error) {
	if _, err := s.file.ReadAt(buf, off); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, fmt.Errorf("%w: reading key at offset %d", io.ErrUnexpectedEOF, off)
		}
		return 0, fmt.Errorf("store: reading key at offset %d: %w", off, err)
	}
	key, err := (TimestampCodec{}).FromBytes(buf)
	if err != nil {
		return 0, err
	}
	return key, nil
}

// readRecordAt reads a full (key, value) record at offset off.
func (s *Store[V]) readRecordAt(off int64, buf []byte) (Timestamp, V, error) {
	var zeroV V

	if _, err := s.file.ReadAt(buf, off); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return 0, zeroV, fmt.Errorf("%w: reading record at offset %d", io.ErrUnexpectedEOF, off)
		}
		return 0, zeroV, fmt.Errorf("store: reading record at offset %d: %w", off, err)
	}

	keySize := TimestampCodec{}.Size()
	// layout: key (keySize) ' ' value (valSize) '\n'
	key, err := (TimestampCodec{}).FromBytes(buf[:keySize])
	if err != nil {
		return 0, zeroV, err
	}
	val, err := s.valCodec.FromBytes(buf[keySize+1 : s.itemSize-1])
	if err != nil {
		return 0, zeroV, err
	}
	return key, val, nil
}

// scan reads every record from startOff to endOff inclusive, in order.
func (s *Store[V]) scan(startOff, endOff int64) ([]Record[Timestamp, V], error) {
	var out []Record[Timestamp, V]

	r := io.NewSectionReader(s.file, startOff, endOff-startOff+int64(s.itemSize))
	br := bufio.NewReaderSize(r, s.itemSize*64)

	buf := make([]byte, s.itemSize)
	keySize := TimestampCodec{}.Size()

	for {
		_, err := io.ReadFull(br, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", io.ErrUnexpectedEOF, err)
		}

		key, err := (TimestampCodec{}).FromBytes(buf[:keySize])
		if err != nil {
			return nil, err
		}
		val, err := s.valCodec.FromBytes(buf[keySize+1 : s.itemSize-1])
		if err != nil {
			return nil, err
		}
		out = append(out, Record[Timestamp, V]{Key: key, Value: val})
	}

	return out, nil
}
