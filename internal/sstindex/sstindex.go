// Package sstindex provides a persistent bloom-filter existence index for a
// store: a cheap "this timestamp is definitely not here" check a façade can
// run before paying for an on-disk binary search. It carries the bloom
// filter block of the teacher's SST file format as a standalone sidecar
// file, without the rest of that format's data/index blocks or footer —
// this system has no memtable-flush or compaction tier to produce those.
package sstindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/Priyanshu23/flashseries/store"
)

// Index tracks which timestamps have been added to a store, answering
// existence queries with one-sided error: a false "might exist" is
// possible, a false "definitely doesn't exist" is not.
type Index struct {
	filter *bloom.BloomFilter
}

// New builds an empty index sized for roughly estimatedRecords entries at
// the given false-positive rate.
func New(estimatedRecords uint, falsePositiveRate float64) *Index {
	return &Index{filter: bloom.NewWithEstimates(estimatedRecords, falsePositiveRate)}
}

// Add records ts as present.
func (idx *Index) Add(ts store.Timestamp) {
	idx.filter.Add(keyBytes(ts))
}

// MightContain reports whether ts may have been added. A false result is
// certain; a true result should be confirmed against the store itself.
func (idx *Index) MightContain(ts store.Timestamp) bool {
	return idx.filter.Test(keyBytes(ts))
}

func keyBytes(ts store.Timestamp) []byte {
	b, err := (store.TimestampCodec{}).IntoBytes(ts)
	if err != nil {
		// Only reachable for out-of-range timestamps, which store.Store
		// itself already rejects at write time; treat as having no
		// canonical byte form.
		return nil
	}
	return b
}

// Save persists the index as a CRC32-checked bloom filter block: a 4-byte
// little-endian CRC32 of the serialized filter, followed by the filter
// itself, as the whole file rather than one block among several.
func (idx *Index) Save(path string) error {
	var payload bytes.Buffer
	if _, err := idx.filter.WriteTo(&payload); err != nil {
		return fmt.Errorf("sstindex: serialize bloom filter: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("sstindex: create %s: %w", path, err)
	}
	defer f.Close()

	crc := crc32.ChecksumIEEE(payload.Bytes())
	if err := binary.Write(f, binary.LittleEndian, crc); err != nil {
		return fmt.Errorf("sstindex: write checksum: %w", err)
	}
	if _, err := f.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("sstindex: write bloom filter: %w", err)
	}

	return nil
}

// Load reads back an index written by Save, verifying its checksum.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sstindex: read %s: %w", path, err)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: bloom index file %s is too short", store.ErrInvalidData, path)
	}

	wantCRC := binary.LittleEndian.Uint32(data[:4])
	payload := data[4:]
	if crc32.ChecksumIEEE(payload) != wantCRC {
		return nil, fmt.Errorf("%w: bloom index checksum mismatch in %s", store.ErrInvalidData, path)
	}

	filter := &bloom.BloomFilter{}
	if _, err := filter.ReadFrom(bytes.NewReader(payload)); err != nil {
		return nil, fmt.Errorf("%w: decoding bloom filter: %v", store.ErrInvalidData, err)
	}

	return &Index{filter: filter}, nil
}
