// Package archive provides operator-facing retention for flashseries
// stores: once a channel's active record file grows past a configured
// size, it is sealed into a numbered, read-only segment and a fresh empty
// file takes over as the active store. This never changes store.Store's
// one-flat-file-per-store contract (C2) — the core itself never rotates;
// archive.Archiver is a layer above it, in the same spirit as the
// teacher's segmentmanager package, which segments a WAL the same way.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"

	"github.com/Priyanshu23/flashseries/internal/sstindex"
	"github.com/Priyanshu23/flashseries/store"
)

const segmentFileExt = ".store"

var segmentFileNamePattern = regexp.MustCompile(`^segment-(\d+)\.store$`)

type segmentEntry struct {
	id   int
	name string
}

type segmentEntries []segmentEntry

func (a segmentEntries) Len() int           { return len(a) }
func (a segmentEntries) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a segmentEntries) Less(i, j int) bool { return a[i].id < a[j].id }

// Archiver seals a channel's active record file into a sequence of
// segment-NNNN.store files under dir once it crosses maxRecords, building
// a bloom existence index (internal/sstindex) alongside each sealed
// segment.
type Archiver struct {
	mu       sync.Mutex
	dir      string
	nextID   int
	bloomFPR float64
}

// New opens (creating if absent) the archive directory for one channel,
// scanning any existing sealed segments to resume numbering where it left
// off.
func New(dir string) (*Archiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("archive: create dir %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("archive: read dir %s: %w", dir, err)
	}

	var found segmentEntries
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if filepath.Ext(entry.Name()) != segmentFileExt {
			continue
		}
		matches := segmentFileNamePattern.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}
		id, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		found = append(found, segmentEntry{id: id, name: entry.Name()})
	}

	sort.Sort(found)

	nextID := 1
	if len(found) > 0 {
		nextID = found[len(found)-1].id + 1
	}

	return &Archiver{dir: dir, nextID: nextID, bloomFPR: 0.01}, nil
}

func (a *Archiver) segmentPath(id int) string {
	return filepath.Join(a.dir, fmt.Sprintf("segment-%04d%s", id, segmentFileExt))
}

// ShouldRotate reports whether a store holding recordCount records has
// reached maxRecords and should be sealed. A maxRecords of 0 or less never
// rotates.
func ShouldRotate(recordCount, maxRecords int) bool {
	return maxRecords > 0 && recordCount >= maxRecords
}

// Seal moves the file at activePath into the next numbered segment and
// builds a bloom existence index over its keys, each keySize bytes wide at
// itemSize stride (the record layout from store.Store). It does not touch
// activePath's directory entry beyond the move: the caller is responsible
// for reopening a fresh store.Store at activePath afterwards.
func (a *Archiver) Seal(activePath string, keySize, itemSize int) (segmentPath string, idx *sstindex.Index, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	dest := a.segmentPath(id)

	if err := os.Rename(activePath, dest); err != nil {
		return "", nil, fmt.Errorf("archive: seal %s: %w", activePath, err)
	}
	a.nextID++

	idx, err = buildIndex(dest, keySize, itemSize, a.bloomFPR)
	if err != nil {
		return dest, nil, err
	}

	if err := idx.Save(dest + ".bloom"); err != nil {
		return dest, idx, fmt.Errorf("archive: save bloom index for %s: %w", dest, err)
	}

	entry, err := buildManifestEntry(dest, id, keySize, itemSize)
	if err != nil {
		return dest, idx, err
	}
	if err := appendManifestEntry(a.dir, entry); err != nil {
		return dest, idx, err
	}

	return dest, idx, nil
}

// buildManifestEntry reads the first and last key of a freshly-sealed
// segment and checksums the whole file, producing the manifestEntry
// VerifyManifest later checks the segment against.
func buildManifestEntry(path string, id, keySize, itemSize int) (manifestEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return manifestEntry{}, fmt.Errorf("archive: stat %s: %w", path, err)
	}
	if itemSize <= 0 || info.Size()%int64(itemSize) != 0 {
		return manifestEntry{}, fmt.Errorf("%w: %s length %d is not a multiple of item size %d", store.ErrInvalidData, path, info.Size(), itemSize)
	}
	recordCount := info.Size() / int64(itemSize)

	var firstKey, lastKey store.Timestamp
	if recordCount > 0 {
		f, err := os.Open(path)
		if err != nil {
			return manifestEntry{}, fmt.Errorf("archive: open %s: %w", path, err)
		}
		defer f.Close()

		codec := store.TimestampCodec{}
		keyBuf := make([]byte, keySize)

		if _, err := f.ReadAt(keyBuf, 0); err != nil && err != io.EOF {
			return manifestEntry{}, fmt.Errorf("archive: reading first key in %s: %w", path, err)
		}
		if firstKey, err = codec.FromBytes(keyBuf); err != nil {
			return manifestEntry{}, err
		}

		lastOff := (recordCount - 1) * int64(itemSize)
		if _, err := f.ReadAt(keyBuf, lastOff); err != nil && err != io.EOF {
			return manifestEntry{}, fmt.Errorf("archive: reading last key in %s: %w", path, err)
		}
		if lastKey, err = codec.FromBytes(keyBuf); err != nil {
			return manifestEntry{}, err
		}
	}

	checksum, err := checksumFile(path)
	if err != nil {
		return manifestEntry{}, err
	}

	return manifestEntry{
		segmentID:   id,
		firstKey:    firstKey,
		lastKey:     lastKey,
		recordCount: recordCount,
		segmentCRC:  checksum,
	}, nil
}

// Segments lists sealed segment paths in ascending id order.
func (a *Archiver) Segments() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("archive: read dir %s: %w", a.dir, err)
	}

	var found segmentEntries
	for _, entry := range entries {
		if !entry.Type().IsRegular() || filepath.Ext(entry.Name()) != segmentFileExt {
			continue
		}
		matches := segmentFileNamePattern.FindStringSubmatch(entry.Name())
		if len(matches) != 2 {
			continue
		}
		id, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		found = append(found, segmentEntry{id: id, name: entry.Name()})
	}
	sort.Sort(found)

	paths := make([]string, len(found))
	for i, e := range found {
		paths[i] = filepath.Join(a.dir, e.name)
	}
	return paths, nil
}

func buildIndex(path string, keySize, itemSize int, fpr float64) (*sstindex.Index, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("archive: stat %s: %w", path, err)
	}
	if itemSize <= 0 || info.Size()%int64(itemSize) != 0 {
		return nil, fmt.Errorf("%w: %s length %d is not a multiple of item size %d", store.ErrInvalidData, path, info.Size(), itemSize)
	}
	recordCount := int(info.Size() / int64(itemSize))

	idx := sstindex.New(uint(recordCount+1), fpr)
	if recordCount == 0 {
		return idx, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()

	keyBuf := make([]byte, keySize)
	codec := store.TimestampCodec{}

	for i := 0; i < recordCount; i++ {
		off := int64(i) * int64(itemSize)
		if _, err := f.ReadAt(keyBuf, off); err != nil && err != io.EOF {
			return nil, fmt.Errorf("archive: reading key at offset %d in %s: %w", off, path, err)
		}
		key, err := codec.FromBytes(keyBuf)
		if err != nil {
			return nil, err
		}
		idx.Add(key)
	}

	return idx, nil
}
