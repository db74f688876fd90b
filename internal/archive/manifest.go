package archive

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/Priyanshu23/flashseries/store"
)

const manifestFileName = "MANIFEST.log"

// manifestEntry records one sealed segment's identity and checksum, so a
// restart can tell a segment that was fully sealed apart from one
// truncated mid-rotation. Framing is adapted from the teacher's WAL log
// record: a CRC over the fixed-size payload, patched in after the payload
// is written (the file must be seekable).
//
// | CRC (4) | SEGMENT_ID (4) | FIRST_KEY (8) | LAST_KEY (8) | RECORD_COUNT (8) | SEGMENT_CRC (4) |
type manifestEntry struct {
	segmentID   int
	firstKey    store.Timestamp
	lastKey     store.Timestamp
	recordCount int64
	segmentCRC  uint32
}

const invalidManifestCRC = uint32(0xFFFFFFFF)
const manifestPayloadLen = 4 + 8 + 8 + 8 + 4

func (e manifestEntry) encode(w io.WriteSeeker) error {
	crc := crc32.NewIEEE()
	mw := io.MultiWriter(w, crc)

	if err := binary.Write(w, binary.LittleEndian, invalidManifestCRC); err != nil {
		return err
	}

	if err := binary.Write(mw, binary.LittleEndian, uint32(e.segmentID)); err != nil {
		return err
	}
	if err := binary.Write(mw, binary.LittleEndian, uint64(e.firstKey)); err != nil {
		return err
	}
	if err := binary.Write(mw, binary.LittleEndian, uint64(e.lastKey)); err != nil {
		return err
	}
	if err := binary.Write(mw, binary.LittleEndian, uint64(e.recordCount)); err != nil {
		return err
	}
	if err := binary.Write(mw, binary.LittleEndian, e.segmentCRC); err != nil {
		return err
	}

	pos, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err := w.Seek(pos-int64(manifestPayloadLen)-4, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, crc.Sum32()); err != nil {
		return err
	}
	if _, err := w.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	return nil
}

func decodeManifestEntry(r io.Reader) (manifestEntry, error) {
	var storedCRC uint32
	if err := binary.Read(r, binary.LittleEndian, &storedCRC); err != nil {
		return manifestEntry{}, cleanManifestEOF(err)
	}
	if storedCRC == invalidManifestCRC {
		return manifestEntry{}, io.EOF
	}

	payload := make([]byte, manifestPayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return manifestEntry{}, cleanManifestEOF(err)
	}
	if crc32.ChecksumIEEE(payload) != storedCRC {
		return manifestEntry{}, fmt.Errorf("%w: manifest entry checksum mismatch", store.ErrInvalidData)
	}

	return manifestEntry{
		segmentID:   int(binary.LittleEndian.Uint32(payload[0:4])),
		firstKey:    store.Timestamp(binary.LittleEndian.Uint64(payload[4:12])),
		lastKey:     store.Timestamp(binary.LittleEndian.Uint64(payload[12:20])),
		recordCount: int64(binary.LittleEndian.Uint64(payload[20:28])),
		segmentCRC:  binary.LittleEndian.Uint32(payload[28:32]),
	}, nil
}

func cleanManifestEOF(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return io.EOF
	}
	return err
}

// appendManifestEntry records a newly-sealed segment's identity, opening
// (creating if absent) the archive directory's shared manifest log.
func appendManifestEntry(dir string, entry manifestEntry) error {
	f, err := os.OpenFile(filepath.Join(dir, manifestFileName), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("archive: open manifest in %s: %w", dir, err)
	}
	defer f.Close()

	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("archive: seek manifest in %s: %w", dir, err)
	}
	if err := entry.encode(f); err != nil {
		return fmt.Errorf("archive: append manifest entry in %s: %w", dir, err)
	}
	return nil
}

// readManifest iterates every entry recorded in dir's manifest log, oldest
// first. A missing manifest file yields no entries rather than an error —
// a channel that has never rotated has nothing to verify.
func readManifest(dir string) iter.Seq2[manifestEntry, error] {
	return func(yield func(manifestEntry, error) bool) {
		f, err := os.Open(filepath.Join(dir, manifestFileName))
		if err != nil {
			if os.IsNotExist(err) {
				return
			}
			yield(manifestEntry{}, fmt.Errorf("archive: open manifest in %s: %w", dir, err))
			return
		}
		defer f.Close()

		for {
			entry, err := decodeManifestEntry(f)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(manifestEntry{}, err)
				return
			}
			if !yield(entry, nil) {
				return
			}
		}
	}
}

func checksumFile(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer f.Close()

	crc := crc32.NewIEEE()
	if _, err := io.Copy(crc, f); err != nil {
		return 0, fmt.Errorf("archive: checksum %s: %w", path, err)
	}
	return crc.Sum32(), nil
}

// VerifyManifest recomputes each manifest-recorded segment's checksum
// against the segment file currently on disk, reporting the id of the
// first mismatch (or missing file) it finds. A clean return means every
// segment the manifest knows about is intact.
func (a *Archiver) VerifyManifest() error {
	for entry, err := range readManifest(a.dir) {
		if err != nil {
			return err
		}
		path := a.segmentPath(entry.segmentID)
		actual, err := checksumFile(path)
		if err != nil {
			return fmt.Errorf("archive: verify segment %d: %w", entry.segmentID, err)
		}
		if actual != entry.segmentCRC {
			return fmt.Errorf("%w: segment %d (%s) checksum mismatch: manifest has %08x, disk has %08x", store.ErrInvalidData, entry.segmentID, path, entry.segmentCRC, actual)
		}
	}
	return nil
}
