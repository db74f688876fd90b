package registry

import (
	"fmt"
	"sync"

	"github.com/Priyanshu23/flashseries/internal/archive"
	"github.com/Priyanshu23/flashseries/internal/value"
	"github.com/Priyanshu23/flashseries/store"
)

// ChannelKind tags which concrete value type a Channel was opened with —
// the Go rendering of the original's Channel enum
// (KeyValueStore/TimeSeries/PooledTimeSeries boxed trait objects), per
// Design Notes §9: "a tagged sum of store kinds, each carrying its own
// typed handle," rather than dynamic downcasts.
type ChannelKind int

const (
	ChannelBtc ChannelKind = iota
	ChannelUsd
)

func (k ChannelKind) String() string {
	switch k {
	case ChannelBtc:
		return "btc"
	case ChannelUsd:
		return "usd"
	default:
		return "unknown"
	}
}

// Record is the market/symbol-agnostic view of a stored point handed back
// across the façade boundary: Value is always the channel's minor unit
// (satoshis for btc, cents for usd).
type Record struct {
	Key   store.Timestamp
	Value int64
}

// Channel is one market/symbol/channel's handle: exactly one of its two
// concrete-V fields is live, selected by kind. Every concrete V in this
// repo (Btc, Usd) satisfies store.Poolable, so a Channel always carries
// full PooledTimeSeries capability — there is no separate "raw" or
// "time-series-only" kind as in the original, since Go's Store[V] already
// provides KeyValueStore+TimeSeries for any V per the file_storage.go
// design note.
type Channel struct {
	mu   sync.Mutex
	kind ChannelKind
	btc  store.Pooled[value.Btc]
	usd  store.Pooled[value.Usd]

	// path and archiveDir back Rotate: path is this channel's live record
	// file, archiveDir is where Rotate seals it once it crosses a record
	// threshold. archiver is created lazily on first Rotate call.
	path       string
	archiveDir string
	archiver   *archive.Archiver
}

func openBtcChannel(path, archiveDir string) (*Channel, error) {
	p, err := store.NewPooledStore[value.Btc](path, value.BtcCodec{})
	if err != nil {
		return nil, err
	}
	return &Channel{kind: ChannelBtc, btc: p, path: path, archiveDir: archiveDir}, nil
}

func openUsdChannel(path, archiveDir string) (*Channel, error) {
	p, err := store.NewPooledStore[value.Usd](path, value.UsdCodec{})
	if err != nil {
		return nil, err
	}
	return &Channel{kind: ChannelUsd, usd: p, path: path, archiveDir: archiveDir}, nil
}

// Kind reports which value type this channel holds.
func (c *Channel) Kind() ChannelKind { return c.kind }

// Len returns the number of stored records.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.kind {
	case ChannelBtc:
		return c.btc.Len()
	case ChannelUsd:
		return c.usd.Len()
	default:
		return 0
	}
}

// ItemSize returns the fixed on-disk record size, needed by the archiver
// to scan keys without knowing the concrete V type itself.
func (c *Channel) ItemSize() int {
	keySize := (store.TimestampCodec{}).Size()
	switch c.kind {
	case ChannelBtc:
		return keySize + 1 + (value.BtcCodec{}).Size() + 1
	case ChannelUsd:
		return keySize + 1 + (value.UsdCodec{}).Size() + 1
	default:
		return 0
	}
}

// Store appends (ts, minorUnits) — satoshis for a btc channel, cents for a
// usd channel.
func (c *Channel) Store(ts store.Timestamp, minorUnits int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.kind {
	case ChannelBtc:
		return c.btc.Store(ts, value.NewBtc(minorUnits))
	case ChannelUsd:
		return c.usd.Store(ts, value.NewUsd(minorUnits))
	default:
		return fmt.Errorf("registry: channel has unknown kind")
	}
}

// RetrieveNearest resolves a single record per store.Direction.
func (c *Channel) RetrieveNearest(ts store.Timestamp, direction store.Direction) (Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.kind {
	case ChannelBtc:
		rec, err := c.btc.RetrieveNearest(ts, direction)
		if err != nil {
			return Record{}, err
		}
		return Record{Key: rec.Key, Value: rec.Value.Satoshis()}, nil
	case ChannelUsd:
		rec, err := c.usd.RetrieveNearest(ts, direction)
		if err != nil {
			return Record{}, err
		}
		return Record{Key: rec.Key, Value: rec.Value.Cents()}, nil
	default:
		return Record{}, fmt.Errorf("registry: channel has unknown kind")
	}
}

// RetrieveRange returns every record with key in [from, to), reading
// across sealed archive segments that predate the live file's firstKey
// (oldest to newest) before reading the live file itself. Per E4, the
// live file is the only segment ever written to; everything older is
// read-only history this method stitches back in so a range scan never
// silently misses data that crossed the rotation threshold.
func (c *Channel) RetrieveRange(from, to store.Timestamp) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	segments, err := c.sealedSegments()
	if err != nil {
		return nil, err
	}

	switch c.kind {
	case ChannelBtc:
		var out []Record
		for _, segPath := range segments {
			recs, err := rangeFromSegment[value.Btc](segPath, value.BtcCodec{}, from, to)
			if err != nil {
				return nil, err
			}
			out = append(out, btcRecords(recs)...)
		}
		recs, err := c.btc.RetrieveRange(from, to)
		if err != nil {
			return nil, err
		}
		return append(out, btcRecords(recs)...), nil
	case ChannelUsd:
		var out []Record
		for _, segPath := range segments {
			recs, err := rangeFromSegment[value.Usd](segPath, value.UsdCodec{}, from, to)
			if err != nil {
				return nil, err
			}
			out = append(out, usdRecords(recs)...)
		}
		recs, err := c.usd.RetrieveRange(from, to)
		if err != nil {
			return nil, err
		}
		return append(out, usdRecords(recs)...), nil
	default:
		return nil, fmt.Errorf("registry: channel has unknown kind")
	}
}

// VerifyArchive recomputes the checksum of every segment this channel has
// ever sealed against its manifest entry, returning an error naming the
// first segment whose on-disk bytes no longer match what was recorded at
// seal time (truncation, corruption, or manual tampering).
func (c *Channel) VerifyArchive() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.archiver == nil {
		archiver, err := archive.New(c.archiveDir)
		if err != nil {
			return err
		}
		c.archiver = archiver
	}
	return c.archiver.VerifyManifest()
}

// sealedSegments lists this channel's sealed archive files in ascending
// (oldest-first) order, lazily opening the Archiver used to list them if
// Rotate has never run yet.
func (c *Channel) sealedSegments() ([]string, error) {
	if c.archiver == nil {
		archiver, err := archive.New(c.archiveDir)
		if err != nil {
			return nil, err
		}
		c.archiver = archiver
	}
	return c.archiver.Segments()
}

// rangeFromSegment opens a sealed, read-only segment file and returns the
// records within it whose key lies in [from, to). Sealed segments are
// never written to again, so opening one through store.NewStore only to
// read from it is safe despite NewStore's read-write file mode.
func rangeFromSegment[V store.Poolable[V]](path string, codec store.Codec[V], from, to store.Timestamp) ([]store.Record[store.Timestamp, V], error) {
	seg, err := store.NewStore[V](path, codec)
	if err != nil {
		return nil, fmt.Errorf("registry: open segment %s: %w", path, err)
	}
	defer seg.Close()
	return seg.RetrieveRange(from, to)
}

// PoolRange pools every record with key in [from, to) per opts.
func (c *Channel) PoolRange(from, to store.Timestamp, opts store.PoolingOptions) ([]Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.kind {
	case ChannelBtc:
		recs, err := c.btc.PoolRange(from, to, opts)
		if err != nil {
			return nil, err
		}
		return btcRecords(recs), nil
	case ChannelUsd:
		recs, err := c.usd.PoolRange(from, to, opts)
		if err != nil {
			return nil, err
		}
		return usdRecords(recs), nil
	default:
		return nil, fmt.Errorf("registry: channel has unknown kind")
	}
}

// Rotate seals the channel's current file into a numbered archive segment
// once it holds at least maxRecords records, then reopens a fresh empty
// file at the same path as the new live store. It reports (false, "", nil)
// when the channel is below the threshold.
func (c *Channel) Rotate(maxRecords int) (rotated bool, segmentPath string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var recordCount, itemSize int
	switch c.kind {
	case ChannelBtc:
		recordCount, itemSize = c.btc.Len(), c.ItemSize()
	case ChannelUsd:
		recordCount, itemSize = c.usd.Len(), c.ItemSize()
	default:
		return false, "", fmt.Errorf("registry: channel has unknown kind")
	}

	if !archive.ShouldRotate(recordCount, maxRecords) {
		return false, "", nil
	}

	if c.archiver == nil {
		c.archiver, err = archive.New(c.archiveDir)
		if err != nil {
			return false, "", err
		}
	}

	switch c.kind {
	case ChannelBtc:
		if err := c.btc.Close(); err != nil {
			return false, "", err
		}
	case ChannelUsd:
		if err := c.usd.Close(); err != nil {
			return false, "", err
		}
	}

	keySize := (store.TimestampCodec{}).Size()
	segmentPath, _, err = c.archiver.Seal(c.path, keySize, itemSize)
	if err != nil {
		return false, "", fmt.Errorf("registry: rotate %s: %w", c.path, err)
	}

	switch c.kind {
	case ChannelBtc:
		c.btc, err = store.NewPooledStore[value.Btc](c.path, value.BtcCodec{})
	case ChannelUsd:
		c.usd, err = store.NewPooledStore[value.Usd](c.path, value.UsdCodec{})
	}
	if err != nil {
		return false, "", fmt.Errorf("registry: reopen %s after rotate: %w", c.path, err)
	}

	return true, segmentPath, nil
}

// Close releases the channel's underlying file handle.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.kind {
	case ChannelBtc:
		return c.btc.Close()
	case ChannelUsd:
		return c.usd.Close()
	default:
		return nil
	}
}

func btcRecords(recs []store.Record[store.Timestamp, value.Btc]) []Record {
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = Record{Key: r.Key, Value: r.Value.Satoshis()}
	}
	return out
}

func usdRecords(recs []store.Record[store.Timestamp, value.Usd]) []Record {
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = Record{Key: r.Key, Value: r.Value.Cents()}
	}
	return out
}
