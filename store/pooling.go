package store

import "fmt"

// PoolingMethod selects how the records within a bucket are reduced to a
// single value.
type PoolingMethod int

const (
	// End uses the value of the last record in the bucket.
	End PoolingMethod = iota
	// High uses the maximum value in the bucket.
	High
	// Low uses the minimum value in the bucket.
	Low
	// Mean uses the bucket's average value.
	Mean
	// Start uses the value "in force" at the bucket's start — see Conclude
	// in the pooling engine design for the exact gap-fill interaction.
	Start
	// Sum uses the sum of values in the bucket.
	Sum
)

// GapFillMethod selects what an empty bucket (no records fell into it)
// produces.
type GapFillMethod int

const (
	// GapFillNone skips empty buckets entirely; nothing is emitted.
	GapFillNone GapFillMethod = iota
	// GapFillDefault emits the zero value of V for empty buckets.
	GapFillDefault
	// GapFillPrevious emits the carry-forward value (the last record
	// observed in any earlier non-empty bucket) for empty buckets.
	GapFillPrevious
)

// PoolingOptions configures a pooling (bucketed aggregation) scan.
type PoolingOptions struct {
	// Interval is the bucket width in key units. Must be > 0 for any pool
	// operation.
	Interval uint64
	Pooling  PoolingMethod
	GapFill  GapFillMethod
}

// Poolable is the aggregation contract (part of C6) a value type must
// satisfy to be poolable: ordering (for High/Low) plus Mean/Sum over a
// slice of values. Methods are invoked on an arbitrary receiver value
// (including the zero value) purely to dispatch on V's static type — they
// must not depend on receiver state, mirroring the source's associated
// (non-self) functions `Btc::mean(values)` / `Btc::sum(values)`.
type Poolable[V any] interface {
	// Compare returns <0, 0, or >0 as the receiver is less than, equal to,
	// or greater than other.
	Compare(other V) int
	Mean(values []V) V
	Sum(values []V) V
}

// PooledTimeSeries (C6) extends TimeSeries with bucketed aggregation.
type PooledTimeSeries[V any] interface {
	TimeSeries[V]

	PoolAll(opts PoolingOptions) ([]Record[Timestamp, V], error)
	PoolFrom(ts Timestamp, opts PoolingOptions) ([]Record[Timestamp, V], error)
	PoolTo(ts Timestamp, opts PoolingOptions) ([]Record[Timestamp, V], error)
	PoolRange(from, to Timestamp, opts PoolingOptions) ([]Record[Timestamp, V], error)
}

// Pooled wraps a *Store[V] to add the pooling capability, gated at compile
// time by requiring V to satisfy Poolable[V]. This is the "second
// constrained type" that Design Notes §9 calls for in place of the
// source's runtime multi-trait layering: *Store[V] alone implements
// KeyValueStore/TimeSeries for any V, and Pooled[V] additionally
// implements PooledTimeSeries only when V is aggregable.
type Pooled[V Poolable[V]] struct {
	*storeHandle[V]
}

// storeHandle names the embedded *Store[V] so that the embedded field does
// not shadow the promoted Store method.
type storeHandle[V any] = Store[V]

// NewPooledStore opens a record file whose value type supports pooling
// aggregation, returning a handle with both TimeSeries and
// PooledTimeSeries capability.
func NewPooledStore[V Poolable[V]](path string, valCodec Codec[V]) (Pooled[V], error) {
	s, err := NewStore[V](path, valCodec)
	if err != nil {
		return Pooled[V]{}, err
	}
	return Pooled[V]{storeHandle: s}, nil
}

var _ PooledTimeSeries[poolableInt32] = Pooled[poolableInt32]{}

// poolableInt32 exists only to anchor the compile-time interface
// satisfaction check above; real Poolable value types live in
// internal/value (Btc, Usd).
type poolableInt32 int32

func (v poolableInt32) Compare(other poolableInt32) int {
	switch {
	case v < other:
		return -1
	case v > other:
		return 1
	default:
		return 0
	}
}

func (v poolableInt32) Mean(values []poolableInt32) poolableInt32 {
	if len(values) == 0 {
		return 0
	}
	var sum int64
	for _, x := range values {
		sum += int64(x)
	}
	return poolableInt32(sum / int64(len(values)))
}

func (v poolableInt32) Sum(values []poolableInt32) poolableInt32 {
	var sum int64
	for _, x := range values {
		sum += int64(x)
	}
	return poolableInt32(sum)
}

// PoolAll pools every stored record, anchored at the first key.
func (p Pooled[V]) PoolAll(opts PoolingOptions) ([]Record[Timestamp, V], error) {
	records, err := p.RetrieveAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return p.runBuckets(records, p.firstKey, opts)
}

// PoolFrom pools every record with key >= ts, anchored at ts itself: the
// first bucket is [ts, ts+interval) regardless of where the first matching
// record actually falls within it.
func (p Pooled[V]) PoolFrom(ts Timestamp, opts PoolingOptions) ([]Record[Timestamp, V], error) {
	records, err := p.RetrieveFrom(ts)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return p.runBuckets(records, ts, opts)
}

// PoolTo pools every record with key < ts, anchored at the first key.
func (p Pooled[V]) PoolTo(ts Timestamp, opts PoolingOptions) ([]Record[Timestamp, V], error) {
	records, err := p.RetrieveTo(ts)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return p.runBuckets(records, p.firstKey, opts)
}

// PoolRange pools every record with key in [from, to), anchored at from
// itself, as in PoolFrom.
func (p Pooled[V]) PoolRange(from, to Timestamp, opts PoolingOptions) ([]Record[Timestamp, V], error) {
	records, err := p.RetrieveRange(from, to)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return p.runBuckets(records, from, opts)
}

type bucket[V any] struct {
	start   Timestamp
	end     Timestamp
	records []Record[Timestamp, V]
}

// runBuckets implements the bucket algorithm of §4.6: roll a [start,
// start+interval) window forward across records in ascending order,
// concluding (emitting or skipping) each bucket as it's passed, with
// carry-forward tracking for gap-fill and Start pooling.
func (p Pooled[V]) runBuckets(records []Record[Timestamp, V], anchor Timestamp, opts PoolingOptions) ([]Record[Timestamp, V], error) {
	if opts.Interval == 0 {
		return nil, fmt.Errorf("%w: pooling interval must be greater than zero", ErrInvalidInput)
	}

	interval := Timestamp(opts.Interval)
	var out []Record[Timestamp, V]

	// Seed the carry-forward value with whatever was "in force" at the
	// anchor: the nearest record at or before it, which may lie outside
	// records (e.g. PoolFrom's anchor can fall strictly between two
	// stored keys, or before the queried range's first match). Falling
	// back to records[0] covers PoolAll/PoolTo, whose anchor is the
	// store's own first key and thus has no earlier record.
	lastRecord := records[0]
	if nearest, err := p.RetrieveNearest(anchor, Backward); err == nil {
		lastRecord = nearest
	}

	conclude := func(b bucket[V]) {
		if len(b.records) > 0 {
			out = append(out, Record[Timestamp, V]{Key: b.start, Value: concludeNonEmpty(b, opts, lastRecord)})
			lastRecord = b.records[len(b.records)-1]
			return
		}

		switch opts.GapFill {
		case GapFillDefault:
			var zero V
			out = append(out, Record[Timestamp, V]{Key: b.start, Value: zero})
		case GapFillPrevious:
			out = append(out, Record[Timestamp, V]{Key: b.start, Value: lastRecord.Value})
		case GapFillNone:
			// emit nothing
		}
	}

	cur := bucket[V]{start: anchor, end: anchor + interval}

	for _, rec := range records {
		if rec.Key >= cur.end {
			conclude(cur)
			for rec.Key >= cur.end {
				cur = bucket[V]{start: cur.start + interval, end: cur.end + interval}
				if rec.Key >= cur.end {
					conclude(cur)
				}
			}
		}
		cur.records = append(cur.records, rec)
	}
	conclude(cur)

	return out, nil
}

// concludeNonEmpty reduces a non-empty bucket's records to a single value
// per the configured PoolingMethod. priorLastRecord is the carry-forward
// value as it stood before this bucket (used by Start pooling under
// Previous gap-fill).
func concludeNonEmpty[V Poolable[V]](b bucket[V], opts PoolingOptions, priorLastRecord Record[Timestamp, V]) V {
	switch opts.Pooling {
	case End:
		return b.records[len(b.records)-1].Value

	case High:
		best := b.records[0].Value
		for _, r := range b.records[1:] {
			if r.Value.Compare(best) > 0 {
				best = r.Value
			}
		}
		return best

	case Low:
		best := b.records[0].Value
		for _, r := range b.records[1:] {
			if r.Value.Compare(best) < 0 {
				best = r.Value
			}
		}
		return best

	case Mean:
		values := make([]V, len(b.records))
		for i, r := range b.records {
			values[i] = r.Value
		}
		var zero V
		return zero.Mean(values)

	case Sum:
		values := make([]V, len(b.records))
		for i, r := range b.records {
			values[i] = r.Value
		}
		var zero V
		return zero.Sum(values)

	case Start:
		first := b.records[0]
		if first.Key == b.start || opts.GapFill == GapFillDefault {
			return first.Value
		}
		return priorLastRecord.Value

	default:
		var zero V
		return zero
	}
}
