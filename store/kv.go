package store

// KeyValueStore (C4) is the base capability: append-only storage keyed by
// any ordered type, indexed by current length. It is expressed generically
// over K here for documentation purposes (matching the source's "a single
// trait object handed to callers that don't care which concrete
// ordered-key medium backs it"); Store is the one concrete medium this
// repo provides, always keyed by Timestamp — see the comment on Store for
// why Go's lack of generic specialization rules out a K-generic Store.
type KeyValueStore[K ordered, V any] interface {
	Len() int
	Store(k K, v V) error
}

var _ KeyValueStore[Timestamp, int32] = (*Store[int32])(nil)
