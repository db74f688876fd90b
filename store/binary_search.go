package store

import "fmt"

// locate performs an on-disk binary search (C3) for targetKey within
// [startOff, endOff], both of which must be offsets of actual records and
// multiples of s.itemSize, with endOff >= startOff. It returns the offset
// of the record that satisfies direction relative to targetKey.
//
// Unlike the original recursive implementation, this descends iteratively
// over record indices: each step halves the candidate range by reassigning
// (startOff, endOff) to (centerOff, endOff) or (startOff, centerOff).
func (s *Store[V]) locate(direction Direction, targetKey Timestamp, startOff, endOff int64) (int64, error) {
	keyBuf := make([]byte, TimestampCodec{}.Size())

	if startOff == endOff {
		// Exactly one record in range: it matches only if its key equals
		// targetKey, or if direction says to settle for whatever's there.
		key, err := s.readKeyAt(startOff, keyBuf)
		if err != nil {
			return 0, err
		}
		switch {
		case key == targetKey:
			return startOff, nil
		case key < targetKey:
			if direction == Backward {
				return startOff, nil
			}
			return 0, fmt.Errorf("%w: search key is after the search range", ErrNotFound)
		default:
			if direction == Forward {
				return startOff, nil
			}
			return 0, fmt.Errorf("%w: search key is before the search range", ErrNotFound)
		}
	}

	startKey, err := s.readKeyAt(startOff, keyBuf)
	if err != nil {
		return 0, err
	}

	if targetKey < startKey {
		if direction == Forward {
			return startOff, nil
		}
		return 0, fmt.Errorf("%w: search key is before the search range", ErrNotFound)
	} else if targetKey == startKey {
		return startOff, nil
	}

	endKey, err := s.readKeyAt(endOff, keyBuf)
	if err != nil {
		return 0, err
	}

	if targetKey > endKey {
		if direction == Backward {
			return endOff, nil
		}
		return 0, fmt.Errorf("%w: search key is after the search range", ErrNotFound)
	} else if targetKey == endKey {
		return endOff, nil
	}

	for {
		rangeItems := (endOff - startOff) / int64(s.itemSize)

		if rangeItems == 1 {
			switch direction {
			case Forward:
				return endOff, nil
			case Backward:
				return startOff, nil
			default:
				return 0, fmt.Errorf("%w: search key was not found", ErrNotFound)
			}
		}

		centerOff := startOff + (rangeItems/2)*int64(s.itemSize)

		centerKey, err := s.readKeyAt(centerOff, keyBuf)
		if err != nil {
			return 0, err
		}

		switch {
		case targetKey < centerKey:
			endOff = centerOff
		case targetKey > centerKey:
			startOff = centerOff
		default:
			return centerOff, nil
		}
	}
}
