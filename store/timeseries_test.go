package store

import (
	"path/filepath"
	"reflect"
	"testing"
)

func newFilledStore(t *testing.T, records [][2]int64) *Store[int32] {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "data.store")

	s, err := NewStore[int32](path, Int32Codec{})
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range records {
		if err := s.Store(Timestamp(r[0]), int32(r[1])); err != nil {
			t.Fatalf("store(%d,%d): %v", r[0], r[1], err)
		}
	}
	return s
}

func TestRetrieveNearestDirection(t *testing.T) {
	s := newFilledStore(t, [][2]int64{{10, 1}, {15, 1}, {20, 2}, {30, 3}})
	defer s.Close()

	rec, err := s.RetrieveNearest(22, Forward)
	if err != nil || rec.Key != 30 || rec.Value != 3 {
		t.Fatalf("RetrieveNearest(22, Forward) = %+v, %v; want (30,3), nil", rec, err)
	}

	rec, err = s.RetrieveNearest(17, Backward)
	if err != nil || rec.Key != 15 || rec.Value != 1 {
		t.Fatalf("RetrieveNearest(17, Backward) = %+v, %v; want (15,1), nil", rec, err)
	}

	rec, err = s.RetrieveNearest(15, None)
	if err != nil || rec.Key != 15 || rec.Value != 1 {
		t.Fatalf("RetrieveNearest(15, None) = %+v, %v; want (15,1), nil", rec, err)
	}
}

func TestRetrieveNearestNotFound(t *testing.T) {
	s := newFilledStore(t, [][2]int64{{10, 1}, {20, 2}})
	defer s.Close()

	if _, err := s.RetrieveNearest(15, None); err == nil {
		t.Fatal("expected error for None direction with no exact match")
	}
	if _, err := s.RetrieveNearest(5, Backward); err == nil {
		t.Fatal("expected error: target before range with Backward direction")
	}
}

func TestRetrieveAnyStoredKeyIsNearest(t *testing.T) {
	s := newFilledStore(t, [][2]int64{{10, 1}, {15, 2}, {20, 3}, {30, 4}})
	defer s.Close()

	for _, k := range []Timestamp{10, 15, 20, 30} {
		for _, dir := range []Direction{Forward, Backward, None} {
			rec, err := s.RetrieveNearest(k, dir)
			if err != nil {
				t.Fatalf("RetrieveNearest(%d, %v): %v", k, dir, err)
			}
			if rec.Key != k {
				t.Fatalf("RetrieveNearest(%d, %v).Key = %d, want %d", k, dir, rec.Key, k)
			}
		}
	}
}

func TestHalfOpenRange(t *testing.T) {
	s := newFilledStore(t, [][2]int64{{10, 1}, {20, 2}, {30, 3}, {40, 4}})
	defer s.Close()

	got, err := s.RetrieveRange(10, 30)
	if err != nil {
		t.Fatal(err)
	}
	want := []Record[Timestamp, int32]{{10, 1}, {20, 2}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RetrieveRange(10,30) = %+v, want %+v", got, want)
	}

	got, err = s.RetrieveRange(30, 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("RetrieveRange(30,30) = %+v, want empty", got)
	}

	got, err = s.RetrieveRange(7, 43)
	if err != nil {
		t.Fatal(err)
	}
	want = []Record[Timestamp, int32]{{10, 1}, {20, 2}, {30, 3}, {40, 4}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RetrieveRange(7,43) = %+v, want %+v", got, want)
	}
}

func TestRetrieveFromAndTo(t *testing.T) {
	s := newFilledStore(t, [][2]int64{{10, 1}, {20, 2}, {30, 3}, {40, 4}})
	defer s.Close()

	from, err := s.RetrieveFrom(9)
	if err != nil || len(from) != 4 {
		t.Fatalf("RetrieveFrom(9) = %+v, %v", from, err)
	}

	from, err = s.RetrieveFrom(12)
	if err != nil {
		t.Fatal(err)
	}
	want := []Record[Timestamp, int32]{{20, 2}, {30, 3}, {40, 4}}
	if !reflect.DeepEqual(from, want) {
		t.Fatalf("RetrieveFrom(12) = %+v, want %+v", from, want)
	}

	from, err = s.RetrieveFrom(40)
	if err != nil || len(from) != 1 || from[0].Key != 40 {
		t.Fatalf("RetrieveFrom(40) = %+v, %v", from, err)
	}

	from, err = s.RetrieveFrom(44)
	if err != nil || len(from) != 0 {
		t.Fatalf("RetrieveFrom(44) = %+v, %v, want empty", from, err)
	}

	to, err := s.RetrieveTo(9)
	if err != nil || len(to) != 0 {
		t.Fatalf("RetrieveTo(9) = %+v, %v, want empty", to, err)
	}

	to, err = s.RetrieveTo(12)
	if err != nil {
		t.Fatal(err)
	}
	want = []Record[Timestamp, int32]{{10, 1}}
	if !reflect.DeepEqual(to, want) {
		t.Fatalf("RetrieveTo(12) = %+v, want %+v", to, want)
	}

	to, err = s.RetrieveTo(40)
	if err != nil {
		t.Fatal(err)
	}
	want = []Record[Timestamp, int32]{{10, 1}, {20, 2}, {30, 3}}
	if !reflect.DeepEqual(to, want) {
		t.Fatalf("RetrieveTo(40) = %+v, want %+v", to, want)
	}

	to, err = s.RetrieveTo(44)
	if err != nil {
		t.Fatal(err)
	}
	want = []Record[Timestamp, int32]{{10, 1}, {20, 2}, {30, 3}, {40, 4}}
	if !reflect.DeepEqual(to, want) {
		t.Fatalf("RetrieveTo(44) = %+v, want %+v", to, want)
	}
}

func TestRetrieveRangeMatchesOriginalSource(t *testing.T) {
	s := newFilledStore(t, [][2]int64{{10, 1}, {20, 2}, {30, 3}, {40, 4}})
	defer s.Close()

	cases := []struct {
		from, to Timestamp
		want     []Record[Timestamp, int32]
	}{
		{9, 21, []Record[Timestamp, int32]{{10, 1}, {20, 2}}},
		{9, 30, []Record[Timestamp, int32]{{10, 1}, {20, 2}}},
		{10, 31, []Record[Timestamp, int32]{{10, 1}, {20, 2}, {30, 3}}},
		{21, 44, []Record[Timestamp, int32]{{30, 3}, {40, 4}}},
	}

	for _, c := range cases {
		got, err := s.RetrieveRange(c.from, c.to)
		if err != nil {
			t.Fatalf("RetrieveRange(%d,%d): %v", c.from, c.to, err)
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Fatalf("RetrieveRange(%d,%d) = %+v, want %+v", c.from, c.to, got, c.want)
		}
	}
}

func TestRetrieveEmptyStore(t *testing.T) {
	s := newFilledStore(t, nil)
	defer s.Close()

	if got, err := s.RetrieveAll(); err != nil || len(got) != 0 {
		t.Fatalf("RetrieveAll on empty store = %+v, %v", got, err)
	}
	if got, err := s.RetrieveFrom(1); err != nil || len(got) != 0 {
		t.Fatalf("RetrieveFrom on empty store = %+v, %v", got, err)
	}
	if got, err := s.RetrieveTo(1); err != nil || len(got) != 0 {
		t.Fatalf("RetrieveTo on empty store = %+v, %v", got, err)
	}
	if got, err := s.RetrieveRange(1, 2); err != nil || len(got) != 0 {
		t.Fatalf("RetrieveRange on empty store = %+v, %v", got, err)
	}
}
