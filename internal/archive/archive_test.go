package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Priyanshu23/flashseries/store"
)

func writeTestStore(t *testing.T, path string, keys []store.Timestamp) int {
	t.Helper()
	s, err := store.NewStore[int32](path, store.Int32Codec{})
	if err != nil {
		t.Fatal(err)
	}
	for i, k := range keys {
		if err := s.Store(k, int32(i)); err != nil {
			t.Fatal(err)
		}
	}
	itemSize := (store.TimestampCodec{}).Size() + 1 + (store.Int32Codec{}).Size() + 1
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	return itemSize
}

func TestSealMovesFileAndBuildsIndex(t *testing.T) {
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archive")
	activePath := filepath.Join(dir, "active.store")

	itemSize := writeTestStore(t, activePath, []store.Timestamp{10, 20, 30})

	a, err := New(archiveDir)
	if err != nil {
		t.Fatal(err)
	}

	keySize := (store.TimestampCodec{}).Size()
	segPath, idx, err := a.Seal(activePath, keySize, itemSize)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(activePath); !os.IsNotExist(err) {
		t.Fatalf("expected %s to no longer exist after sealing, stat err = %v", activePath, err)
	}
	if _, err := os.Stat(segPath); err != nil {
		t.Fatalf("sealed segment missing: %v", err)
	}
	if _, err := os.Stat(segPath + ".bloom"); err != nil {
		t.Fatalf("bloom sidecar missing: %v", err)
	}

	for _, k := range []store.Timestamp{10, 20, 30} {
		if !idx.MightContain(k) {
			t.Fatalf("MightContain(%d) = false, want true", k)
		}
	}
}

func TestSealNumbersSegmentsSequentially(t *testing.T) {
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archive")

	a, err := New(archiveDir)
	if err != nil {
		t.Fatal(err)
	}

	var itemSize int
	for i := 0; i < 3; i++ {
		activePath := filepath.Join(dir, "active.store")
		itemSize = writeTestStore(t, activePath, []store.Timestamp{store.Timestamp(i + 1)})
		if _, _, err := a.Seal(activePath, (store.TimestampCodec{}).Size(), itemSize); err != nil {
			t.Fatal(err)
		}
	}

	segments, err := a.Segments()
	if err != nil {
		t.Fatal(err)
	}
	if len(segments) != 3 {
		t.Fatalf("len(Segments()) = %d, want 3", len(segments))
	}
	for i, s := range segments {
		want := filepath.Join(archiveDir, segmentPathName(i+1))
		if s != want {
			t.Fatalf("segment %d = %s, want %s", i, s, want)
		}
	}
}

func TestNewResumesNumberingFromExistingSegments(t *testing.T) {
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archive")

	a1, err := New(archiveDir)
	if err != nil {
		t.Fatal(err)
	}
	activePath := filepath.Join(dir, "active.store")
	itemSize := writeTestStore(t, activePath, []store.Timestamp{1})
	if _, _, err := a1.Seal(activePath, (store.TimestampCodec{}).Size(), itemSize); err != nil {
		t.Fatal(err)
	}

	a2, err := New(archiveDir)
	if err != nil {
		t.Fatal(err)
	}
	activePath2 := filepath.Join(dir, "active2.store")
	itemSize2 := writeTestStore(t, activePath2, []store.Timestamp{2})
	segPath, _, err := a2.Seal(activePath2, (store.TimestampCodec{}).Size(), itemSize2)
	if err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(archiveDir, segmentPathName(2))
	if segPath != want {
		t.Fatalf("second archiver's first seal = %s, want %s (numbering should resume)", segPath, want)
	}
}

func segmentPathName(id int) string {
	return (&Archiver{}).segmentPath(id)
}
