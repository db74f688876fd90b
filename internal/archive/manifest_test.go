package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Priyanshu23/flashseries/store"
)

func TestSealAppendsVerifiableManifestEntry(t *testing.T) {
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archive")
	activePath := filepath.Join(dir, "active.store")

	itemSize := writeTestStore(t, activePath, []store.Timestamp{10, 20, 30})

	a, err := New(archiveDir)
	if err != nil {
		t.Fatal(err)
	}
	keySize := (store.TimestampCodec{}).Size()
	if _, _, err := a.Seal(activePath, keySize, itemSize); err != nil {
		t.Fatal(err)
	}

	var entries []manifestEntry
	for entry, err := range readManifest(archiveDir) {
		if err != nil {
			t.Fatal(err)
		}
		entries = append(entries, entry)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].firstKey != 10 || entries[0].lastKey != 30 || entries[0].recordCount != 3 {
		t.Fatalf("entry = %+v, want firstKey=10 lastKey=30 recordCount=3", entries[0])
	}

	if err := a.VerifyManifest(); err != nil {
		t.Fatalf("VerifyManifest on an untouched segment: %v", err)
	}
}

func TestVerifyManifestDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	archiveDir := filepath.Join(dir, "archive")
	activePath := filepath.Join(dir, "active.store")

	itemSize := writeTestStore(t, activePath, []store.Timestamp{10, 20, 30})

	a, err := New(archiveDir)
	if err != nil {
		t.Fatal(err)
	}
	keySize := (store.TimestampCodec{}).Size()
	segPath, _, err := a.Seal(activePath, keySize, itemSize)
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.OpenFile(segPath, os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteAt([]byte{'9'}, 0); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	if err := a.VerifyManifest(); err == nil {
		t.Fatal("expected VerifyManifest to detect the tampered segment")
	}
}

func TestReadManifestOnUnrotatedChannelIsEmpty(t *testing.T) {
	dir := t.TempDir()
	a, err := New(filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.VerifyManifest(); err != nil {
		t.Fatalf("VerifyManifest with no manifest file: %v", err)
	}
}
