package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Priyanshu23/flashseries/store"
)

func TestGetOrCreateThenStoreAndRetrieve(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ch, err := r.GetOrCreate("gemini", "btcusd", "trades", ChannelBtc)
	if err != nil {
		t.Fatal(err)
	}

	if err := ch.Store(1000, 123456789); err != nil {
		t.Fatal(err)
	}
	if err := ch.Store(2000, 987654321); err != nil {
		t.Fatal(err)
	}

	rec, err := ch.RetrieveNearest(1000, store.None)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Key != 1000 || rec.Value != 123456789 {
		t.Fatalf("RetrieveNearest(1000) = %+v, want {1000 123456789}", rec)
	}

	if _, found := r.Get("gemini", "btcusd", "trades"); !found {
		t.Fatal("expected channel to be registered after GetOrCreate")
	}
}

func TestGetOrCreateRejectsKindMismatch(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := r.GetOrCreate("gemini", "btcusd", "trades", ChannelBtc); err != nil {
		t.Fatal(err)
	}
	if _, err := r.GetOrCreate("gemini", "btcusd", "trades", ChannelUsd); err == nil {
		t.Fatal("expected error reopening an existing btc channel as usd")
	}
}

func TestNewDiscoversExistingChannelFiles(t *testing.T) {
	dir := t.TempDir()

	r1, err := New(dir, filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatal(err)
	}
	ch, err := r1.GetOrCreate("gemini", "btcusd", "trades", ChannelBtc)
	if err != nil {
		t.Fatal(err)
	}
	if err := ch.Store(5, 42); err != nil {
		t.Fatal(err)
	}
	if err := r1.Close(); err != nil {
		t.Fatal(err)
	}

	r2, err := New(dir, filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Close()

	reopened, found := r2.Get("gemini", "btcusd", "trades")
	if !found {
		t.Fatal("expected channel to be rediscovered on fresh Registry.New")
	}
	if reopened.Kind() != ChannelBtc {
		t.Fatalf("Kind() = %v, want %v", reopened.Kind(), ChannelBtc)
	}
	if reopened.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", reopened.Len())
	}

	want := filepath.Join(dir, "gemini", "btcusd", "trades.btc.store")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected channel file at %s: %v", want, err)
	}
}

func TestRotateAllSealsChannelsOverThreshold(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ch, err := r.GetOrCreate("gemini", "btcusd", "trades", ChannelBtc)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := ch.Store(store.Timestamp(1000+i), int64(i)); err != nil {
			t.Fatal(err)
		}
	}

	sealed, err := r.RotateAll(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(sealed) != 1 {
		t.Fatalf("RotateAll sealed %v, want exactly one segment", sealed)
	}
	if _, err := os.Stat(sealed[0]); err != nil {
		t.Fatalf("sealed segment missing on disk: %v", err)
	}
	if _, err := os.Stat(sealed[0] + ".bloom"); err != nil {
		t.Fatalf("sealed segment missing bloom sidecar: %v", err)
	}

	if ch.Len() != 0 {
		t.Fatalf("channel Len() after rotate = %d, want 0 (fresh active file)", ch.Len())
	}

	if err := ch.Store(2000, 99); err != nil {
		t.Fatal(err)
	}
	rec, err := ch.RetrieveNearest(2000, store.None)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Key != 2000 || rec.Value != 99 {
		t.Fatalf("RetrieveNearest after rotate = %+v, want {2000 99}", rec)
	}

	sealedAgain, err := r.RotateAll(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(sealedAgain) != 0 {
		t.Fatalf("RotateAll on a fresh, below-threshold file sealed %v, want none", sealedAgain)
	}
}

func TestRetrieveRangeSpansSealedSegments(t *testing.T) {
	dir := t.TempDir()
	r, err := New(dir, filepath.Join(dir, "archive"))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ch, err := r.GetOrCreate("gemini", "btcusd", "trades", ChannelUsd)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if err := ch.Store(store.Timestamp(1000+i), int64(100+i)); err != nil {
			t.Fatal(err)
		}
	}
	if sealed, err := r.RotateAll(3); err != nil || len(sealed) != 1 {
		t.Fatalf("RotateAll = %v, %v, want exactly one sealed segment", sealed, err)
	}

	for i := 0; i < 2; i++ {
		if err := ch.Store(store.Timestamp(2000+i), int64(200+i)); err != nil {
			t.Fatal(err)
		}
	}

	recs, err := ch.RetrieveRange(0, 3000)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 5 {
		t.Fatalf("RetrieveRange across a sealed segment + live file = %d records, want 5: %+v", len(recs), recs)
	}
	for i, want := range []store.Timestamp{1000, 1001, 1002, 2000, 2001} {
		if recs[i].Key != want {
			t.Fatalf("record %d key = %d, want %d (order must stay oldest-segment-first, then live)", i, recs[i].Key, want)
		}
	}
}
