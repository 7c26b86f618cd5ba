// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/downloadables/lib/clock"
	"github.com/bureau-foundation/downloadables/lib/downloadables"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T, fakeClock *clock.FakeClock) *Store {
	t.Helper()
	store, err := Open(Config{
		Path:  filepath.Join(t.TempDir(), "history.db"),
		Clock: fakeClock,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return store
}

func trackDownload(store *Store, id string, at time.Time, bytes int64, failure string) {
	store.Track(downloadables.Event{Kind: downloadables.EventDownloadStart, ID: id, At: at, Attempt: 1})
	end := downloadables.Event{Kind: downloadables.EventDownloadEnd, ID: id, At: at.Add(time.Second), Bytes: bytes, Attempt: 1}
	if failure != "" {
		end.ErrorType, end.Error = "network_web_exception", failure
	}
	store.Track(end)
}

func TestRecentNewestFirst(t *testing.T) {
	store := openTestStore(t, clock.Fake(epoch))
	trackDownload(store, "level_1", epoch, 100, "")
	store.Track(downloadables.Event{Kind: downloadables.EventVerified, ID: "level_1", At: epoch.Add(2 * time.Second), Bytes: 100, Attempt: 1})
	trackDownload(store, "level_2", epoch.Add(time.Minute), 10, "connection reset")
	if err := store.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	events, err := store.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 5 {
		t.Fatalf("Recent returned %d events, want 5", len(events))
	}
	newest := events[0]
	if newest.ID != "level_2" || newest.Kind != downloadables.EventDownloadEnd || newest.Error != "connection reset" {
		t.Errorf("newest = %+v", newest)
	}
	if !newest.At.Equal(epoch.Add(time.Minute + time.Second)) {
		t.Errorf("newest.At = %v", newest.At)
	}

	filtered, err := store.Recent(context.Background(), "level_1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 || filtered[0].Kind != downloadables.EventVerified || filtered[1].ID != "level_1" {
		t.Errorf("filtered = %+v", filtered)
	}
}

func TestSummaries(t *testing.T) {
	store := openTestStore(t, clock.Fake(epoch))
	trackDownload(store, "level_1", epoch, 40, "timeout")
	trackDownload(store, "level_1", epoch.Add(time.Minute), 100, "")
	store.Track(downloadables.Event{Kind: downloadables.EventCRCMismatch, ID: "level_1", At: epoch.Add(2 * time.Minute)})
	trackDownload(store, "level_2", epoch, 10, "")
	store.Track(downloadables.Event{Kind: downloadables.EventVerified, ID: "level_2", At: epoch.Add(3 * time.Minute)})
	if err := store.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	summaries, err := store.Summaries(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []Summary{
		{ID: "level_1", Downloads: 2, Failures: 1, CRCMismatches: 1, BytesReceived: 100, LastActivityAt: epoch.Add(2 * time.Minute)},
		{ID: "level_2", Downloads: 1, Verified: 1, BytesReceived: 10, LastActivityAt: epoch.Add(3 * time.Minute)},
	}
	if len(summaries) != len(want) {
		t.Fatalf("got %d summaries, want %d", len(summaries), len(want))
	}
	for i := range want {
		got := summaries[i]
		if !got.LastActivityAt.Equal(want[i].LastActivityAt) {
			t.Errorf("summary[%d].LastActivityAt = %v, want %v", i, got.LastActivityAt, want[i].LastActivityAt)
		}
		got.LastActivityAt = want[i].LastActivityAt
		if got != want[i] {
			t.Errorf("summary[%d] = %+v, want %+v", i, got, want[i])
		}
	}
}

func TestPruneOlderThan(t *testing.T) {
	fakeClock := clock.Fake(epoch.Add(48 * time.Hour))
	store := openTestStore(t, fakeClock)
	trackDownload(store, "old", epoch, 1, "")
	trackDownload(store, "new", epoch.Add(47*time.Hour), 1, "")
	if err := store.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	removed, err := store.PruneOlderThan(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed %d events, want 2", removed)
	}
	events, err := store.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, event := range events {
		if event.ID != "new" {
			t.Errorf("event for %q survived pruning", event.ID)
		}
	}
}

func TestTrackAfterCloseIsIgnored(t *testing.T) {
	store, err := Open(Config{Path: filepath.Join(t.TempDir(), "history.db")})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	store.Track(downloadables.Event{Kind: downloadables.EventVerified, ID: "late"})
	if err := store.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
}

func TestEngineEventsReachHistory(t *testing.T) {
	store := openTestStore(t, clock.Fake(epoch))
	var tracker downloadables.Tracker = store
	tracker.Track(downloadables.Event{Kind: downloadables.EventCRCMismatch, ID: "level_1", At: epoch, Bytes: 100, Attempt: 2})
	if err := store.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}
	events, err := store.Recent(context.Background(), "level_1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Attempt != 2 || events[0].Bytes != 100 {
		t.Errorf("events = %+v", events)
	}
}
