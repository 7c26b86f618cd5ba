// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package downloadables

import (
	"context"
	"time"
)

// Reachability is the kind of network currently available.
type Reachability int

const (
	ReachabilityNone Reachability = iota
	ReachabilityWifi
	ReachabilityCarrier
)

func (r Reachability) String() string {
	switch r {
	case ReachabilityWifi:
		return "wifi"
	case ReachabilityCarrier:
		return "carrier"
	default:
		return "none"
	}
}

// DownloadRequest asks the network to bring the blob for ID in line
// with Entry, resuming from whatever bytes are already on disk.
type DownloadRequest struct {
	ID    string
	Entry CatalogEntry
}

// Network starts transfers. The engine never blocks on it.
type Network interface {
	Reachability() Reachability

	// StartDownload begins a transfer that writes into the Downloads
	// directory under req.ID. ctx is cancelled when the engine shuts
	// down.
	StartDownload(ctx context.Context, req DownloadRequest) Transfer
}

// Transfer is an in-flight download.
type Transfer interface {
	// Poll reports completion without blocking. Once done is true, err
	// is the outcome and later calls return the same values.
	Poll() (done bool, err error)

	// BytesOnDisk returns the current size of the blob being written.
	BytesOnDisk() int64

	// Abort cancels the transfer and returns once it has stopped
	// writing. Poll reports it done afterwards.
	Abort()
}

// EventKind names a tracked event.
type EventKind string

const (
	EventDownloadStart EventKind = "download_start"
	EventDownloadEnd   EventKind = "download_end"
	EventVerified      EventKind = "verified"
	EventCRCMismatch   EventKind = "crc_mismatch"
)

// Event is one tracked occurrence in an entry's life.
type Event struct {
	Kind EventKind
	ID   string
	At   time.Time

	// Bytes is the blob size on disk when the event happened.
	Bytes int64

	// Attempt counts downloads of this id in this process, starting at 1.
	Attempt int

	// ErrorType and Error are set on failed download ends.
	ErrorType string
	Error     string
}

// Tracker receives events. Implementations must not block for long;
// Track is called from Update.
type Tracker interface {
	Track(event Event)
}

type nopTracker struct{}

func (nopTracker) Track(Event) {}

// Settings tunes the engine. Zero durations and counts take their
// DefaultSettings values. AutomaticDownload has no such fallback: the
// zero value downloads requested ids only, so start from
// DefaultSettings for the stock behavior.
type Settings struct {
	ErrorCooldown             time.Duration
	SaveInterval              time.Duration
	AvailableRecheckInterval  time.Duration
	MaxCRCMismatches          int
	MaxDownloadErrors         int
	SimultaneousDownloads     int
	AutomaticDownload         bool
	RequestPermissionOverWifi bool
}

// DefaultSettings returns the stock tuning.
func DefaultSettings() Settings {
	return Settings{
		ErrorCooldown:            3 * time.Second,
		SaveInterval:             3 * time.Second,
		AvailableRecheckInterval: 180 * time.Second,
		MaxCRCMismatches:         2,
		MaxDownloadErrors:        2,
		SimultaneousDownloads:    1,
		AutomaticDownload:        true,
	}
}

func (s Settings) withDefaults() Settings {
	defaults := DefaultSettings()
	if s.ErrorCooldown <= 0 {
		s.ErrorCooldown = defaults.ErrorCooldown
	}
	if s.SaveInterval <= 0 {
		s.SaveInterval = defaults.SaveInterval
	}
	if s.AvailableRecheckInterval <= 0 {
		s.AvailableRecheckInterval = defaults.AvailableRecheckInterval
	}
	if s.MaxCRCMismatches < 1 {
		s.MaxCRCMismatches = defaults.MaxCRCMismatches
	}
	if s.MaxDownloadErrors < 1 {
		s.MaxDownloadErrors = defaults.MaxDownloadErrors
	}
	if s.SimultaneousDownloads < 1 {
		s.SimultaneousDownloads = defaults.SimultaneousDownloads
	}
	return s
}
