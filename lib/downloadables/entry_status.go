// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package downloadables

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bureau-foundation/downloadables/lib/clock"
	"github.com/bureau-foundation/downloadables/lib/disk"
)

// State is a step of the per-entry state machine.
type State int

const (
	StateNone State = iota
	StateReadingManifest
	StateReadingDataInfo
	StateInQueueForDownload
	StateDownloading
	StateCalculatingCRC
	StateAvailable
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateReadingManifest:
		return "ReadingManifest"
	case StateReadingDataInfo:
		return "ReadingDataInfo"
	case StateInQueueForDownload:
		return "InQueueForDownload"
	case StateDownloading:
		return "Downloading"
	case StateCalculatingCRC:
		return "CalculatingCRC"
	case StateAvailable:
		return "Available"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RequestState tracks whether a caller is waiting for an entry.
type RequestState int

const (
	RequestNone RequestState = iota
	RequestRunning
	RequestDone
)

func (r RequestState) String() string {
	switch r {
	case RequestRunning:
		return "Running"
	case RequestDone:
		return "Done"
	default:
		return "None"
	}
}

// DataInfo is what was last observed about the blob on disk.
type DataInfo struct {
	Size int64

	// CRC is valid only when HasCRC is set.
	CRC    uint32
	HasCRC bool
}

// StatusConfig carries the collaborators a CatalogEntryStatus needs.
// Disk is required.
type StatusConfig struct {
	Disk     *disk.Disk
	Clock    clock.Clock
	Logger   *slog.Logger
	Tracker  Tracker
	Settings Settings
}

func (c StatusConfig) withDefaults() StatusConfig {
	if c.Disk == nil {
		panic("downloadables: StatusConfig.Disk is required")
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	if c.Tracker == nil {
		c.Tracker = nopTracker{}
	}
	c.Settings = c.Settings.withDefaults()
	return c
}

// CatalogEntryStatus is the live controller for one id. It is not safe
// for concurrent use; only the goroutine calling Update may touch it.
type CatalogEntryStatus struct {
	config StatusConfig
	logger *slog.Logger

	id       string
	entry    CatalogEntry
	manifest CatalogEntryManifest
	state    State
	dataInfo DataInfo

	requestState RequestState
	requestError *Error
	requestSeq   uint64

	latestError   *Error
	latestErrorAt time.Time
	lastSaveAt    time.Time
	lastRecheckAt time.Time

	downloadingErrorTimes int
	crcMismatchErrorTimes int
	downloadAttempts      int

	// discardBlob is set after a CRC mismatch until the blob has been
	// deleted.
	discardBlob bool

	// fromDownload is set when the bytes awaiting verification were
	// written by a transfer in this process.
	fromDownload bool

	groups []*CatalogGroup
}

// NewCatalogEntryStatus returns a status for id in StateNone. The first
// Update moves it to StateReadingManifest.
func NewCatalogEntryStatus(config StatusConfig, id string, entry CatalogEntry) *CatalogEntryStatus {
	config = config.withDefaults()
	s := &CatalogEntryStatus{
		config: config,
		logger: config.Logger.With("id", id),
		id:     id,
		entry:  entry,
	}
	s.manifest.entry = entry
	return s
}

// ID returns the content id.
func (s *CatalogEntryStatus) ID() string { return s.id }

// Entry returns the live catalog entry.
func (s *CatalogEntryStatus) Entry() CatalogEntry { return s.entry }

// State returns the current state.
func (s *CatalogEntryStatus) State() State { return s.state }

// DataInfo returns the last observation of the blob.
func (s *CatalogEntryStatus) DataInfo() DataInfo { return s.dataInfo }

// Manifest returns the verification record.
func (s *CatalogEntryStatus) Manifest() *CatalogEntryManifest { return &s.manifest }

// RequestState returns whether a caller is waiting for this entry.
func (s *CatalogEntryStatus) RequestState() RequestState { return s.requestState }

// RequestError is the error that ended the current request, or nil. It
// does not change between the request ending and the next Request.
func (s *CatalogEntryStatus) RequestError() *Error { return s.requestError }

// LatestError returns the most recent error, or nil.
func (s *CatalogEntryStatus) LatestError() *Error { return s.latestError }

// DownloadingErrorTimes counts failed downloads.
func (s *CatalogEntryStatus) DownloadingErrorTimes() int { return s.downloadingErrorTimes }

// CRCMismatchErrorTimes counts downloads whose bytes failed
// verification.
func (s *CatalogEntryStatus) CRCMismatchErrorTimes() int { return s.crcMismatchErrorTimes }

// Groups returns the groups this id belongs to.
func (s *CatalogEntryStatus) Groups() []*CatalogGroup { return s.groups }

func (s *CatalogEntryStatus) setGroups(groups []*CatalogGroup) { s.groups = groups }

func (s *CatalogEntryStatus) setState(state State) {
	if s.state == state {
		return
	}
	s.logger.Debug("entry state", "from", s.state.String(), "to", state.String())
	s.state = state
	s.latestErrorAt = time.Time{}

	switch state {
	case StateReadingDataInfo:
		s.dataInfo = DataInfo{}
	case StateDownloading:
		s.latestError = nil
	case StateAvailable:
		s.lastRecheckAt = s.config.Clock.Now()
		if s.requestState == RequestRunning {
			s.requestState = RequestDone
			s.requestError = nil
		}
	}
}

// Request marks that a caller is waiting for the entry. An entry that
// is already available completes the request immediately.
func (s *CatalogEntryStatus) Request() {
	if s.requestState == RequestRunning {
		return
	}
	s.requestState = RequestRunning
	s.requestError = nil
	s.requestSeq = nextRequestSeq()
	if s.state == StateAvailable {
		s.requestState = RequestDone
	}
}

// CanBeRequested reports whether Request would start a new request.
func (s *CatalogEntryStatus) CanBeRequested() bool {
	return s.requestState != RequestRunning && s.state != StateAvailable
}

// CanAutomaticDownload reports whether the retry budget still allows
// downloads without the caller stepping in.
func (s *CatalogEntryStatus) CanAutomaticDownload() bool {
	return s.crcMismatchErrorTimes < s.config.Settings.MaxCRCMismatches &&
		s.downloadingErrorTimes < s.config.Settings.MaxDownloadErrors
}

// HasErrorExpired reports whether the error cooldown is over.
func (s *CatalogEntryStatus) HasErrorExpired() bool {
	return s.latestErrorAt.IsZero() ||
		s.config.Clock.Now().Sub(s.latestErrorAt) >= s.config.Settings.ErrorCooldown
}

// ErrorBlockingDownload returns the error that currently keeps the
// entry from downloading: the latest error while it cools down or once
// the retry budget is spent.
func (s *CatalogEntryStatus) ErrorBlockingDownload() *Error {
	if s.state == StateAvailable || s.state == StateDownloading {
		return nil
	}
	if !s.HasErrorExpired() || !s.CanAutomaticDownload() {
		if s.latestError != nil {
			return s.latestError
		}
		if !s.CanAutomaticDownload() {
			return NewError(ErrorTypeInternalDownloadAborted, "retry budget exhausted for %s", s.id)
		}
	}
	return nil
}

// NotifyError records err, starts the cooldown, and ends a running
// request with it.
func (s *CatalogEntryStatus) NotifyError(err *Error) {
	s.recordError(err)
	s.latestErrorAt = s.config.Clock.Now()
}

func (s *CatalogEntryStatus) recordError(err *Error) {
	s.latestError = err
	s.logger.Warn("entry error", "state", s.state.String(), "error", err)
	if s.requestState == RequestRunning {
		s.requestState = RequestDone
		s.requestError = err
	}
}

// ResetErrors clears the latest error, the cooldown, and both retry
// counters so a manual retry can proceed.
func (s *CatalogEntryStatus) ResetErrors() {
	s.latestError = nil
	s.latestErrorAt = time.Time{}
	s.downloadingErrorTimes = 0
	s.crcMismatchErrorTimes = 0
}

// Update advances the state machine by at most one state and writes
// the manifest back when it is due.
func (s *CatalogEntryStatus) Update() {
	defer s.saveManifest(false)

	if s.state == StateDownloading || !s.HasErrorExpired() {
		return
	}

	switch s.state {
	case StateNone:
		s.setState(StateReadingManifest)
	case StateReadingManifest:
		s.updateReadingManifest()
	case StateReadingDataInfo:
		s.updateReadingDataInfo()
	case StateInQueueForDownload:
		if s.requestState == RequestRunning && !s.CanAutomaticDownload() {
			err := s.latestError
			if err == nil {
				err = NewError(ErrorTypeInternalDownloadAborted, "retry budget exhausted for %s", s.id)
			}
			s.requestState = RequestDone
			s.requestError = err
		}
	case StateCalculatingCRC:
		s.updateCalculatingCRC()
	case StateAvailable:
		s.updateAvailable()
	}
}

func (s *CatalogEntryStatus) updateReadingManifest() {
	var document manifestDocument
	err := s.config.Disk.FileReadJSON(disk.Manifests, s.id, &document)
	switch {
	case err == nil && document.CRC == s.entry.CRC && document.Size == s.entry.Size:
		s.manifest.restore(document)
	case err == nil || disk.IsNotExist(err) || disk.IsDecode(err):
		if err == nil {
			s.logger.Info("catalog entry changed, discarding download",
				"manifest_crc32", document.CRC, "manifest_size", document.Size,
				"crc32", s.entry.CRC, "size", s.entry.Size)
		}
		if err := s.config.Disk.FileDelete(disk.Downloads, s.id); err != nil {
			s.NotifyError(AsError(err))
			return
		}
		s.manifest.Invalidate(s.entry)
	default:
		s.NotifyError(AsError(err))
		return
	}
	s.setState(StateReadingDataInfo)
}

func (s *CatalogEntryStatus) updateReadingDataInfo() {
	if s.discardBlob {
		if err := s.config.Disk.FileDelete(disk.Downloads, s.id); err != nil {
			s.NotifyError(AsError(err))
			return
		}
		s.discardBlob = false
	}

	info, err := s.config.Disk.FileGetInfo(disk.Downloads, s.id)
	if err != nil {
		s.NotifyError(AsError(err))
		return
	}
	s.dataInfo = DataInfo{Size: info.Size}

	switch {
	case info.Exists && info.Size == s.entry.Size:
		if s.manifest.IsVerified() {
			s.dataInfo.CRC, s.dataInfo.HasCRC = s.entry.CRC, true
			s.setState(StateAvailable)
		} else {
			s.setState(StateCalculatingCRC)
		}
	case info.Size > s.entry.Size:
		s.logger.Info("blob larger than catalog entry, deleting", "observed_size", info.Size, "size", s.entry.Size)
		if err := s.config.Disk.FileDelete(disk.Downloads, s.id); err != nil {
			s.NotifyError(AsError(err))
			return
		}
		s.dataInfo = DataInfo{}
		s.manifest.SetVerified(false)
		s.setState(StateInQueueForDownload)
	default:
		s.manifest.SetVerified(false)
		s.setState(StateInQueueForDownload)
	}
}

func (s *CatalogEntryStatus) updateCalculatingCRC() {
	info, err := s.config.Disk.FileGetInfo(disk.Downloads, s.id)
	if err != nil {
		s.NotifyError(AsError(err))
		return
	}
	if !info.Exists {
		s.logger.Info("blob vanished before verification")
		s.setState(StateReadingDataInfo)
		return
	}

	crc, size, err := s.config.Disk.FileCRC32(disk.Downloads, s.id)
	if err != nil {
		s.NotifyError(AsError(err))
		return
	}
	if size != s.entry.Size {
		s.setState(StateReadingDataInfo)
		return
	}

	if crc == s.entry.CRC {
		s.manifest.SetVerified(true)
		if s.fromDownload {
			s.manifest.IncrementDownloadedTimes()
			s.fromDownload = false
		}
		s.track(EventVerified, size, nil)
		s.setState(StateAvailable)
		s.dataInfo = DataInfo{Size: size, CRC: crc, HasCRC: true}
		return
	}

	s.crcMismatchErrorTimes++
	s.fromDownload = false
	s.discardBlob = true
	mismatch := NewError(ErrorTypeInternalCRCMismatch, "crc32 %#08x, want %#08x", crc, s.entry.CRC)
	s.track(EventCRCMismatch, size, mismatch)
	s.recordError(mismatch)
	s.manifest.SetVerified(false)
	s.setState(StateReadingDataInfo)
}

func (s *CatalogEntryStatus) updateAvailable() {
	if s.requestState == RequestRunning {
		s.requestState = RequestDone
		s.requestError = nil
	}
	now := s.config.Clock.Now()
	if now.Sub(s.lastRecheckAt) < s.config.Settings.AvailableRecheckInterval {
		return
	}
	s.lastRecheckAt = now

	info, err := s.config.Disk.FileGetInfo(disk.Downloads, s.id)
	if err != nil {
		s.NotifyError(AsError(err))
		return
	}
	if !info.Exists || info.Size != s.entry.Size {
		s.logger.Info("available blob changed on disk, re-reading", "exists", info.Exists, "observed_size", info.Size)
		s.setState(StateReadingDataInfo)
	}
}

// OnDownloadStart moves a queued entry to StateDownloading. It reports
// false when the entry is not queued.
func (s *CatalogEntryStatus) OnDownloadStart() bool {
	if s.state != StateInQueueForDownload {
		return false
	}
	s.downloadAttempts++
	s.setState(StateDownloading)
	s.track(EventDownloadStart, s.dataInfo.Size, nil)
	return true
}

// OnDownloadFinish ends a download. With a nil error and the full size
// on disk the entry moves to StateCalculatingCRC; otherwise it returns
// to the queue and the failure counts against the retry budget.
func (s *CatalogEntryStatus) OnDownloadFinish(err error) {
	if s.state != StateDownloading {
		return
	}

	info, statErr := s.config.Disk.FileGetInfo(disk.Downloads, s.id)
	if err == nil && statErr != nil {
		err = statErr
	}
	if err == nil && info.Size != s.entry.Size {
		err = NewError(ErrorTypeNetworkServerSizeMismatch, "received %d bytes, want %d", info.Size, s.entry.Size)
	}
	s.dataInfo = DataInfo{Size: info.Size}

	if err == nil {
		s.fromDownload = true
		s.track(EventDownloadEnd, info.Size, nil)
		s.setState(StateCalculatingCRC)
		return
	}

	engineError := AsError(err)
	s.track(EventDownloadEnd, info.Size, engineError)
	if info.Size > s.entry.Size {
		if deleteErr := s.config.Disk.FileDelete(disk.Downloads, s.id); deleteErr == nil {
			s.dataInfo = DataInfo{}
		} else {
			s.discardBlob = true
		}
	}
	s.downloadingErrorTimes++
	s.setState(StateInQueueForDownload)
	s.NotifyError(engineError)
}

// setBytesOnDisk is fed by the engine from transfer progress.
func (s *CatalogEntryStatus) setBytesOnDisk(size int64) {
	if s.state == StateDownloading {
		s.dataInfo.Size = size
	}
}

// IsAvailable reports whether the entry is Available. With checkDisk
// the blob is also stat'ed.
func (s *CatalogEntryStatus) IsAvailable(checkDisk bool) bool {
	if s.state != StateAvailable {
		return false
	}
	if !checkDisk {
		return true
	}
	info, err := s.config.Disk.FileGetInfo(disk.Downloads, s.id)
	return err == nil && info.Exists && info.Size == s.entry.Size
}

// IsDownloading reports whether a transfer is in flight.
func (s *CatalogEntryStatus) IsDownloading() bool { return s.state == StateDownloading }

// HasBeenDownloadedBefore reports whether any download of this id was
// verified, in this process or an earlier one.
func (s *CatalogEntryStatus) HasBeenDownloadedBefore() bool {
	return s.manifest.DownloadedTimes() > 0
}

// DeleteDownload removes the blob and sends the entry back through
// ReadingDataInfo. It refuses while downloading.
func (s *CatalogEntryStatus) DeleteDownload() error {
	if s.state == StateDownloading {
		return NewError(ErrorTypeInternal, "%s is downloading", s.id)
	}
	if err := s.config.Disk.FileDelete(disk.Downloads, s.id); err != nil {
		return AsError(err)
	}
	s.discardBlob = false
	s.manifest.SetVerified(false)
	if s.state > StateReadingDataInfo {
		s.setState(StateReadingDataInfo)
	}
	s.dataInfo = DataInfo{}
	return nil
}

// ForceVerify drops the verified flag so the blob is checksummed again.
func (s *CatalogEntryStatus) ForceVerify() {
	if s.state == StateDownloading {
		return
	}
	s.manifest.SetVerified(false)
	if s.state > StateReadingDataInfo {
		s.setState(StateReadingDataInfo)
	}
}

// TotalBytes is the declared size.
func (s *CatalogEntryStatus) TotalBytes() int64 { return s.entry.Size }

// BytesDownloadedSoFar is the number of bytes on disk that count
// towards the entry.
func (s *CatalogEntryStatus) BytesDownloadedSoFar() int64 {
	if s.state == StateAvailable {
		return s.entry.Size
	}
	return min(s.dataInfo.Size, s.entry.Size)
}

// BytesLeftToDownload is TotalBytes minus BytesDownloadedSoFar.
func (s *CatalogEntryStatus) BytesLeftToDownload() int64 {
	return s.entry.Size - s.BytesDownloadedSoFar()
}

// Progress is in [0, 1].
func (s *CatalogEntryStatus) Progress() float64 {
	if s.state == StateAvailable {
		return 1
	}
	if s.entry.Size == 0 {
		return 0
	}
	return float64(s.BytesDownloadedSoFar()) / float64(s.entry.Size)
}

// PermissionRequested reports whether any owning group has requested
// permission.
func (s *CatalogEntryStatus) PermissionRequested() bool {
	for _, group := range s.groups {
		if group.PermissionRequested() {
			return true
		}
	}
	return false
}

// PermissionOverCarrierGranted reports whether any owning group allows
// carrier data.
func (s *CatalogEntryStatus) PermissionOverCarrierGranted() bool {
	for _, group := range s.groups {
		if group.PermissionOverCarrierGranted() {
			return true
		}
	}
	return false
}

// saveManifest writes the manifest when dirty and the save interval
// has elapsed since the previous attempt, or unconditionally with force.
func (s *CatalogEntryStatus) saveManifest(force bool) {
	if !s.manifest.NeedsToSave() || s.state < StateReadingDataInfo {
		return
	}
	now := s.config.Clock.Now()
	if !force && !s.lastSaveAt.IsZero() && now.Sub(s.lastSaveAt) < s.config.Settings.SaveInterval {
		return
	}
	s.lastSaveAt = now
	if err := s.config.Disk.FileWriteJSON(disk.Manifests, s.id, s.manifest.document()); err != nil {
		s.logger.Warn("saving manifest failed", "error", err)
		return
	}
	s.manifest.markSaved()
}

func (s *CatalogEntryStatus) track(kind EventKind, bytes int64, err *Error) {
	event := Event{
		Kind:    kind,
		ID:      s.id,
		At:      s.config.Clock.Now(),
		Bytes:   bytes,
		Attempt: s.downloadAttempts,
	}
	if err != nil {
		event.ErrorType = err.Type.String()
		event.Error = err.Error()
	}
	s.config.Tracker.Track(event)
}
