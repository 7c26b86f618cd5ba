// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package downloadables

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/bureau-foundation/downloadables/lib/clock"
	"github.com/bureau-foundation/downloadables/lib/disk"
)

var requestSeqCounter atomic.Uint64

func nextRequestSeq() uint64 { return requestSeqCounter.Add(1) }

// Config holds the collaborators for New. Disk is required. A nil
// Network means nothing is ever downloaded; the engine still verifies
// what is already on disk.
type Config struct {
	Disk     *disk.Disk
	Network  Network
	Tracker  Tracker
	Clock    clock.Clock
	Logger   *slog.Logger
	Settings Settings
}

// Engine owns every CatalogEntryStatus and schedules their downloads.
// Call Init once, Update every tick, and Shutdown when done. Engine is
// not safe for concurrent use.
type Engine struct {
	statusConfig StatusConfig
	network      Network
	logger       *slog.Logger
	settings     Settings

	catalog   *Catalog
	statuses  map[string]*CatalogEntryStatus
	ids       []string
	groups    map[string]*CatalogGroup
	transfers map[string]Transfer

	automaticDownload bool

	ctx         context.Context
	cancel      context.CancelFunc
	initialized bool
}

// New returns an engine that has not been initialized.
func New(cfg Config) *Engine {
	statusConfig := StatusConfig{
		Disk:     cfg.Disk,
		Clock:    cfg.Clock,
		Logger:   cfg.Logger,
		Tracker:  cfg.Tracker,
		Settings: cfg.Settings,
	}.withDefaults()
	return &Engine{
		statusConfig:      statusConfig,
		network:           cfg.Network,
		logger:            statusConfig.Logger,
		settings:          statusConfig.Settings,
		statuses:          make(map[string]*CatalogEntryStatus),
		groups:            make(map[string]*CatalogGroup),
		transfers:         make(map[string]Transfer),
		automaticDownload: statusConfig.Settings.AutomaticDownload,
	}
}

// Init loads the catalog and groups, deletes manifests and downloads of
// ids no longer in the catalog, and restores persisted group
// permissions.
func (e *Engine) Init(catalog *Catalog, groups []*CatalogGroup) error {
	if e.initialized {
		return fmt.Errorf("downloadables: engine already initialized")
	}
	if catalog == nil {
		return fmt.Errorf("downloadables: catalog is required")
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.initialized = true
	e.applyCatalog(catalog)
	e.SetGroups(groups)

	e.logger.Info("downloadables engine initialized",
		"entries", catalog.Len(),
		"groups", len(e.groups),
		"total_bytes", catalog.TotalSize(),
	)
	return nil
}

// Shutdown aborts transfers, writes every dirty manifest and group
// file, and discards all statuses. The engine may be initialized again.
func (e *Engine) Shutdown() {
	if !e.initialized {
		return
	}
	for _, id := range sortedKeys(e.transfers) {
		e.transfers[id].Abort()
	}
	e.transfers = make(map[string]Transfer)
	e.cancel()

	for _, id := range e.ids {
		e.statuses[id].saveManifest(true)
	}
	e.saveGroups()

	e.statuses = make(map[string]*CatalogEntryStatus)
	e.ids = nil
	e.groups = make(map[string]*CatalogGroup)
	e.catalog = nil
	e.initialized = false
	e.logger.Info("downloadables engine shut down")
}

// Reload swaps in a freshly fetched catalog. Ids whose entry changed
// restart from StateNone; ids that disappeared are dropped and their
// files deleted.
func (e *Engine) Reload(catalog *Catalog) {
	if !e.initialized || catalog == nil {
		return
	}
	e.applyCatalog(catalog)
	e.attachGroups()
	e.logger.Info("catalog reloaded", "entries", catalog.Len())
}

func (e *Engine) applyCatalog(catalog *Catalog) {
	statuses := make(map[string]*CatalogEntryStatus, catalog.Len())
	for _, id := range catalog.IDs() {
		entry, _ := catalog.Get(id)
		if existing, ok := e.statuses[id]; ok && existing.Entry() == entry {
			statuses[id] = existing
			continue
		}
		if transfer, ok := e.transfers[id]; ok {
			transfer.Abort()
			delete(e.transfers, id)
		}
		statuses[id] = NewCatalogEntryStatus(e.statusConfig, id, entry)
	}
	for id, transfer := range e.transfers {
		if _, ok := statuses[id]; !ok {
			transfer.Abort()
			delete(e.transfers, id)
		}
	}

	e.catalog = catalog
	e.statuses = statuses
	e.ids = catalog.IDs()
	e.reconcile()
}

// reconcile deletes files that belong to no catalog id.
func (e *Engine) reconcile() {
	d := e.statusConfig.Disk
	for _, dir := range []disk.Directory{disk.Manifests, disk.Downloads} {
		names, err := d.DirectoryGetFiles(dir)
		if err != nil {
			e.logger.Warn("listing directory failed", "directory", dir.String(), "error", err)
			continue
		}
		for _, name := range names {
			if e.catalog.Has(name) {
				continue
			}
			if err := d.FileDelete(dir, name); err != nil {
				e.logger.Warn("deleting stale file failed", "directory", dir.String(), "name", name, "error", err)
				continue
			}
			e.logger.Info("deleted stale file", "directory", dir.String(), "name", name)
		}
	}
}

// SetGroups replaces the group set. Persisted permissions are merged
// into each group's shared record.
func (e *Engine) SetGroups(groups []*CatalogGroup) {
	e.groups = make(map[string]*CatalogGroup, len(groups))
	for _, group := range groups {
		e.groups[group.ID()] = group
		var document permissionDocument
		err := e.statusConfig.Disk.FileReadJSON(disk.Groups, group.ID(), &document)
		switch {
		case err == nil:
			group.restorePermission(document)
		case disk.IsNotExist(err):
		default:
			e.logger.Warn("reading group permission failed", "group", group.ID(), "error", err)
		}
	}
	e.attachGroups()
}

func (e *Engine) attachGroups() {
	membership := make(map[string][]*CatalogGroup)
	for _, group := range e.Groups() {
		for _, id := range group.entryIDs {
			membership[id] = append(membership[id], group)
		}
	}
	for id, status := range e.statuses {
		status.setGroups(membership[id])
	}
}

// Update polls transfers, advances every status by one step, starts
// downloads for free slots, and writes dirty group permissions.
func (e *Engine) Update() {
	if !e.initialized {
		return
	}
	e.pollTransfers()
	for _, id := range e.ids {
		e.statuses[id].Update()
	}
	e.scheduleDownloads()
	e.saveGroups()
}

func (e *Engine) pollTransfers() {
	for _, id := range sortedKeys(e.transfers) {
		transfer := e.transfers[id]
		status := e.statuses[id]
		done, err := transfer.Poll()
		if !done {
			status.setBytesOnDisk(transfer.BytesOnDisk())
			continue
		}
		delete(e.transfers, id)
		status.OnDownloadFinish(err)
		if err != nil {
			e.logger.Warn("download failed", "id", id, "error", err,
				"download_errors", status.DownloadingErrorTimes())
		} else {
			e.logger.Info("download finished", "id", id, "bytes", transfer.BytesOnDisk())
		}
	}
}

func (e *Engine) scheduleDownloads() {
	if e.network == nil {
		return
	}
	slots := e.settings.SimultaneousDownloads - len(e.transfers)
	if slots <= 0 {
		return
	}
	reachability := e.network.Reachability()
	if reachability == ReachabilityNone {
		return
	}

	for _, status := range e.downloadCandidates() {
		if slots == 0 {
			return
		}
		if e.downloadBlockedBy(status, reachability) != nil {
			continue
		}
		if !e.hasRoomFor(status) {
			continue
		}
		e.startDownload(status)
		slots--
	}
}

// downloadCandidates lists queued ids eligible for a transfer: running
// requests oldest first, then automatic downloads by group priority.
func (e *Engine) downloadCandidates() []*CatalogEntryStatus {
	eligible := func(status *CatalogEntryStatus) bool {
		return status.State() == StateInQueueForDownload &&
			status.HasErrorExpired() &&
			status.CanAutomaticDownload()
	}

	var requested []*CatalogEntryStatus
	for _, id := range e.ids {
		status := e.statuses[id]
		if status.RequestState() == RequestRunning && eligible(status) {
			requested = append(requested, status)
		}
	}
	sort.SliceStable(requested, func(i, j int) bool {
		return requested[i].requestSeq < requested[j].requestSeq
	})
	if !e.automaticDownload {
		return requested
	}

	seen := make(map[string]bool, len(requested))
	for _, status := range requested {
		seen[status.ID()] = true
	}
	candidates := requested
	for _, group := range e.Groups() {
		if group.Priority() >= DefaultPriority {
			break
		}
		for _, id := range group.entryIDs {
			status, ok := e.statuses[id]
			if !ok || seen[id] || !eligible(status) {
				continue
			}
			seen[id] = true
			candidates = append(candidates, status)
		}
	}
	return candidates
}

// DownloadBlockedBy returns the network or permission error that keeps
// id from downloading now, or nil.
func (e *Engine) DownloadBlockedBy(id string) *Error {
	status, ok := e.statuses[id]
	if !ok {
		return NewError(ErrorTypeInternal, "unknown id %q", id)
	}
	return e.downloadBlockedBy(status, e.Reachability())
}

func (e *Engine) downloadBlockedBy(status *CatalogEntryStatus, reachability Reachability) *Error {
	switch reachability {
	case ReachabilityNone:
		return NewError(ErrorTypeNetworkNoReachability, "no network")
	case ReachabilityCarrier:
		if !status.PermissionOverCarrierGranted() {
			return NewError(ErrorTypeNetworkUnauthorizedReachability, "carrier data not granted for %s", status.ID())
		}
	case ReachabilityWifi:
		if e.settings.RequestPermissionOverWifi && !status.PermissionRequested() {
			return NewError(ErrorTypeNetworkUnauthorizedReachability, "permission not requested for %s", status.ID())
		}
	}
	return nil
}

func (e *Engine) hasRoomFor(status *CatalogEntryStatus) bool {
	free, err := e.statusConfig.Disk.FreeSpace(disk.Downloads)
	if err != nil {
		e.logger.Warn("checking free space failed", "error", err)
		return true
	}
	needed := status.BytesLeftToDownload()
	if free >= needed {
		return true
	}
	status.NotifyError(NewError(ErrorTypeDiskIOException, "%s needs %d bytes, %d free", status.ID(), needed, free))
	return false
}

func (e *Engine) startDownload(status *CatalogEntryStatus) {
	if !status.OnDownloadStart() {
		return
	}
	e.transfers[status.ID()] = e.network.StartDownload(e.ctx, DownloadRequest{
		ID:    status.ID(),
		Entry: status.Entry(),
	})
	e.logger.Info("download started",
		"id", status.ID(),
		"offset", status.DataInfo().Size,
		"size", status.Entry().Size,
		"requested", status.RequestState() == RequestRunning,
	)
}

func (e *Engine) saveGroups() {
	written := make(map[*Permission]bool)
	for _, group := range e.Groups() {
		permission := group.permission
		if !permission.dirty || written[permission] {
			continue
		}
		written[permission] = true
		failed := false
		for _, member := range permission.members {
			if err := e.statusConfig.Disk.FileWriteJSON(disk.Groups, member.ID(), permission.document()); err != nil {
				e.logger.Warn("saving group permission failed", "group", member.ID(), "error", err)
				failed = true
			}
		}
		if !failed {
			permission.dirty = false
		}
	}
}

// Catalog returns the current catalog.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// IDs returns every catalog id in sorted order.
func (e *Engine) IDs() []string { return append([]string(nil), e.ids...) }

// Status returns the status of id.
func (e *Engine) Status(id string) (*CatalogEntryStatus, bool) {
	status, ok := e.statuses[id]
	return status, ok
}

// IsIDValid reports whether id is in the catalog.
func (e *Engine) IsIDValid(id string) bool {
	_, ok := e.statuses[id]
	return ok
}

// IsIDAvailable reports whether id is verified and usable.
func (e *Engine) IsIDAvailable(id string) bool {
	status, ok := e.statuses[id]
	return ok && status.IsAvailable(false)
}

// RequestID marks id as awaited so it is downloaded ahead of automatic
// work. It reports false for unknown ids.
func (e *Engine) RequestID(id string) bool {
	status, ok := e.statuses[id]
	if !ok {
		return false
	}
	status.Request()
	return true
}

// Group returns the group with the given id.
func (e *Engine) Group(id string) (*CatalogGroup, bool) {
	group, ok := e.groups[id]
	return group, ok
}

// Groups returns every group ordered by priority.
func (e *Engine) Groups() []*CatalogGroup {
	groups := make([]*CatalogGroup, 0, len(e.groups))
	for _, group := range e.groups {
		groups = append(groups, group)
	}
	SortGroupsByPriority(groups)
	return groups
}

// Reachability returns the network's current reachability.
func (e *Engine) Reachability() Reachability {
	if e.network == nil {
		return ReachabilityNone
	}
	return e.network.Reachability()
}

// AutomaticDownload reports whether unrequested ids are downloaded.
func (e *Engine) AutomaticDownload() bool { return e.automaticDownload }

// SetAutomaticDownload toggles downloading of unrequested ids.
func (e *Engine) SetAutomaticDownload(enabled bool) { e.automaticDownload = enabled }

// ActiveDownloads returns the ids with a transfer in flight.
func (e *Engine) ActiveDownloads() []string { return sortedKeys(e.transfers) }

// ForceVerifyAll drops every verified flag so each blob is checksummed
// again.
func (e *Engine) ForceVerifyAll() {
	for _, id := range e.ids {
		e.statuses[id].ForceVerify()
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
