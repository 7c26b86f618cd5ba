// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package downloadables

import "fmt"

// Handle aggregates the ids of one or more groups for progress and
// error reporting, typically backing a single download screen.
type Handle struct {
	engine *Engine
	groups []*CatalogGroup
	ids    []string
}

// CreateHandle returns a handle over the union of the named groups.
// Ids that are not in the catalog are ignored.
func (e *Engine) CreateHandle(groupIDs ...string) (*Handle, error) {
	groups := make([]*CatalogGroup, 0, len(groupIDs))
	for _, groupID := range groupIDs {
		group, ok := e.groups[groupID]
		if !ok {
			return nil, fmt.Errorf("downloadables: unknown group %q", groupID)
		}
		groups = append(groups, group)
	}
	var ids []string
	for _, id := range ResolveEntryIDs(groups...) {
		if e.IsIDValid(id) {
			ids = append(ids, id)
		}
	}
	return &Handle{engine: e, groups: groups, ids: ids}, nil
}

// IDs returns the ids the handle covers.
func (h *Handle) IDs() []string { return append([]string(nil), h.ids...) }

func (h *Handle) each(fn func(*CatalogEntryStatus)) {
	for _, id := range h.ids {
		if status, ok := h.engine.Status(id); ok {
			fn(status)
		}
	}
}

// IsAvailable reports whether every id is available.
func (h *Handle) IsAvailable() bool {
	available := true
	h.each(func(status *CatalogEntryStatus) {
		if !status.IsAvailable(false) {
			available = false
		}
	})
	return available
}

// IsDownloading reports whether any id has a transfer in flight.
func (h *Handle) IsDownloading() bool {
	downloading := false
	h.each(func(status *CatalogEntryStatus) {
		if status.IsDownloading() {
			downloading = true
		}
	})
	return downloading
}

// TotalBytes sums the declared sizes.
func (h *Handle) TotalBytes() int64 {
	var total int64
	h.each(func(status *CatalogEntryStatus) { total += status.TotalBytes() })
	return total
}

// DownloadedBytes sums the bytes on disk that count towards each id.
func (h *Handle) DownloadedBytes() int64 {
	var downloaded int64
	h.each(func(status *CatalogEntryStatus) { downloaded += status.BytesDownloadedSoFar() })
	return downloaded
}

// Progress is DownloadedBytes over TotalBytes, or 1 when there is
// nothing to download.
func (h *Handle) Progress() float64 {
	total := h.TotalBytes()
	if total == 0 {
		if h.IsAvailable() {
			return 1
		}
		return 0
	}
	return float64(h.DownloadedBytes()) / float64(total)
}

// PermissionRequested reports whether every group has requested
// permission.
func (h *Handle) PermissionRequested() bool {
	for _, group := range h.groups {
		if !group.PermissionRequested() {
			return false
		}
	}
	return true
}

// PermissionOverCarrierGranted reports whether every group allows
// carrier data.
func (h *Handle) PermissionOverCarrierGranted() bool {
	for _, group := range h.groups {
		if !group.PermissionOverCarrierGranted() {
			return false
		}
	}
	return true
}

// SetPermissionRequested updates every group and its linked groups.
func (h *Handle) SetPermissionRequested(requested bool) {
	for _, group := range h.groups {
		group.SetPermissionRequested(requested)
	}
}

// SetPermissionOverCarrierGranted updates every group and its linked
// groups.
func (h *Handle) SetPermissionOverCarrierGranted(granted bool) {
	for _, group := range h.groups {
		group.SetPermissionOverCarrierGranted(granted)
	}
}

// Request requests every id that is not yet available.
func (h *Handle) Request() {
	h.each(func(status *CatalogEntryStatus) {
		if status.CanBeRequested() {
			status.Request()
		}
	})
}

// Error returns the most severe problem keeping the handle from
// becoming available, or nil. Nothing is reported while a transfer is
// making progress. Network problems outrank a disabled engine, which
// outranks per-id errors.
func (h *Handle) Error() *Error {
	if h.IsAvailable() || h.IsDownloading() {
		return nil
	}
	switch h.engine.Reachability() {
	case ReachabilityNone:
		return NewError(ErrorTypeNetworkNoReachability, "no network")
	case ReachabilityCarrier:
		if !h.PermissionOverCarrierGranted() {
			return NewError(ErrorTypeNetworkUnauthorizedReachability, "carrier data not granted")
		}
	}
	if !h.engine.AutomaticDownload() {
		return NewError(ErrorTypeInternalDownloadDisabled, "automatic download disabled")
	}
	var found *Error
	h.each(func(status *CatalogEntryStatus) {
		if found == nil {
			found = status.ErrorBlockingDownload()
		}
	})
	return found
}

// Retry clears errors and retry budgets on every id so downloads resume
// immediately.
func (h *Handle) Retry() {
	h.each(func(status *CatalogEntryStatus) { status.ResetErrors() })
}
