// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

// requestLoad queues id in the loader unless it is loaded, queued or
// loading.
func (m *Manager) requestLoad(id string) {
	handle := m.handles[id]
	if handle == nil || !handle.needsToRequestLoad() {
		return
	}
	handle.onPending()
	m.loaderRequests = append(m.loaderRequests, id)
}

func (m *Manager) removeLoaderRequest(id string) {
	for i, queued := range m.loaderRequests {
		if queued == id {
			m.loaderRequests = append(m.loaderRequests[:i], m.loaderRequests[i+1:]...)
			return
		}
	}
}

// updateLoader polls running loads, then starts queued ones, in request
// order, while there are free slots.
func (m *Manager) updateLoader() {
	running := m.loaderSlots[:0]
	for _, slot := range m.loaderSlots {
		slot.op.Update()
		if slot.op.IsPerforming() {
			running = append(running, slot)
		}
	}
	clear(m.loaderSlots[len(running):])
	m.loaderSlots = running

	for len(m.loaderSlots) < m.simultaneousLoads && len(m.loaderRequests) > 0 {
		id := m.loaderRequests[0]
		m.loaderRequests = m.loaderRequests[1:]
		handle := m.handles[id]
		if handle == nil || handle.State() != LoadStatePending {
			continue
		}
		op := newOp(&loadAssetBundleOp{manager: m, handle: handle}, nil, m.logger)
		op.Perform()
		if op.IsPerforming() {
			m.loaderSlots = append(m.loaderSlots, loaderSlot{handle: handle, op: op})
		}
	}
}

// loaderProgress is 1 for a loaded bundle and the native progress for
// one being loaded.
func (m *Manager) loaderProgress(id string) float64 {
	handle := m.handles[id]
	if handle == nil {
		return 0
	}
	if handle.IsLoaded() {
		return 1
	}
	for _, slot := range m.loaderSlots {
		if slot.handle == handle {
			return slot.op.Progress()
		}
	}
	return 0
}
