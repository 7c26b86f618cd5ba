// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/bureau-foundation/downloadables/lib/downloadables"
)

// DefaultSimultaneousLoads is the number of native bundle loads run at
// once when Config leaves it unset.
const DefaultSimultaneousLoads = 1

const bytesPerMB = 1024 * 1024

// Config holds the collaborators for New. Engine and Loader are
// required.
type Config struct {
	Engine *downloadables.Engine
	Loader BundleLoader

	// SimultaneousLoads defaults to DefaultSimultaneousLoads.
	SimultaneousLoads int

	Logger *slog.Logger
}

// Manager owns the bundle handles, the bundle loader queue and every
// live operation, and drives the downloadables engine. It is not safe
// for concurrent use.
type Manager struct {
	engine            *downloadables.Engine
	loader            BundleLoader
	simultaneousLoads int
	logger            *slog.Logger

	handles map[string]*BundleHandle
	groups  map[string][]string
	ops     []*Op

	loaderRequests []string
	loaderSlots    []loaderSlot

	initialized bool
}

type loaderSlot struct {
	handle *BundleHandle
	op     *Op
}

// New returns a manager that has not been initialized.
func New(cfg Config) *Manager {
	if cfg.Engine == nil || cfg.Loader == nil {
		panic("assetbundles: Engine and Loader are required")
	}
	m := &Manager{
		engine:            cfg.Engine,
		loader:            cfg.Loader,
		simultaneousLoads: cfg.SimultaneousLoads,
		logger:            cfg.Logger,
		handles:           make(map[string]*BundleHandle),
		groups:            make(map[string][]string),
	}
	if m.simultaneousLoads < 1 {
		m.simultaneousLoads = DefaultSimultaneousLoads
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

// Init creates a handle per catalog bundle and initializes the engine
// with downloadablesCatalog and one downloadables group per bundle
// group, holding the group's remote bundles and their dependencies.
//
// Local bundles are removed from downloadablesCatalog so they are never
// downloaded. Remote bundles missing from it and groups naming unknown
// bundles are logged; such groups are skipped.
func (m *Manager) Init(catalog *BundleCatalog, downloadablesCatalog *downloadables.Catalog) error {
	if m.initialized {
		return fmt.Errorf("assetbundles: manager already initialized")
	}
	if catalog == nil {
		catalog, _ = ParseBundleCatalog(nil, nil)
	}
	var entries map[string]downloadables.CatalogEntry
	if downloadablesCatalog != nil {
		entries = downloadablesCatalog.Entries()
	} else {
		entries = make(map[string]downloadables.CatalogEntry)
	}

	var removed []string
	for _, id := range catalog.LocalIDs() {
		if _, ok := entries[id]; ok {
			delete(entries, id)
			removed = append(removed, id)
		}
	}
	if len(removed) > 0 {
		m.logger.Error("local bundles listed in the downloadables catalog", "bundles", removed)
	}

	m.handles = make(map[string]*BundleHandle)
	for _, id := range catalog.IDs() {
		remote := !catalog.IsLocal(id)
		if _, ok := entries[id]; remote && !ok {
			m.logger.Error("remote bundle missing from the downloadables catalog", "bundle", id)
		}
		m.handles[id] = newBundleHandle(id, catalog.DependenciesIncludingSelf(id), remote)
	}

	m.groups = make(map[string][]string)
	var downloadGroups []*downloadables.CatalogGroup
	for _, group := range catalog.Groups() {
		var unknown []string
		for _, id := range group.BundleIDs {
			if m.handles[id] == nil {
				unknown = append(unknown, id)
			}
		}
		if len(unknown) > 0 {
			m.logger.Error("bundle group names unknown bundles", "group", group.ID, "bundles", unknown)
			continue
		}
		ids := m.DependenciesIncludingSelfList(group.BundleIDs)
		m.groups[group.ID] = ids

		var remote []string
		for _, id := range ids {
			if m.handles[id].IsRemote() {
				remote = append(remote, id)
			}
		}
		if len(remote) > 0 {
			downloadGroups = append(downloadGroups,
				downloadables.NewCatalogGroup(group.ID, remote, group.Priority))
		}
	}

	if err := m.engine.Init(downloadables.NewCatalog(entries), downloadGroups); err != nil {
		return fmt.Errorf("assetbundles: %w", err)
	}
	m.initialized = true
	m.logger.Info("asset bundles manager initialized",
		"bundles", len(m.handles),
		"local", len(catalog.LocalIDs()),
		"groups", len(m.groups),
	)
	return nil
}

// Shutdown cancels every operation, unloads every bundle and shuts the
// engine down. The manager may be initialized again.
func (m *Manager) Shutdown() {
	if !m.initialized {
		return
	}
	for _, op := range append([]*Op(nil), m.ops...) {
		op.Cancel()
	}
	m.ops = nil
	for _, slot := range m.loaderSlots {
		slot.op.Reset()
	}
	m.loaderSlots = nil
	m.loaderRequests = nil
	m.UnloadAllAssetBundles()
	m.engine.Shutdown()
	m.handles = make(map[string]*BundleHandle)
	m.groups = make(map[string][]string)
	m.initialized = false
	m.logger.Info("asset bundles manager shut down")
}

// Update advances the loader, then the engine, then every operation.
func (m *Manager) Update() {
	if !m.initialized {
		return
	}
	m.updateLoader()
	m.engine.Update()
	m.updateOps()
}

// Engine returns the downloadables engine.
func (m *Manager) Engine() *downloadables.Engine { return m.engine }

// ActiveOps returns the number of operations still performing.
func (m *Manager) ActiveOps() int { return len(m.ops) }

func (m *Manager) performOp(op *Op) {
	op.Perform()
	if op.IsPerforming() {
		m.ops = append(m.ops, op)
	}
}

// updateOps polls the ops that were live at the start of the call.
// Ops started meanwhile are first polled on the next Update.
func (m *Manager) updateOps() {
	live := len(m.ops)
	for i := 0; i < live; i++ {
		m.ops[i].Update()
	}
	kept := m.ops[:0]
	for _, op := range m.ops {
		if op.IsPerforming() {
			kept = append(kept, op)
		}
	}
	clear(m.ops[len(kept):])
	m.ops = kept
}

func (m *Manager) logAssertLoadedWithoutBundle(id string) {
	m.logger.Error("assert: bundle is marked as loaded but has no native bundle", "bundle", id)
}

// Handle returns the handle of a bundle.
func (m *Manager) Handle(id string) (*BundleHandle, bool) {
	handle, ok := m.handles[id]
	return handle, ok
}

// IDs returns every bundle id, sorted.
func (m *Manager) IDs() []string {
	ids := make([]string, 0, len(m.handles))
	for id := range m.handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DependenciesIncludingSelf returns id followed by its transitive
// dependencies, or nil for an unknown id.
func (m *Manager) DependenciesIncludingSelf(id string) []string {
	handle := m.handles[id]
	if handle == nil {
		return nil
	}
	return handle.DependenciesIncludingSelf()
}

// DependenciesIncludingSelfList is the deduplicated union of
// DependenciesIncludingSelf over ids.
func (m *Manager) DependenciesIncludingSelfList(ids []string) []string {
	var all []string
	for _, id := range ids {
		all = append(all, m.DependenciesIncludingSelf(id)...)
	}
	return dedupe(all)
}

// GroupIDs returns the ids of the groups, sorted.
func (m *Manager) GroupIDs() []string {
	ids := make([]string, 0, len(m.groups))
	for id := range m.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GroupBundleIDs returns the bundles of a group with their
// dependencies.
func (m *Manager) GroupBundleIDs(groupID string) ([]string, bool) {
	ids, ok := m.groups[groupID]
	return append([]string(nil), ids...), ok
}

// IsAssetBundleValid reports whether id is a catalog bundle.
func (m *Manager) IsAssetBundleValid(id string) bool { return m.handles[id] != nil }

// IsAssetBundleListValid reports whether every id is a catalog bundle.
func (m *Manager) IsAssetBundleListValid(ids []string) bool {
	return m.firstInvalid(ids) == ""
}

func (m *Manager) firstInvalid(ids []string) string {
	for _, id := range ids {
		if m.handles[id] == nil {
			return id
		}
	}
	return ""
}

// IsAssetBundleRemote reports whether id must be downloaded.
func (m *Manager) IsAssetBundleRemote(id string) bool {
	handle := m.handles[id]
	return handle != nil && handle.IsRemote()
}

// IsAssetBundleAvailable reports whether id can be loaded: it is local,
// or remote and downloaded.
func (m *Manager) IsAssetBundleAvailable(id string) bool {
	handle := m.handles[id]
	if handle == nil {
		return false
	}
	return !handle.IsRemote() || m.engine.IsIDAvailable(id)
}

// IsAssetBundleListAvailable reports whether every id is available.
func (m *Manager) IsAssetBundleListAvailable(ids []string) bool {
	for _, id := range ids {
		if !m.IsAssetBundleAvailable(id) {
			return false
		}
	}
	return true
}

// IsAssetBundleLoaded reports whether id is loaded.
func (m *Manager) IsAssetBundleLoaded(id string) bool {
	handle := m.handles[id]
	return handle != nil && handle.IsLoaded()
}

// IsAssetBundleListLoaded reports whether every id is loaded.
func (m *Manager) IsAssetBundleListLoaded(ids []string) bool {
	for _, id := range ids {
		if !m.IsAssetBundleLoaded(id) {
			return false
		}
	}
	return true
}

// LoadedAssetBundleIDs returns the loaded bundles, sorted.
func (m *Manager) LoadedAssetBundleIDs() []string {
	var ids []string
	for _, id := range m.IDs() {
		if m.handles[id].IsLoaded() {
			ids = append(ids, id)
		}
	}
	return ids
}

func (m *Manager) remoteStatus(id string) (*downloadables.CatalogEntryStatus, bool) {
	if !m.IsAssetBundleRemote(id) {
		return nil, false
	}
	return m.engine.Status(id)
}

func (m *Manager) downloadProgress(id string) float64 {
	if m.handles[id] == nil {
		return 0
	}
	if !m.IsAssetBundleRemote(id) {
		return 1
	}
	status, ok := m.engine.Status(id)
	if !ok {
		return 0
	}
	return status.Progress()
}

// AssetBundleMBDownloadedSoFar is zero for local bundles.
func (m *Manager) AssetBundleMBDownloadedSoFar(id string) float64 {
	if status, ok := m.remoteStatus(id); ok {
		return float64(status.BytesDownloadedSoFar()) / bytesPerMB
	}
	return 0
}

// AssetBundleMBLeftToDownload is zero for local bundles.
func (m *Manager) AssetBundleMBLeftToDownload(id string) float64 {
	if status, ok := m.remoteStatus(id); ok {
		return float64(status.BytesLeftToDownload()) / bytesPerMB
	}
	return 0
}

// AssetBundleTotalMB is zero for local bundles.
func (m *Manager) AssetBundleTotalMB(id string) float64 {
	if status, ok := m.remoteStatus(id); ok {
		return float64(status.TotalBytes()) / bytesPerMB
	}
	return 0
}

// AssetBundleListMBDownloadedSoFar sums over ids.
func (m *Manager) AssetBundleListMBDownloadedSoFar(ids []string) float64 {
	return sumOver(ids, m.AssetBundleMBDownloadedSoFar)
}

// AssetBundleListMBLeftToDownload sums over ids.
func (m *Manager) AssetBundleListMBLeftToDownload(ids []string) float64 {
	return sumOver(ids, m.AssetBundleMBLeftToDownload)
}

// AssetBundleListTotalMB sums over ids.
func (m *Manager) AssetBundleListTotalMB(ids []string) float64 {
	return sumOver(ids, m.AssetBundleTotalMB)
}

func sumOver(ids []string, value func(string) float64) float64 {
	var total float64
	for _, id := range dedupe(ids) {
		total += value(id)
	}
	return total
}

// CreateDownloadablesHandle returns an engine handle over the remote
// bundles of the given groups.
func (m *Manager) CreateDownloadablesHandle(groupIDs ...string) (*downloadables.Handle, error) {
	return m.engine.CreateHandle(groupIDs...)
}

// SetDownloadablesGroupPriority changes the download priority of a
// group. It reports false for a group with no remote bundles.
func (m *Manager) SetDownloadablesGroupPriority(groupID string, priority int) bool {
	group, ok := m.engine.Group(groupID)
	if ok {
		group.SetPriority(priority)
	}
	return ok
}

// DownloadablesGroupPermissionRequested reports the group's requested
// flag.
func (m *Manager) DownloadablesGroupPermissionRequested(groupID string) bool {
	group, ok := m.engine.Group(groupID)
	return ok && group.PermissionRequested()
}

// SetDownloadablesGroupPermissionRequested sets the group's requested
// flag.
func (m *Manager) SetDownloadablesGroupPermissionRequested(groupID string, requested bool) {
	if group, ok := m.engine.Group(groupID); ok {
		group.SetPermissionRequested(requested)
	}
}

// DownloadablesGroupPermissionGranted reports whether the group may
// download over carrier data.
func (m *Manager) DownloadablesGroupPermissionGranted(groupID string) bool {
	group, ok := m.engine.Group(groupID)
	return ok && group.PermissionOverCarrierGranted()
}

// SetDownloadablesGroupPermissionGranted allows or forbids carrier
// data for the group.
func (m *Manager) SetDownloadablesGroupPermissionGranted(groupID string, granted bool) {
	if group, ok := m.engine.Group(groupID); ok {
		group.SetPermissionOverCarrierGranted(granted)
	}
}

func notify(onDone DoneFunc, result Result, data any) {
	if onDone != nil {
		onDone(result, data)
	}
}

// DownloadAssetBundleAndDependencies downloads id and everything it
// depends on.
func (m *Manager) DownloadAssetBundleAndDependencies(id string, onDone DoneFunc) *Request {
	if !m.IsAssetBundleValid(id) {
		request := newRequest(onDone)
		request.notify(ErrorHandleNotFound, id)
		return request
	}
	return m.DownloadAssetBundleList(m.DependenciesIncludingSelf(id), onDone)
}

// DownloadAssetBundleList downloads every remote bundle in ids. It
// resolves synchronously when ids is empty, names an unknown bundle, or
// is already available.
func (m *Manager) DownloadAssetBundleList(ids []string, onDone DoneFunc) *Request {
	request := newRequest(onDone)
	request.attach(m.downloadAssetBundleList(ids, request.notify))
	return request
}

func (m *Manager) downloadAssetBundleList(ids []string, onDone DoneFunc) *Op {
	if len(ids) == 0 {
		notify(onDone, Success, nil)
		return nil
	}
	if invalid := m.firstInvalid(ids); invalid != "" {
		notify(onDone, ErrorHandleNotFound, invalid)
		return nil
	}
	if m.IsAssetBundleListAvailable(ids) {
		notify(onDone, Success, nil)
		return nil
	}
	op := newOp(&downloadAssetBundleListOp{manager: m, ids: dedupe(ids)}, onDone, m.logger)
	m.performOp(op)
	return op
}

// LoadAssetBundleAndDependencies loads id and everything it depends on.
func (m *Manager) LoadAssetBundleAndDependencies(id string, onDone DoneFunc) *Request {
	if !m.IsAssetBundleValid(id) {
		request := newRequest(onDone)
		request.notify(ErrorHandleNotFound, id)
		return request
	}
	return m.LoadAssetBundleList(m.DependenciesIncludingSelf(id), onDone)
}

// LoadAssetBundleList loads every bundle in ids. Remote bundles must
// already be downloaded. It resolves synchronously when ids is empty,
// names an unknown bundle, or is already loaded.
func (m *Manager) LoadAssetBundleList(ids []string, onDone DoneFunc) *Request {
	request := newRequest(onDone)
	request.attach(m.loadAssetBundleList(ids, request.notify))
	return request
}

func (m *Manager) loadAssetBundleList(ids []string, onDone DoneFunc) *Op {
	if len(ids) == 0 {
		notify(onDone, Success, nil)
		return nil
	}
	if invalid := m.firstInvalid(ids); invalid != "" {
		notify(onDone, ErrorHandleNotFound, invalid)
		return nil
	}
	if m.IsAssetBundleListLoaded(ids) {
		notify(onDone, Success, nil)
		return nil
	}
	op := newOp(&loadAssetBundleListOp{manager: m, ids: dedupe(ids)}, onDone, m.logger)
	m.performOp(op)
	return op
}

// EarlyExit resolves a resource load that cannot start: the bundle is
// unknown, or it is marked loaded without a native bundle. It reports
// whether onDone was called.
func (m *Manager) EarlyExit(bundleID string, onDone DoneFunc) bool {
	handle := m.handles[bundleID]
	switch {
	case handle == nil:
		notify(onDone, ErrorHandleNotFound, bundleID)
		return true
	case handle.IsLoaded() && handle.Bundle() == nil:
		m.logAssertLoadedWithoutBundle(bundleID)
		notify(onDone, ErrorCouldntBeLoaded, bundleID)
		return true
	}
	return false
}

// LoadAsset downloads and loads bundleID with its dependencies, then
// loads assetName from it. On success the data is the asset.
func (m *Manager) LoadAsset(bundleID, assetName string, onDone DoneFunc) *Request {
	return m.loadResource(bundleID, assetName, assetResource{name: assetName}, onDone)
}

// LoadScene downloads and loads bundleID with its dependencies, then
// loads sceneName from it. On success the data is the scene name.
func (m *Manager) LoadScene(bundleID, sceneName string, mode SceneMode, onDone DoneFunc) *Request {
	return m.loadResource(bundleID, sceneName, sceneResource{name: sceneName, mode: mode}, onDone)
}

func (m *Manager) loadResource(bundleID, name string, resource resourceLoader, onDone DoneFunc) *Request {
	request := newRequest(onDone)
	request.bundleID = bundleID
	request.resourceName = name
	if m.EarlyExit(bundleID, request.notify) {
		return request
	}
	op := newOp(&loadResourceOp{manager: m, bundleID: bundleID, resource: resource}, request.notify, m.logger)
	m.performOp(op)
	request.attach(op)
	return request
}

// UnloadAssetBundle unloads id, or abandons its pending load, and
// returns the Result also passed to onDone.
func (m *Manager) UnloadAssetBundle(id string, onDone DoneFunc) Result {
	result := Success
	handle := m.handles[id]
	switch {
	case handle == nil:
		result = ErrorHandleNotFound
	case handle.State() == LoadStatePending:
		m.removeLoaderRequest(id)
		handle.unload()
	case handle.IsLoaded() || handle.State() == LoadStateLoading:
		handle.unload()
	default:
		result = ErrorNotLoaded
	}
	notify(onDone, result, nil)
	return result
}

// UnloadAssetBundleList unloads every id.
func (m *Manager) UnloadAssetBundleList(ids []string) {
	for _, id := range ids {
		m.UnloadAssetBundle(id, nil)
	}
}

// UnloadAllAssetBundles unloads every bundle.
func (m *Manager) UnloadAllAssetBundles() {
	m.UnloadAssetBundleList(m.IDs())
}

// UnloadAndLoad unloads the bundles of from that to does not need and
// loads the bundles of to that from did not have. Both lists are
// expanded with their dependencies first.
func (m *Manager) UnloadAndLoad(from, to []string, onDone DoneFunc) *Request {
	request := newRequest(onDone)
	if invalid := m.firstInvalid(append(append([]string(nil), from...), to...)); invalid != "" {
		request.notify(ErrorHandleNotFound, invalid)
		return request
	}
	unloadAndLoad := newUnloadAndLoadOp(m, "UnloadAndLoadAssetBundlesOp",
		m.DependenciesIncludingSelfList(from), m.DependenciesIncludingSelfList(to))
	op := newOp(unloadAndLoad, request.notify, m.logger)
	m.performOp(op)
	request.attach(op)
	return request
}

// UnloadAndLoadGroups is UnloadAndLoad over the bundles of bundle
// groups. An unknown group resolves with ErrorHandleNotFound and the
// group id.
func (m *Manager) UnloadAndLoadGroups(fromGroups, toGroups []string, onDone DoneFunc) *Request {
	request := newRequest(onDone)
	from, missing := m.groupsBundleIDs(fromGroups)
	if missing == "" {
		var to []string
		to, missing = m.groupsBundleIDs(toGroups)
		if missing == "" {
			op := newOp(newUnloadAndLoadOp(m, "UnloadAndLoadAssetBundlesGroupOp", from, to),
				request.notify, m.logger)
			m.performOp(op)
			request.attach(op)
			return request
		}
	}
	request.notify(ErrorHandleNotFound, missing)
	return request
}

func (m *Manager) groupsBundleIDs(groupIDs []string) ([]string, string) {
	var all []string
	for _, groupID := range groupIDs {
		ids, ok := m.groups[groupID]
		if !ok {
			return nil, groupID
		}
		all = append(all, ids...)
	}
	return dedupe(all), ""
}
