// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

import "github.com/bureau-foundation/downloadables/lib/downloadables"

// downloadAssetBundleListOp waits until every bundle in a list is
// available. Local bundles always are. A remote id fails the op when
// its request ended with a disk error or its retry budget is spent;
// any other ended request is issued again.
type downloadAssetBundleListOp struct {
	manager *Manager
	ids     []string
}

func (k *downloadAssetBundleListOp) name() string { return "DownloadAssetBundleListOp" }

func (k *downloadAssetBundleListOp) perform(op *Op) {
	for _, id := range k.ids {
		if !k.manager.IsAssetBundleAvailable(id) {
			k.manager.engine.RequestID(id)
		}
	}
}

func (k *downloadAssetBundleListOp) update(op *Op) {
	allAvailable := true
	for _, id := range k.ids {
		handle := k.manager.handles[id]
		if handle == nil {
			op.finish(ErrorHandleNotFound, id)
			return
		}
		if !handle.IsRemote() {
			continue
		}
		status, ok := k.manager.engine.Status(id)
		if !ok {
			op.finish(ErrorNotDownloadable, id)
			return
		}
		if status.IsAvailable(false) {
			continue
		}
		allAvailable = false
		if status.RequestState() == downloadables.RequestDone {
			if result, failed := diskResult(status.RequestError()); failed {
				op.finish(result, id)
				return
			}
		}
		if !status.CanAutomaticDownload() {
			op.finish(ErrorDownloadInternal, id)
			return
		}
		if status.CanBeRequested() {
			status.Request()
		}
	}
	if allAvailable {
		op.NotifySuccess(nil)
	}
}

func (k *downloadAssetBundleListOp) progress() float64 {
	if len(k.ids) == 0 {
		return 1
	}
	var total float64
	for _, id := range k.ids {
		total += k.manager.downloadProgress(id)
	}
	return total / float64(len(k.ids))
}

func (k *downloadAssetBundleListOp) setAllowSceneActivation(bool) {}

func (k *downloadAssetBundleListOp) stop() {}
