// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

import "github.com/google/uuid"

// Request is the caller's view of an asynchronous call. It is valid
// even when the call resolved before returning, in which case it is
// already done and has no op.
type Request struct {
	id           string
	bundleID     string
	resourceName string
	onDone       DoneFunc
	op           *Op

	done                 bool
	result               Result
	data                 any
	allowSceneActivation bool
}

func newRequest(onDone DoneFunc) *Request {
	return &Request{
		id:                   uuid.NewString(),
		onDone:               onDone,
		allowSceneActivation: true,
	}
}

// notify is the DoneFunc handed to the op in the caller's place.
func (r *Request) notify(result Result, data any) {
	if r.done {
		return
	}
	r.done = true
	r.result = result
	r.data = data
	if r.onDone != nil {
		r.onDone(result, data)
	}
}

func (r *Request) attach(op *Op) {
	if op == nil || r.done {
		return
	}
	r.op = op
	if !r.allowSceneActivation {
		op.SetAllowSceneActivation(false)
	}
}

// ID identifies the request in logs.
func (r *Request) ID() string { return r.id }

// BundleID is the bundle named by a resource load, or empty.
func (r *Request) BundleID() string { return r.bundleID }

// ResourceName is the asset or scene named by a resource load, or
// empty.
func (r *Request) ResourceName() string { return r.resourceName }

// IsDone reports whether the request has resolved.
func (r *Request) IsDone() bool { return r.done }

// Result is meaningful once IsDone.
func (r *Request) Result() Result { return r.result }

// Data is meaningful once IsDone.
func (r *Request) Data() any { return r.data }

// Progress is in [0, 1] and 1 once done.
func (r *Request) Progress() float64 {
	if r.done {
		return 1
	}
	if r.op == nil {
		return 0
	}
	return r.op.Progress()
}

// AllowSceneActivation reports the activation flag.
func (r *Request) AllowSceneActivation() bool { return r.allowSceneActivation }

// SetAllowSceneActivation holds or releases scene activation.
func (r *Request) SetAllowSceneActivation(allow bool) {
	r.allowSceneActivation = allow
	if r.op != nil {
		r.op.SetAllowSceneActivation(allow)
	}
}

// Cancel resolves a pending request with Canceled.
func (r *Request) Cancel() {
	if r.done || r.op == nil {
		return
	}
	r.op.Cancel()
}
