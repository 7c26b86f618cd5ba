// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

import "testing"

// scriptedKind counts driver calls and resolves when told to.
type scriptedKind struct {
	performs int
	updates  int
	stops    int
	allow    bool

	progressValue  float64
	resolveOnStart bool
	resolveAfter   int
}

func (k *scriptedKind) name() string { return "scripted" }

func (k *scriptedKind) perform(op *Op) {
	k.performs++
	k.updates = 0
	if k.resolveOnStart {
		op.NotifySuccess("sync")
	}
}

func (k *scriptedKind) update(op *Op) {
	k.updates++
	if k.resolveAfter > 0 && k.updates >= k.resolveAfter {
		op.NotifyError(ErrorInternal)
	}
}

func (k *scriptedKind) progress() float64 { return k.progressValue }

func (k *scriptedKind) setAllowSceneActivation(allow bool) { k.allow = allow }

func (k *scriptedKind) stop() { k.stops++ }

func TestOpLifecycle(t *testing.T) {
	k := &scriptedKind{resolveAfter: 2}
	var got outcome
	op := newOp(k, got.done, nil)

	op.Update()
	if k.updates != 0 {
		t.Fatal("update ran before Perform")
	}
	if op.State() != OpNone || op.Progress() != 0 {
		t.Fatalf("state %v progress %v before Perform", op.State(), op.Progress())
	}

	op.Perform()
	op.Perform()
	if k.performs != 1 {
		t.Fatalf("performs = %d, want 1", k.performs)
	}
	if !op.IsPerforming() {
		t.Fatal("op is not performing")
	}

	op.Update()
	op.Update()
	requireOutcome(t, &got, ErrorInternal, nil)
	if !op.IsDone() || op.Result() != ErrorInternal {
		t.Fatalf("state %v result %v", op.State(), op.Result())
	}

	// Neither further polls nor late notifications reach the callback.
	op.Update()
	op.NotifySuccess("late")
	op.Perform()
	if k.updates != 2 || k.performs != 1 || got.calls != 1 {
		t.Errorf("updates=%d performs=%d calls=%d after done", k.updates, k.performs, got.calls)
	}
	if op.Progress() != 1 {
		t.Errorf("progress = %v after done, want 1", op.Progress())
	}
}

func TestOpSynchronousResolution(t *testing.T) {
	k := &scriptedKind{resolveOnStart: true}
	var got outcome
	op := newOp(k, got.done, nil)
	op.Perform()
	requireOutcome(t, &got, Success, "sync")
	if op.Data() != "sync" {
		t.Errorf("data = %v", op.Data())
	}
}

func TestOpCancel(t *testing.T) {
	k := &scriptedKind{}
	var got outcome
	op := newOp(k, got.done, nil)

	op.Cancel()
	if got.calls != 0 || k.stops != 0 {
		t.Fatal("Cancel before Perform had an effect")
	}

	op.Perform()
	op.Cancel()
	op.Cancel()
	requireOutcome(t, &got, Canceled, nil)
	if k.stops != 1 {
		t.Errorf("stops = %d, want 1", k.stops)
	}
}

func TestOpResetStartsANewCycle(t *testing.T) {
	k := &scriptedKind{resolveAfter: 1}
	var got outcome
	op := newOp(k, got.done, nil)

	op.Perform()
	op.Reset()
	if k.stops != 1 || got.calls != 0 {
		t.Fatalf("Reset while performing: stops=%d calls=%d", k.stops, got.calls)
	}
	if op.State() != OpNone {
		t.Fatalf("state = %v after Reset", op.State())
	}

	op.Perform()
	op.Update()
	if k.performs != 2 {
		t.Errorf("performs = %d, want 2", k.performs)
	}
	requireOutcome(t, &got, ErrorInternal, nil)
}

func TestOpProgressIsClamped(t *testing.T) {
	k := &scriptedKind{progressValue: 1.7}
	op := newOp(k, nil, nil)
	op.Perform()
	if got := op.Progress(); got != 1 {
		t.Errorf("progress = %v, want 1", got)
	}
	k.progressValue = -0.2
	if got := op.Progress(); got != 0 {
		t.Errorf("progress = %v, want 0", got)
	}
	k.progressValue = 0.25
	if got := op.Progress(); got != 0.25 {
		t.Errorf("progress = %v, want 0.25", got)
	}
}

func TestOpAllowSceneActivation(t *testing.T) {
	k := &scriptedKind{}
	op := newOp(k, nil, nil)
	if !op.AllowSceneActivation() {
		t.Fatal("activation not allowed by default")
	}
	op.SetAllowSceneActivation(false)
	if op.AllowSceneActivation() || k.allow {
		t.Error("flag not propagated")
	}
	op.SetAllowSceneActivation(true)
	if !k.allow {
		t.Error("flag not propagated")
	}
}

func TestFutureResolvesOnce(t *testing.T) {
	var f future
	f.resolve(ErrorNotLoaded, "a")
	f.resolve(Success, "b")
	if !f.done || f.result != ErrorNotLoaded || f.data != "a" {
		t.Errorf("future = %+v", f)
	}
}

func TestRequestReflectsOp(t *testing.T) {
	var got outcome
	request := newRequest(got.done)
	k := &scriptedKind{progressValue: 0.5, resolveAfter: 1}
	op := newOp(k, request.notify, nil)
	op.Perform()
	request.attach(op)

	if request.IsDone() || request.Progress() != 0.5 {
		t.Fatalf("done=%v progress=%v", request.IsDone(), request.Progress())
	}
	request.SetAllowSceneActivation(false)
	if k.allow || op.AllowSceneActivation() {
		t.Error("activation flag not passed to the op")
	}

	op.Update()
	if !request.IsDone() || request.Result() != ErrorInternal || request.Progress() != 1 {
		t.Errorf("done=%v result=%v progress=%v", request.IsDone(), request.Result(), request.Progress())
	}
	requireOutcome(t, &got, ErrorInternal, nil)
}

func TestResultStrings(t *testing.T) {
	tests := map[Result]string{
		Success:                     "Success",
		ErrorHandleNotFound:         "Error_AB_Handle_Not_Found",
		ErrorAssetNotFound:          "Error_Asset_Not_Found_In_AB",
		ErrorDiskUnauthorizedAccess: "Error_AB_Disk_UnauthorizedAccess",
		Canceled:                    "Canceled",
		Result(99):                  "Result(99)",
	}
	for result, want := range tests {
		if got := result.String(); got != want {
			t.Errorf("%d: %q, want %q", int(result), got, want)
		}
	}
}
