// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package assetbundles

import (
	"log/slog"

	"github.com/google/uuid"
)

// DoneFunc receives the single outcome of an operation. data is
// operation specific: the loaded asset, the bundle, or the id that
// caused a failure.
type DoneFunc func(result Result, data any)

// OpState is the lifecycle of an Op.
type OpState int

const (
	OpNone OpState = iota
	OpPerforming
	OpDone
)

func (s OpState) String() string {
	switch s {
	case OpPerforming:
		return "performing"
	case OpDone:
		return "done"
	default:
		return "none"
	}
}

// kind is the behavior of one operation type. The Op driver owns the
// lifecycle; a kind only starts work, polls it, and reports through
// NotifySuccess or NotifyError on the op it is given.
type kind interface {
	name() string

	// perform is the start step. It runs once per Perform and may
	// resolve the op synchronously.
	perform(op *Op)

	// update is the poll step. It runs only while the op is performing.
	update(op *Op)

	progress() float64
	setAllowSceneActivation(allow bool)

	// stop abandons in-flight work. The op resolves afterwards.
	stop()
}

// Op drives one operation through None, Performing and Done. An Op
// resolves exactly once per Perform; Reset makes it reusable.
type Op struct {
	kind   kind
	id     string
	logger *slog.Logger

	state                OpState
	onDone               DoneFunc
	result               Result
	data                 any
	allowSceneActivation bool
}

func newOp(k kind, onDone DoneFunc, logger *slog.Logger) *Op {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	op := &Op{kind: k, id: uuid.NewString(), logger: logger}
	op.setup(onDone)
	return op
}

func (o *Op) setup(onDone DoneFunc) {
	o.onDone = onDone
	o.state = OpNone
	o.result = Success
	o.data = nil
	o.allowSceneActivation = true
}

// ID identifies the op in logs.
func (o *Op) ID() string { return o.id }

// Name is the operation type.
func (o *Op) Name() string { return o.kind.name() }

// State returns the lifecycle state.
func (o *Op) State() OpState { return o.state }

// IsPerforming reports whether the op has started and not resolved.
func (o *Op) IsPerforming() bool { return o.state == OpPerforming }

// IsDone reports whether the op has resolved.
func (o *Op) IsDone() bool { return o.state == OpDone }

// Result is meaningful once IsDone.
func (o *Op) Result() Result { return o.result }

// Data is meaningful once IsDone.
func (o *Op) Data() any { return o.data }

// Perform starts the op. It does nothing unless the op is in OpNone.
func (o *Op) Perform() {
	if o.state != OpNone {
		return
	}
	o.state = OpPerforming
	o.logger.Debug("op started", "op", o.kind.name(), "op_id", o.id)
	o.kind.perform(o)
}

// Update polls the op. It does nothing unless the op is performing.
func (o *Op) Update() {
	if o.state != OpPerforming {
		return
	}
	o.kind.update(o)
}

// NotifySuccess resolves the op with Success.
func (o *Op) NotifySuccess(data any) {
	o.finish(Success, data)
}

// NotifyError resolves the op with result.
func (o *Op) NotifyError(result Result) {
	o.finish(result, nil)
}

func (o *Op) finish(result Result, data any) {
	if o.state != OpPerforming {
		return
	}
	o.state = OpDone
	o.result = result
	o.data = data
	if result == Success {
		o.logger.Debug("op done", "op", o.kind.name(), "op_id", o.id)
	} else {
		o.logger.Info("op failed",
			"op", o.kind.name(),
			"op_id", o.id,
			"result", result.String(),
			"data", data,
		)
	}
	if o.onDone != nil {
		o.onDone(result, data)
	}
}

// Cancel abandons a performing op and resolves it with Canceled.
func (o *Op) Cancel() {
	if o.state != OpPerforming {
		return
	}
	o.kind.stop()
	o.finish(Canceled, nil)
}

// Reset returns the op to OpNone without calling its callback,
// abandoning in-flight work.
func (o *Op) Reset() {
	if o.state == OpPerforming {
		o.kind.stop()
	}
	o.setup(o.onDone)
}

// Progress is 0 before Perform, 1 once done, and the kind's estimate in
// between.
func (o *Op) Progress() float64 {
	switch o.state {
	case OpNone:
		return 0
	case OpDone:
		return 1
	}
	return clamp01(o.kind.progress())
}

// AllowSceneActivation reports the current activation flag.
func (o *Op) AllowSceneActivation() bool { return o.allowSceneActivation }

// SetAllowSceneActivation is passed down to native scene and bundle
// requests. A scene finishes loading but is not activated, and the op
// does not resolve, while the flag is false.
func (o *Op) SetAllowSceneActivation(allow bool) {
	o.allowSceneActivation = allow
	o.kind.setAllowSceneActivation(allow)
}

func clamp01(value float64) float64 {
	switch {
	case value < 0:
		return 0
	case value > 1:
		return 1
	}
	return value
}

// future is a one-shot result slot. Composed operations pass resolve as
// a child's DoneFunc and poll done on their own update.
type future struct {
	done   bool
	result Result
	data   any
}

func (f *future) resolve(result Result, data any) {
	if f.done {
		return
	}
	f.done = true
	f.result = result
	f.data = data
}
