// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package migration

// Progress is the state of a migration executor.
type Progress int32

// Executor states. MigrationComplete and MigrationAborted are terminal.
const (
	NotStarted Progress = iota
	StaticMigrationInProgress
	MigrationComplete
	MigrationAborted
)

// String implements fmt.Stringer.
func (progress Progress) String() string {
	switch progress {
	case NotStarted:
		return "NOT_STARTED"
	case StaticMigrationInProgress:
		return "STATICMIGRATION_IN_PROGRESS"
	case MigrationComplete:
		return "MIGRATION_COMPLETE"
	case MigrationAborted:
		return "MIGRATION_ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no transition leaves progress.
func (progress Progress) Terminal() bool {
	return progress == MigrationComplete || progress == MigrationAborted
}

type event int

const (
	eventStart event = iota
	eventComplete
	eventAbort
)

// effect is a side effect requested by a transition and executed by the
// executor that owns the state.
type effect int

const (
	// effectBegin starts the role specific work: the destination sends its
	// filter set, the source schedules its worker.
	effectBegin effect = iota
	effectArmIdleTimer
	effectCancelIdleTimer
	effectNotifyDone
)

// transition returns the state reached from progress on ev and the effects
// to run. ok is false when the event does not apply; terminal states absorb
// every event.
func transition(progress Progress, ev event) (_ Progress, effects []effect, ok bool) {
	switch {
	case progress == NotStarted && ev == eventStart:
		return StaticMigrationInProgress, []effect{effectBegin, effectArmIdleTimer}, true
	case progress == StaticMigrationInProgress && ev == eventComplete:
		return MigrationComplete, []effect{effectCancelIdleTimer, effectNotifyDone}, true
	case !progress.Terminal() && ev == eventAbort:
		return MigrationAborted, []effect{effectCancelIdleTimer, effectNotifyDone}, true
	}
	return progress, nil, false
}
