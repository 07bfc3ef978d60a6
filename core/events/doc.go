// Package events defines the lifecycle events emitted on the event bus.
//
// Available event types:
//   - RequestCreated: a request was persisted
//   - UnitAssigned: a unit was committed to a request
//   - StatusChanged: a request moved along its lifecycle
//   - AssignmentConflict: two active requests hold the same unit
//   - NoCoverage: no eligible unit existed for a request
package events
