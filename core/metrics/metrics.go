// Package metrics defines the instrument interfaces shared by the actor
// runtime, the ticker and the bus proxy. Backends live in adapters
// (see adapters/prometheus); the core only ever sees these interfaces.
package metrics

// Timer measures one operation. Typical use:
//
//	defer m.AskDuration(msgType).ObserveDuration()
type Timer interface {
	ObserveDuration()
}
