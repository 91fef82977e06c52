// Package audit provides sinks for trust lifecycle events. The engine emits
// one event per committed mutation (initialization, operation creation,
// signing, apply, rejection, migration) with enough identifiers in the
// payload to reconstruct a timeline.
//
// Two sinks are provided: SlogSink forwards events to a structured logger,
// JSONLSink appends one JSON object per line to a file for offline
// reconstruction. MultiSink fans out to several sinks.
package audit
