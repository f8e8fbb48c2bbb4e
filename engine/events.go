package engine

import "github.com/parquedb/parquedb/eventid"

// eventGenerator is a thin alias so write.go doesn't need to import
// eventid directly for the one type name it uses.
type eventGenerator = eventid.Generator

// sharedEventGen is process-wide: event ids only need to be
// monotonically increasing per namespace under that namespace's
// serializer lock, and eventid.Generator is already safe for concurrent
// use across namespaces, so one instance per process is sufficient and
// avoids a generator-per-Engine allocation.
var sharedEventGen = eventid.NewGenerator()
