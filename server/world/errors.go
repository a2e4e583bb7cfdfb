package world

import "errors"

// Errors of the region lifecycle engine. Misaligned tile access panics
// instead of returning an error (see host.go); a double SetGenerated is
// rejected by a false return (see region.go).
var (
	// ErrShuttingDown names the failure of a load refused because the loader
	// has begun shutting down. LoadRegion does not return it; it reports such
	// a refusal by invoking its callback with success=false.
	ErrShuttingDown = errors.New("world: loader is shutting down")
	// ErrRegionCorrupt is wrapped around a deserialisation mismatch found
	// while reading a region document.
	ErrRegionCorrupt = errors.New("world: region document malformed")
	// ErrPermitDenied names the failure of a lifecycle or save permit
	// requested from a state that does not allow it. The Region permit
	// methods do not return it; they report a refusal as a false result.
	ErrPermitDenied = errors.New("world: permit denied, predecessor state not held")
	// ErrNotPrepared is returned by host façade writes targeting a region
	// that is not yet Prepared.
	ErrNotPrepared = errors.New("world: region not prepared")
)
