package cluster

import (
	"errors"
	"fmt"
)

// ErrNodeNotFound is returned when no node matches a lookup, including
// frontend selection against an empty cluster.
var ErrNodeNotFound = errors.New("node not found")

// ErrInterrupted is returned from Start when provisioning was cut short by
// a cancellation signal. The cluster state observed at that point has been
// persisted, so no launched instance is left untracked.
var ErrInterrupted = errors.New("interrupted, cluster state saved")

// ErrIncompleteStop is returned from Stop when some instances could not be
// terminated and force was not set. The cluster has been re-persisted;
// re-running stop retries the leftovers.
var ErrIncompleteStop = errors.New("not all instances have been terminated")

// SizingError reports that the actual node population cannot satisfy the
// configured per-kind minimums. The instances are left running: tearing
// down possibly expensive resources over a sizing mismatch is worse than
// leaving them for operator inspection.
type SizingError struct {
	Cluster string
	Reason  string
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("cluster %s: %s", e.Cluster, e.Reason)
}
