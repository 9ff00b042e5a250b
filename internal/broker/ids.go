package broker

import "github.com/google/uuid"

// NewWorkerID mints a broker-assigned worker identifier. The original
// implementation used a nanoid-style generator; no such library appears
// anywhere in the retrieved ecosystem, so this substitutes the
// already-vendored google/uuid, the same library the teacher uses for its
// own entity identifiers.
func NewWorkerID() WorkerID {
	return uuid.NewString()
}
