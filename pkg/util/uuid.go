package util

import (
	"github.com/google/uuid"
)

// UUIDGenerator is equal to the signature of the UUID library's UUID
// generation functions. Stress test runs obtain their identifiers
// through it, so that unit tests can provide fixed ones.
type UUIDGenerator func() (uuid.UUID, error)

var (
	_ UUIDGenerator = uuid.NewRandom
	_ UUIDGenerator = uuid.NewUUID
)
