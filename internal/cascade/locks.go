package cascade

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// lockStripes bounds memory regardless of how many members the process sees.
const lockStripes = 256

// memberLocks serializes steps touching the same ledger within this process.
// Members share a fixed set of mutexes, so two members may contend on one
// stripe; callers hold at most one stripe at a time. Cross-process races are
// caught by the ledger version check instead.
type memberLocks struct {
	stripes [lockStripes]sync.Mutex
}

func newMemberLocks() *memberLocks {
	return &memberLocks{}
}

func (l *memberLocks) get(memberID uuid.UUID) *sync.Mutex {
	return &l.stripes[stripe(memberID)]
}

// stripe picks a mutex from the random low half of the id.
func stripe(memberID uuid.UUID) uint64 {
	return binary.BigEndian.Uint64(memberID[8:]) % lockStripes
}
