package registry

import (
	"hash/fnv"
	"sync"

	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

const lockStripes = 128

// participantLocks serialises mutations per participant. Two participants
// may share a stripe, so a holder must never lock a second participant.
type participantLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *participantLocks) lock(pid identifier.Participant) (unlock func()) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(pid.URIEncoded()))
	mu := &l.stripes[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}
