package ingest

import "sync"

const lockShards = 64

// keyedMutex serializes work per check id. Operations on distinct checks
// land on (mostly) distinct shards and run in parallel.
type keyedMutex struct {
	shards [lockShards]sync.Mutex
}

func (k *keyedMutex) lock(id uint) func() {
	mu := &k.shards[id%lockShards]
	mu.Lock()
	return mu.Unlock
}
