// Package bufpool provides sync.Pool-backed byte-slice pools for the two
// chunk sizes the pipeline reuses on every job: small chunks for hashing
// (SPEC_FULL §4.6) and large chunks for backup stream download (§4.4).
// Adapted from the teacher's optimization/pools.go BufferPool, trimmed to
// the two sizes this engine actually drives.
package bufpool

import "sync"

// Pool is a fixed-size byte-slice pool. Buffers are zeroed on Get so a
// previous job's bytes never leak into a new job's hash or download.
type Pool struct {
	size int
	pool sync.Pool
}

// New creates a pool of buffers of the given size.
func New(size int) *Pool {
	return &Pool{
		size: size,
		pool: sync.Pool{
			New: func() interface{} {
				return make([]byte, size)
			},
		},
	}
}

// Get returns a zeroed buffer of the pool's configured size.
func (p *Pool) Get() []byte {
	buf := p.pool.Get().([]byte)
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Put returns buf to the pool. Buffers of the wrong size are dropped rather
// than pooled, matching the teacher's defensive size check.
func (p *Pool) Put(buf []byte) {
	if len(buf) != p.size {
		return
	}
	p.pool.Put(buf)
}

const (
	// HashChunkSize is the read size used while computing SHA-256 digests,
	// per §4.6.
	HashChunkSize = 4 * 1024

	// BackupChunkSize is the read size used while streaming a backup
	// download, per §4.4.
	BackupChunkSize = 32 * 1024 * 1024
)

// Hash and Backup are process-wide pools for the two chunk sizes above.
var (
	Hash   = New(HashChunkSize)
	Backup = New(BackupChunkSize)
)
