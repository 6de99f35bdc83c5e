package vm

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
)

var (
	runtimeEnvOnce sync.Once
	runtimeEnvKey  uint64
)

// RuntimeEnvironmentKey returns the process-global, write-once key. It
// is initialized once from a non-deterministic source on first use and
// immutable thereafter; it need not be cryptographically strong, only
// unpredictable across process lifetimes. Nothing in this package reads
// it: builtins receive the *VM itself, not a pointer derived from the key.
func RuntimeEnvironmentKey() uint64 {
	runtimeEnvOnce.Do(func() {
		var b [8]byte
		if _, err := rand.Read(b[:]); err != nil {
			runtimeEnvKey = 1
			return
		}
		runtimeEnvKey = binary.LittleEndian.Uint64(b[:])
	})
	return runtimeEnvKey
}
