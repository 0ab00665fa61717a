package kernel

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"strings"

	"crypto/sha256"
)

// deterministicRand returns a PCG-seeded *rand.Rand whose seed is
// derived from masterSeed and the structured key parts, per spec
// §4.2's H(master_seed, "arrival", agent_id, tick) contract. Hashing
// the key (rather than XOR-folding it) keeps nearby keys (adjacent
// ticks, similar agent ids) from producing correlated streams.
func deterministicRand(masterSeed int64, parts ...string) *rand.Rand {
	key := strings.Join(parts, "\x1f")
	h := sha256.New()
	var seedBuf [8]byte
	binary.LittleEndian.PutUint64(seedBuf[:], uint64(masterSeed))
	h.Write(seedBuf[:])
	h.Write([]byte(key))
	sum := h.Sum(nil)
	seed1 := binary.LittleEndian.Uint64(sum[0:8])
	seed2 := binary.LittleEndian.Uint64(sum[8:16])
	return rand.New(rand.NewPCG(seed1, seed2))
}

// arrivalKey builds the structured RNG key for one agent's arrival draw
// at one tick.
func arrivalKey(agentID string, tick Tick) []string {
	return []string{"arrival", agentID, fmt.Sprintf("%d", tick)}
}
