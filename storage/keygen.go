package storage

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
)

const (
	keyAlphabet  = "abcdefghijklmnopqrstuvwxyz0123456789"
	keySuffixLen = 9
)

// KeyGenerator derives storage keys of the form
// "{owner_id}/{unix_millis}_{suffix}.{ext}". The 9-character suffix over a
// 36-symbol alphabet (~46 bits) keeps collisions within one owner's
// namespace negligible even for rapid concurrent uploads, and keys are
// never reused.
type KeyGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewKeyGenerator seeds a dedicated random source.
func NewKeyGenerator() *KeyGenerator {
	return &KeyGenerator{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Generate builds a key scoped to the owner. The extension is whatever
// follows the last dot of the original filename; a filename without a dot
// yields a key without an extension suffix.
func (g *KeyGenerator) Generate(ownerID uint, filename string) string {
	key := fmt.Sprintf("%d/%d_%s", ownerID, time.Now().UnixMilli(), g.suffix())
	if ext := extensionOf(filename); ext != "" {
		key += "." + ext
	}
	return key
}

func (g *KeyGenerator) suffix() string {
	b := make([]byte, keySuffixLen)
	g.mu.Lock()
	for i := range b {
		b[i] = keyAlphabet[g.rng.Intn(len(keyAlphabet))]
	}
	g.mu.Unlock()
	return string(b)
}

func extensionOf(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return filename[idx+1:]
}
