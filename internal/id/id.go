package id

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record prefixes.
const (
	PrefixSpec        = "spec"
	PrefixEnvironment = "env"
	PrefixRoute       = "route"
)

// UUID generates a random UUID v4 string.
func UUID() string {
	return uuid.NewString()
}

// Short generates a 16-character random hex string.
func Short() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Prefixed returns prefix + "_" + Short().
func Prefixed(prefix string) string {
	return prefix + "_" + Short()
}

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var (
	sortMu     sync.Mutex
	sortLastMs int64
	sortSeq    uint16
)

// Sortable returns a 26-character, time-ordered identifier.
// IDs created in the same millisecond stay ordered through a sequence counter.
func Sortable() string {
	sortMu.Lock()
	now := time.Now().UnixMilli()
	if now <= sortLastMs {
		now = sortLastMs
		sortSeq++
		if sortSeq == 0 {
			now++
		}
	} else {
		sortSeq = 0
	}
	sortLastMs = now
	seq := sortSeq
	sortMu.Unlock()

	return encodeSortable(now, seq)
}

func encodeSortable(ms int64, seq uint16) string {
	out := make([]byte, 26)

	// 48-bit timestamp, 10 characters of 5 bits each, most significant first.
	for i := 9; i >= 0; i-- {
		out[i] = crockford[ms&0x1F]
		ms >>= 5
	}

	// 16-bit sequence (4 characters) keeps same-millisecond IDs ordered,
	// followed by 60 random bits (12 characters).
	s := uint32(seq)
	for i := 13; i >= 10; i-- {
		out[i] = crockford[s&0x1F]
		s >>= 5
	}
	random := make([]byte, 12)
	_, _ = rand.Read(random)
	for i, b := range random {
		out[14+i] = crockford[b&0x1F]
	}
	return string(out)
}

// SortableTime extracts the timestamp from an ID produced by Sortable.
// It returns false if s is not a valid sortable ID.
func SortableTime(s string) (time.Time, bool) {
	if len(s) != 26 {
		return time.Time{}, false
	}
	var ms int64
	for i := 0; i < 26; i++ {
		v := decodeCrockford(s[i])
		if v < 0 {
			return time.Time{}, false
		}
		if i < 10 {
			ms = ms<<5 | int64(v)
		}
	}
	return time.UnixMilli(ms), true
}

func decodeCrockford(c byte) int {
	for i := 0; i < len(crockford); i++ {
		if crockford[i] == c {
			return i
		}
	}
	return -1
}
