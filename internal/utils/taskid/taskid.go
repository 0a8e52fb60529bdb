// Package taskid generates client-side task identifiers. Client-synthesized
// tasks carry a kind prefix so the polling logic can tell them apart from
// server-issued task handles without guessing.
package taskid

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Prefix identifies the origin of a client-synthesized task id.
type Prefix string

const (
	PrefixPlaceholder Prefix = "ph_"
	PrefixEdit        Prefix = "edit_"
	PrefixAnimate     Prefix = "animate_"
	PrefixRetry       Prefix = "retry_"
	PrefixBase        Prefix = "base_"
)

var clientPrefixes = []Prefix{
	PrefixPlaceholder,
	PrefixEdit,
	PrefixAnimate,
	PrefixRetry,
	PrefixBase,
}

var (
	entropyOnce sync.Once
	entropyMu   sync.Mutex
	entropy     *ulid.MonotonicEntropy
)

func newEntropy() *ulid.MonotonicEntropy {
	entropyOnce.Do(func() {
		source := rand.NewSource(time.Now().UnixNano())
		entropy = ulid.Monotonic(rand.New(source), 0)
	})
	return entropy
}

// New returns a prefixed ULID string for a client-synthesized task.
func New(prefix Prefix) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), newEntropy())
	return string(prefix) + strings.ToLower(id.String())
}

// ClientPrefix returns the recognized client prefix of the id, or "" when the
// id is a server-issued task handle.
func ClientPrefix(id string) Prefix {
	for _, p := range clientPrefixes {
		if strings.HasPrefix(id, string(p)) {
			return p
		}
	}
	return ""
}

// IsClientID reports whether the id was synthesized on the client and must
// never be sent to the task-status endpoint.
func IsClientID(id string) bool {
	return ClientPrefix(id) != ""
}

// Parse strips a recognized prefix and returns the embedded ULID.
func Parse(id string) (ulid.ULID, error) {
	id = strings.TrimSpace(id)
	if p := ClientPrefix(id); p != "" {
		id = strings.TrimPrefix(id, string(p))
	}
	return ulid.Parse(id)
}
