// Package grants tracks which browser capabilities and host origins the
// controller has been granted, and gates every routed request on them.
//
// The grant record is the analogue of an extension's permission set: a fixed
// list of capability names plus origin patterns. The router refuses to
// dispatch anything until all required capabilities and at least one broad
// host pattern are present.
package grants

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sessionvault/sessionvault/internal/kv"
)

// ErrPermissionDenied is the uniform gate failure. Its message is surfaced
// verbatim to the UI, independent of which request was attempted.
var ErrPermissionDenied = errors.New("Data access permission is required.")

// Required capability names. All must be granted.
var RequiredCapabilities = []string{"cookies", "scripting", "storage", "tabs"}

// Broad host-access patterns. At least one must be granted.
var BroadOrigins = []string{"<all_urls>", "*://*/*", "http://*/*", "https://*/*"}

// Grants is the persisted grant record.
type Grants struct {
	Permissions []string `json:"permissions"`
	Origins     []string `json:"origins"`
}

// Source reports the currently granted capabilities and origins.
type Source interface {
	Granted() (Grants, error)
}

// KVSource persists the grant record as the "grants" blob.
type KVSource struct {
	store kv.Store
}

// NewKVSource creates a grant source over a kv store.
func NewKVSource(store kv.Store) *KVSource {
	return &KVSource{store: store}
}

// Granted returns the stored grant record; an absent record means nothing
// has been granted.
func (s *KVSource) Granted() (Grants, error) {
	data, err := s.store.Get(kv.KeyGrants)
	if errors.Is(err, kv.ErrNotFound) {
		return Grants{}, nil
	}
	if err != nil {
		return Grants{}, fmt.Errorf("failed to load grants: %w", err)
	}

	var g Grants
	if err := json.Unmarshal(data, &g); err != nil {
		return Grants{}, fmt.Errorf("failed to decode grants: %w", err)
	}
	return g, nil
}

// Save persists the grant record.
func (s *KVSource) Save(g Grants) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode grants: %w", err)
	}
	return s.store.Set(kv.KeyGrants, data)
}

// Checker validates grant records against the required set.
type Checker struct {
	source Source
}

// NewChecker creates a checker over a grant source.
func NewChecker(source Source) *Checker {
	return &Checker{source: source}
}

// Verify returns ErrPermissionDenied unless every required capability and at
// least one broad origin pattern is granted. Source failures are also
// reported as the uniform denial; a gate that cannot read its grants has no
// business dispatching.
func (c *Checker) Verify() error {
	g, err := c.source.Granted()
	if err != nil {
		return ErrPermissionDenied
	}

	granted := make(map[string]bool, len(g.Permissions))
	for _, p := range g.Permissions {
		granted[p] = true
	}
	for _, required := range RequiredCapabilities {
		if !granted[required] {
			return ErrPermissionDenied
		}
	}

	for _, origin := range g.Origins {
		for _, broad := range BroadOrigins {
			if origin == broad {
				return nil
			}
		}
	}
	return ErrPermissionDenied
}
