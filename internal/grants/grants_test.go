package grants

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionvault/sessionvault/internal/kv"
)

func fullGrants() Grants {
	return Grants{
		Permissions: []string{"cookies", "scripting", "storage", "tabs"},
		Origins:     []string{"<all_urls>"},
	}
}

func TestVerifyAllGranted(t *testing.T) {
	src := NewKVSource(kv.NewMemory())
	require.NoError(t, src.Save(fullGrants()))

	assert.NoError(t, NewChecker(src).Verify())
}

func TestVerifyEmptyStore(t *testing.T) {
	src := NewKVSource(kv.NewMemory())
	err := NewChecker(src).Verify()
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, "Data access permission is required.", err.Error())
}

func TestVerifyMissingCapability(t *testing.T) {
	for _, missing := range RequiredCapabilities {
		g := fullGrants()
		kept := make([]string, 0, len(g.Permissions)-1)
		for _, p := range g.Permissions {
			if p != missing {
				kept = append(kept, p)
			}
		}
		g.Permissions = kept

		src := NewKVSource(kv.NewMemory())
		require.NoError(t, src.Save(g))
		assert.ErrorIs(t, NewChecker(src).Verify(), ErrPermissionDenied,
			"missing capability %q must deny", missing)
	}
}

func TestVerifyNarrowOrigins(t *testing.T) {
	g := fullGrants()
	g.Origins = []string{"https://example.com/*"}

	src := NewKVSource(kv.NewMemory())
	require.NoError(t, src.Save(g))
	assert.ErrorIs(t, NewChecker(src).Verify(), ErrPermissionDenied)
}

func TestVerifyAnyBroadOriginSuffices(t *testing.T) {
	for _, broad := range BroadOrigins {
		g := fullGrants()
		g.Origins = []string{"https://example.com/*", broad}

		src := NewKVSource(kv.NewMemory())
		require.NoError(t, src.Save(g))
		assert.NoError(t, NewChecker(src).Verify(), "broad origin %q must pass", broad)
	}
}

func TestVerifyNoOrigins(t *testing.T) {
	g := fullGrants()
	g.Origins = nil

	src := NewKVSource(kv.NewMemory())
	require.NoError(t, src.Save(g))
	assert.ErrorIs(t, NewChecker(src).Verify(), ErrPermissionDenied)
}

func TestSaveRoundTrip(t *testing.T) {
	src := NewKVSource(kv.NewMemory())
	require.NoError(t, src.Save(fullGrants()))

	got, err := src.Granted()
	require.NoError(t, err)
	assert.Equal(t, fullGrants(), got)
}
