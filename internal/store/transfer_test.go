package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionvault/sessionvault/internal/shared/types"
)

func TestExportScopeAll(t *testing.T) {
	m := newTestManager(t)

	m.Save("example.com", "a", nil, snapshot())
	m.Save("other.org", "b", nil, snapshot())

	doc := m.Export(types.ScopeAll, "example.com")
	assert.Equal(t, types.ExportVersion, doc.Version)
	assert.NotEmpty(t, doc.ExportDate)
	assert.Len(t, doc.Sessions, 2)
}

func TestExportScopeCurrentFiltersByDomain(t *testing.T) {
	m := newTestManager(t)

	m.Save("example.com", "a", nil, snapshot())
	m.Save("example.com", "b", nil, snapshot())
	m.Save("other.org", "c", nil, snapshot())

	doc := m.Export(types.ScopeCurrent, "example.com")
	require.Len(t, doc.Sessions, 2)
	for _, s := range doc.Sessions {
		assert.Equal(t, "example.com", s.Domain)
	}
}

func TestExportEmptyCollection(t *testing.T) {
	m := newTestManager(t)

	doc := m.Export(types.ScopeAll, "")
	assert.NotNil(t, doc.Sessions)
	assert.Empty(t, doc.Sessions)
}

func TestExportJSONIsPrettyPrinted(t *testing.T) {
	m := newTestManager(t)
	m.Save("example.com", "a", nil, snapshot())

	out, err := m.ExportJSON(types.ScopeAll, "")
	require.NoError(t, err)
	assert.Contains(t, out, "\n  \"version\"")

	var doc types.ExportDocument
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Len(t, doc.Sessions, 1)
}

func TestImportRoundTrip(t *testing.T) {
	source := newTestManager(t)
	a, _ := source.Save("example.com", "a", nil, snapshot())
	b, _ := source.Save("other.org", "b", nil, snapshot())

	out, err := source.ExportJSON(types.ScopeAll, "")
	require.NoError(t, err)

	dest := newTestManager(t)
	require.NoError(t, dest.Import([]byte(out)))

	imported := dest.Sessions()
	require.Len(t, imported, 2)

	byName := map[string]types.Session{}
	for _, s := range imported {
		byName[s.Name] = s
	}
	assert.Equal(t, "example.com", byName["a"].Domain)
	assert.Equal(t, "other.org", byName["b"].Domain)
	assert.Equal(t, a.Order, byName["a"].Order)
	assert.Equal(t, b.Order, byName["b"].Order)
	assert.Equal(t, a.Cookies, byName["a"].Cookies)

	// Imported ids are always minted fresh.
	assert.NotEqual(t, a.ID, byName["a"].ID)
	assert.NotEqual(t, b.ID, byName["b"].ID)
}

func TestImportIDCollisionNeverSurvives(t *testing.T) {
	m := newTestManager(t)
	existing, _ := m.Save("example.com", "native", nil, snapshot())

	payload := types.ImportPayload{Sessions: []types.Session{{
		ID:     existing.ID,
		Name:   "impostor",
		Domain: "example.com",
		Order:  5,
	}}}
	require.NoError(t, m.ImportNew(payload))

	ids := map[string]int{}
	for _, s := range m.Sessions() {
		ids[s.ID]++
	}
	require.Len(t, m.Sessions(), 2)
	for id, count := range ids {
		assert.Equal(t, 1, count, "duplicate id %s", id)
	}
}

func TestImportKeepsOrdersVerbatim(t *testing.T) {
	m := newTestManager(t)

	payload := types.ImportPayload{Sessions: []types.Session{
		{ID: "x", Name: "a", Domain: "example.com", Order: 7},
		{ID: "y", Name: "b", Domain: "example.com", Order: 2},
	}}
	require.NoError(t, m.ImportNew(payload))

	sessions := m.ForDomain("example.com")
	require.Len(t, sessions, 2)
	assert.Equal(t, 2, sessions[0].Order)
	assert.Equal(t, 7, sessions[1].Order)
}

func TestImportDefaultsMissingPayloadFields(t *testing.T) {
	m := newTestManager(t)

	doc := `{"version":"1.0","exportDate":"2024-01-01T00:00:00Z","sessions":[
		{"id":"x","name":"bare","domain":"example.com","order":1}
	]}`
	require.NoError(t, m.Import([]byte(doc)))

	sessions := m.Sessions()
	require.Len(t, sessions, 1)
	assert.NotNil(t, sessions[0].Cookies)
	assert.NotNil(t, sessions[0].LocalStorage)
	assert.NotNil(t, sessions[0].SessionStorage)
	assert.NotZero(t, sessions[0].CreatedAt)
	assert.NotZero(t, sessions[0].LastUsed)
}

func TestImportMalformedJSON(t *testing.T) {
	m := newTestManager(t)
	assert.ErrorIs(t, m.Import([]byte("{half")), ErrInvalidJSON)
	assert.Empty(t, m.Sessions())
}

func TestImportMissingSessionsArray(t *testing.T) {
	m := newTestManager(t)
	assert.ErrorIs(t, m.Import([]byte(`{"version":"1.0"}`)), ErrInvalidImport)
}

func TestImportEmptySessionsArrayIsNoOp(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Import([]byte(`{"version":"1.0","sessions":[]}`)))
	assert.Empty(t, m.Sessions())
}

func TestImportInvalidRecordFailsFast(t *testing.T) {
	m := newTestManager(t)
	m.Save("example.com", "native", nil, snapshot())

	doc := `{"version":"1.0","sessions":[
		{"id":"x","name":"good","domain":"example.com","order":1},
		{"id":"y","name":"","domain":"example.com","order":2}
	]}`
	assert.ErrorIs(t, m.Import([]byte(doc)), ErrInvalidRecord)
	assert.Len(t, m.Sessions(), 1, "a bad record must leave the collection untouched")
}

func TestImportNewReplaceMode(t *testing.T) {
	m := newTestManager(t)
	m.Save("example.com", "old", nil, snapshot())

	payload := types.ImportPayload{
		Mode: types.ImportModeReplace,
		Sessions: []types.Session{
			{ID: "x", Name: "fresh", Domain: "other.org", Order: 1},
		},
	}
	require.NoError(t, m.ImportNew(payload))

	sessions := m.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "fresh", sessions[0].Name)

	_, ok := m.ActiveFor("example.com")
	assert.False(t, ok, "replace mode empties the active map")
}

func TestImportNewDefaultsToMerge(t *testing.T) {
	m := newTestManager(t)
	m.Save("example.com", "native", nil, snapshot())

	payload := types.ImportPayload{Sessions: []types.Session{
		{ID: "x", Name: "added", Domain: "example.com", Order: 2},
	}}
	require.NoError(t, m.ImportNew(payload))

	assert.Len(t, m.Sessions(), 2)
	_, ok := m.ActiveFor("example.com")
	assert.True(t, ok, "merge mode keeps active entries")
}
