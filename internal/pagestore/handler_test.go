package pagestore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePage runs payloads in a goja VM with DOM storage shims, so the tests
// exercise the exact scripts a real page would execute.
type fakePage struct {
	vm *goja.Runtime
}

const storageShim = `
function __makeStorage() {
  const data = new Map();
  return {
    get length() { return data.size; },
    key(i) {
      const keys = Array.from(data.keys());
      return i >= 0 && i < keys.length ? keys[i] : null;
    },
    getItem(k) { return data.has(String(k)) ? data.get(String(k)) : null; },
    setItem(k, v) { data.set(String(k), String(v)); },
    removeItem(k) { data.delete(String(k)); },
    clear() { data.clear(); },
  };
}
var localStorage = __makeStorage();
var sessionStorage = __makeStorage();
`

func newFakePage(t *testing.T) *fakePage {
	t.Helper()
	vm := goja.New()
	_, err := vm.RunString(storageShim)
	require.NoError(t, err)
	return &fakePage{vm: vm}
}

func (p *fakePage) Eval(_ context.Context, _ string, expression string) (json.RawMessage, error) {
	value, err := p.vm.RunString("JSON.stringify(" + expression + ")")
	if err != nil {
		return nil, err
	}
	return json.RawMessage(value.String()), nil
}

func (p *fakePage) seed(t *testing.T, area, key, value string) {
	t.Helper()
	data, _ := json.Marshal([]string{key, value})
	_, err := p.vm.RunString(area + ".setItem.apply(null, " + string(data) + ")")
	require.NoError(t, err)
}

func (p *fakePage) get(t *testing.T, area, key string) string {
	t.Helper()
	keyJSON, _ := json.Marshal(key)
	value, err := p.vm.RunString("String(" + area + ".getItem(" + string(keyJSON) + "))")
	require.NoError(t, err)
	return value.String()
}

func (p *fakePage) length(t *testing.T, area string) int {
	t.Helper()
	value, err := p.vm.RunString(area + ".length")
	require.NoError(t, err)
	return int(value.ToInteger())
}

// failingRunner simulates a transport failure (tab gone, script timeout).
type failingRunner struct{}

func (failingRunner) Eval(context.Context, string, string) (json.RawMessage, error) {
	return nil, errors.New("no such tab")
}

func TestExtract(t *testing.T) {
	page := newFakePage(t)
	page.seed(t, "localStorage", "token", "abc123")
	page.seed(t, "localStorage", "theme", "dark")
	page.seed(t, "sessionStorage", "csrf", "xyz")

	h := NewHandler(page, nil)
	data := h.Extract(context.Background(), "tab-1")

	assert.Equal(t, map[string]string{"token": "abc123", "theme": "dark"}, data.Local)
	assert.Equal(t, map[string]string{"csrf": "xyz"}, data.Session)
}

func TestExtractEmptyPage(t *testing.T) {
	h := NewHandler(newFakePage(t), nil)
	data := h.Extract(context.Background(), "tab-1")

	assert.Empty(t, data.Local)
	assert.Empty(t, data.Session)
	assert.NotNil(t, data.Local)
	assert.NotNil(t, data.Session)
}

func TestExtractTransportFailureAbsorbed(t *testing.T) {
	h := NewHandler(failingRunner{}, nil)
	data := h.Extract(context.Background(), "tab-1")

	assert.NotNil(t, data.Local)
	assert.NotNil(t, data.Session)
	assert.Empty(t, data.Local)
}

func TestInjectClearsBeforeWriting(t *testing.T) {
	page := newFakePage(t)
	page.seed(t, "localStorage", "stale", "old")
	page.seed(t, "sessionStorage", "stale", "old")

	h := NewHandler(page, nil)
	err := h.Inject(context.Background(), "tab-1", Data{
		Local:   map[string]string{"token": "new"},
		Session: map[string]string{"csrf": "fresh"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, page.length(t, "localStorage"))
	assert.Equal(t, 1, page.length(t, "sessionStorage"))
	assert.Equal(t, "new", page.get(t, "localStorage", "token"))
	assert.Equal(t, "fresh", page.get(t, "sessionStorage", "csrf"))
	assert.Equal(t, "null", page.get(t, "localStorage", "stale"))
}

func TestInjectNilMaps(t *testing.T) {
	page := newFakePage(t)
	page.seed(t, "localStorage", "stale", "old")

	h := NewHandler(page, nil)
	require.NoError(t, h.Inject(context.Background(), "tab-1", Data{}))
	assert.Equal(t, 0, page.length(t, "localStorage"))
}

func TestInjectAwkwardValues(t *testing.T) {
	page := newFakePage(t)
	h := NewHandler(page, nil)

	local := map[string]string{}
	local[`key"with'quotes`] = `{"nested":"json"}`
	local["unicode-☃"] = "line1\nline2"
	local["</script>"] = "`backticks` and ${interpolation}"
	require.NoError(t, h.Inject(context.Background(), "tab-1", Data{Local: local}))

	h2 := NewHandler(page, nil)
	got := h2.Extract(context.Background(), "tab-1")
	assert.Equal(t, local, got.Local)
}

func TestInjectTransportFailure(t *testing.T) {
	h := NewHandler(failingRunner{}, nil)
	err := h.Inject(context.Background(), "tab-1", Data{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to restore storage data")
}

func TestClear(t *testing.T) {
	page := newFakePage(t)
	page.seed(t, "localStorage", "a", "1")
	page.seed(t, "sessionStorage", "b", "2")

	h := NewHandler(page, nil)
	require.NoError(t, h.Clear(context.Background(), "tab-1"))

	assert.Equal(t, 0, page.length(t, "localStorage"))
	assert.Equal(t, 0, page.length(t, "sessionStorage"))
}

func TestClearTransportFailure(t *testing.T) {
	h := NewHandler(failingRunner{}, nil)
	err := h.Clear(context.Background(), "tab-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to clear storage data")
}

func TestExtractRoundTrip(t *testing.T) {
	page := newFakePage(t)
	h := NewHandler(page, nil)

	want := Data{
		Local:   map[string]string{"token": "abc", "user": "malloc"},
		Session: map[string]string{"tab-state": "open"},
	}
	require.NoError(t, h.Inject(context.Background(), "tab-1", want))

	got := h.Extract(context.Background(), "tab-1")
	assert.Equal(t, want, got)
}
