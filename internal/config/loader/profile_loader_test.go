package loader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const sampleProfiles = `
active: steady
profiles:
  steady:
    margin_usd: 1000
    leverage: 5
    tp_offset: 800
    sl_offset: 250
  swing:
    margin_usd: 5000
    leverage: 20
`

func writeProfileFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile file: %v", err)
	}
}

func newTestLoader(t *testing.T, body string) (*ProfileLoader, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	writeProfileFile(t, path, body)
	l, err := NewProfileLoader(path)
	if err != nil {
		t.Fatalf("NewProfileLoader: %v", err)
	}
	return l, path
}

func TestProfileLoaderReadsProfiles(t *testing.T) {
	l, _ := newTestLoader(t, sampleProfiles)

	snap := l.Snapshot()
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, "steady", snap.Active)
	assert.Len(t, snap.Profiles, 2)

	active, ok := snap.ActiveProfile()
	assert.True(t, ok)
	assert.Equal(t, "steady", active.Name)
	assert.Equal(t, 1000.0, active.MarginUSD)
	assert.Equal(t, 5, active.Leverage)
	assert.Equal(t, 800.0, active.TPOffset)
	assert.Equal(t, 250.0, active.SLOffset)

	// swing 未设置 offsets，保持 0 让调用方回退到 trading 配置。
	swing := snap.Profiles["swing"]
	assert.Equal(t, 5000.0, swing.MarginUSD)
	assert.Equal(t, 0.0, swing.TPOffset)
}

func TestProfileLoaderRejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	writeProfileFile(t, path, `
profiles:
  steady:
    margin_us: 1000
`)

	_, err := NewProfileLoader(path)
	assert.ErrorContains(t, err, "schema validation failed")
}

func TestProfileLoaderKeepsSnapshotOnBadReload(t *testing.T) {
	l, path := newTestLoader(t, sampleProfiles)

	writeProfileFile(t, path, "profiles: {steady: {leverage: \"ten\"}}\n")
	err := l.reload()
	assert.Error(t, err)

	snap := l.Snapshot()
	assert.Equal(t, int64(1), snap.Version, "failed reload must not advance the snapshot")
	assert.Equal(t, 5, snap.Profiles["steady"].Leverage)
}

func TestProfileLoaderReloadBumpsVersion(t *testing.T) {
	l, path := newTestLoader(t, sampleProfiles)

	writeProfileFile(t, path, `
active: swing
profiles:
  swing:
    margin_usd: 7500
`)
	if err := l.reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	snap := l.Snapshot()
	assert.Equal(t, int64(2), snap.Version)
	assert.Equal(t, "swing", snap.Active)
	active, ok := snap.ActiveProfile()
	assert.True(t, ok)
	assert.Equal(t, 7500.0, active.MarginUSD)
}

func TestProfileLoaderSubscribeDeliversCurrentSnapshot(t *testing.T) {
	l, _ := newTestLoader(t, sampleProfiles)

	got := make(chan Snapshot, 1)
	l.Subscribe(func(s Snapshot) { got <- s })

	select {
	case snap := <-got:
		assert.Equal(t, int64(1), snap.Version)
		assert.Equal(t, "steady", snap.Active)
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the initial snapshot")
	}
}

func TestProfileLoaderActiveMissing(t *testing.T) {
	l, _ := newTestLoader(t, `
active: nosuch
profiles:
  steady:
    margin_usd: 1000
`)

	_, ok := l.Snapshot().ActiveProfile()
	assert.False(t, ok)
}

func TestProfileLoaderEmptyFile(t *testing.T) {
	l, _ := newTestLoader(t, "")

	snap := l.Snapshot()
	assert.Empty(t, snap.Profiles)
	_, ok := snap.ActiveProfile()
	assert.False(t, ok)
}
