package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	for _, name := range []string{"a", "c", "e"} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_Percentages(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=abc%")

	assert.True(t, m.Enabled("always", 0))
	assert.False(t, m.Enabled("never", 7))
	assert.False(t, m.Enabled("junk", 7))
	assert.False(t, m.Enabled("canary", 0), "anonymous users stay out of partial rollouts")

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("canary", 42))
	}

	enabled := 0
	for uid := uint(1); uid <= 1000; uid++ {
		if m.Enabled("canary", uid) {
			enabled++
		}
	}
	assert.Greater(t, enabled, 100)
	assert.Less(t, enabled, 400)
}

func TestDefaultsAndOverrides(t *testing.T) {
	m := NewManager("")
	assert.True(t, m.Enabled(ICalExport, 1))
	assert.True(t, m.Enabled(GoogleLogin, 1))
	assert.True(t, m.Enabled(AvatarUpload, 1))

	m = NewManager(" ICAL_EXPORT = off , bad ,=on,beta=")
	assert.False(t, m.Enabled(ICalExport, 1))
	assert.Equal(t, []string{AvatarUpload, GoogleLogin, ICalExport}, m.Names())
}

func TestSnapshot(t *testing.T) {
	m := NewManager("x=on,y=off")
	snap := m.Snapshot(9)

	assert.Len(t, snap, 5)
	assert.True(t, snap["x"])
	assert.False(t, snap["y"])
	assert.True(t, snap[ICalExport])
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled(ICalExport, 1))
}
