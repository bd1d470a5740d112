package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDeviceID(t *testing.T) {
	r := NewLockedRand(11)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id := NewDeviceID(r)
		assert.Len(t, id, 13)
		assert.True(t, ValidDeviceID(id), id)
		seen[id] = true
	}
	assert.Len(t, seen, 200)
}

func TestValidDeviceID(t *testing.T) {
	assert.True(t, ValidDeviceID("dev-0a1b2c3d4"))
	assert.False(t, ValidDeviceID("dev-0A1B2C3D4"))
	assert.False(t, ValidDeviceID("dev-short"))
	assert.False(t, ValidDeviceID("abc-0a1b2c3d4"))
	assert.False(t, ValidDeviceID(""))
}
