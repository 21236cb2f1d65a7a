package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestJumpkindClassification tests the predicate groups over every kind.
func TestJumpkindClassification(t *testing.T) {
	assert.True(t, JumpCall.IsCall())
	assert.True(t, JumpSyscall.IsCall())
	assert.True(t, JumpSyscall.IsSyscall())
	assert.False(t, JumpCall.IsSyscall())
	assert.True(t, JumpReturn.IsReturn())
	assert.False(t, JumpBoring.IsCall())
	assert.False(t, JumpBoring.IsReturn())

	for _, j := range []Jumpkind{JumpNoDecode, JumpEmulationFail, JumpMapFail} {
		assert.True(t, j.IsError(), j.String())
		assert.True(t, j.IsBad(), j.String())
		assert.False(t, j.IsSignal(), j.String())
	}
	for _, j := range []Jumpkind{JumpSigIll, JumpSigTrap, JumpSigSegv, JumpSigBus, JumpSigFPEIntDiv, JumpSigFPEIntOvf} {
		assert.True(t, j.IsSignal(), j.String())
		assert.True(t, j.IsBad(), j.String())
		assert.False(t, j.IsError(), j.String())
	}
	assert.False(t, JumpBoring.IsBad())
	assert.False(t, JumpCall.IsBad())
}

// TestJumpkindString tests display names, including the out-of-range fallback.
func TestJumpkindString(t *testing.T) {
	assert.Equal(t, "boring", JumpBoring.String())
	assert.Equal(t, "call", JumpCall.String())
	assert.Equal(t, "sig-fpe-intdiv", JumpSigFPEIntDiv.String())
	assert.Equal(t, "unknown", Jumpkind(0xff).String())
}
