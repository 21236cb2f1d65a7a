package sim

// Jumpkind classifies the control transfer that produced a program state. It is recorded by the
// transfer engine on every successor state and drives call stack maintenance within a path.
type Jumpkind uint8

const (
	// JumpBoring indicates an ordinary fallthrough or intra-procedural branch.
	JumpBoring Jumpkind = iota

	// JumpCall indicates an ordinary function call.
	JumpCall

	// JumpReturn indicates a return from a function.
	JumpReturn

	// JumpSyscall indicates a system call transfer.
	JumpSyscall

	// JumpNoDecode indicates the engine could not decode the instruction at the target.
	JumpNoDecode

	// JumpEmulationFail indicates the emulation backend failed to carry out the transfer.
	JumpEmulationFail

	// JumpMapFail indicates the target address was not mapped.
	JumpMapFail

	// Signal-raising transfers.
	JumpSigIll
	JumpSigTrap
	JumpSigSegv
	JumpSigBus
	JumpSigFPEIntDiv
	JumpSigFPEIntOvf
)

// jumpkindNames maps each Jumpkind to its display name.
var jumpkindNames = map[Jumpkind]string{
	JumpBoring:        "boring",
	JumpCall:          "call",
	JumpReturn:        "return",
	JumpSyscall:       "syscall",
	JumpNoDecode:      "no-decode",
	JumpEmulationFail: "emulation-failure",
	JumpMapFail:       "map-failure",
	JumpSigIll:        "sig-ill",
	JumpSigTrap:       "sig-trap",
	JumpSigSegv:       "sig-segv",
	JumpSigBus:        "sig-bus",
	JumpSigFPEIntDiv:  "sig-fpe-intdiv",
	JumpSigFPEIntOvf:  "sig-fpe-intovf",
}

// String returns the display name for the Jumpkind.
func (j Jumpkind) String() string {
	if name, ok := jumpkindNames[j]; ok {
		return name
	}
	return "unknown"
}

// IsCall indicates whether the transfer enters a new function, either through an ordinary call or
// a system call.
func (j Jumpkind) IsCall() bool {
	return j == JumpCall || j == JumpSyscall
}

// IsSyscall indicates whether the transfer is a system call.
func (j Jumpkind) IsSyscall() bool {
	return j == JumpSyscall
}

// IsReturn indicates whether the transfer exits the current function.
func (j Jumpkind) IsReturn() bool {
	return j == JumpReturn
}

// IsError indicates whether the transfer represents a decode, emulation, or mapping failure.
func (j Jumpkind) IsError() bool {
	return j == JumpNoDecode || j == JumpEmulationFail || j == JumpMapFail
}

// IsSignal indicates whether the transfer raises a signal.
func (j Jumpkind) IsSignal() bool {
	switch j {
	case JumpSigIll, JumpSigTrap, JumpSigSegv, JumpSigBus, JumpSigFPEIntDiv, JumpSigFPEIntOvf:
		return true
	}
	return false
}

// IsBad indicates whether the transfer represents any kind of failure or signal.
func (j Jumpkind) IsBad() bool {
	return j.IsError() || j.IsSignal()
}
