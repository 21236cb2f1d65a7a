package sim

// Statement is one statement of a lifted block, as reported by the program-metadata provider.
// Statements marking an instruction boundary carry the instruction's address.
type Statement struct {
	// InsnStart indicates the statement marks the start of a machine instruction.
	InsnStart bool

	// Addr is the address of the instruction the statement belongs to. Only meaningful on
	// boundary statements.
	Addr uint64
}

// Block is the disassembly of one lifted block.
type Block struct {
	// Addr is the address the block was lifted at.
	Addr uint64

	// Statements lists the block's lifted statements in order.
	Statements []Statement
}

// InsnAddr resolves the statement at stmtIdx to the address of its enclosing instruction by
// scanning backwards for the nearest instruction boundary. Returns false when the index is out of
// range or no boundary precedes it.
func (b *Block) InsnAddr(stmtIdx int) (uint64, bool) {
	if stmtIdx < 0 || stmtIdx >= len(b.Statements) {
		return 0, false
	}
	for i := stmtIdx; i >= 0; i-- {
		if b.Statements[i].InsnStart {
			return b.Statements[i].Addr, true
		}
	}
	return 0, false
}

// Metadata is the program-metadata provider contract: read-only facts about the loaded binary.
// Implementations must be safe for concurrent use, as sibling paths share one provider.
type Metadata interface {
	// Block returns the disassembly of the block at addr.
	Block(addr uint64) (*Block, error)

	// RegisterOffset maps a register name to its register file offset.
	RegisterOffset(name string) (uint64, bool)
}

// Project bundles the external collaborators a path needs: the transfer engine and the
// program-metadata provider. Sibling paths share one Project; both collaborators are read-only
// from the paths' perspective.
type Project struct {
	Engine   Engine
	Metadata Metadata
}
