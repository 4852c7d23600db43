package interp

import "github.com/lookbusy1344/rv32im-sim/instr"

func (m *Machine) execMemAccess(inst *instr.Instruction) error {
	f := inst.MemAccess
	addr := m.Regs[f.Base] + uint32(f.Offset)

	if err := m.checkAccess(addr); err != nil {
		return err
	}

	hit, err := m.fetchForCache(addr)
	if err != nil {
		return err
	}
	if hit {
		m.addWeight(&m.Stats.CacheHit, m.cfg.Weights.CacheHit)
	} else {
		m.addWeight(&m.Stats.MemMiss, m.cfg.Weights.MemMiss)
	}

	switch inst.Op {
	case instr.LB:
		m.setReg(f.Reg, uint32(int32(int8(m.Arena[addr]))))
	case instr.LH:
		v := uint16(m.Arena[addr]) | uint16(m.Arena[addr+1])<<8
		m.setReg(f.Reg, uint32(int32(int16(v))))
	case instr.LW:
		m.setReg(f.Reg, le32At(m.Arena, addr))
	case instr.LBU:
		m.setReg(f.Reg, uint32(m.Arena[addr]))
	case instr.LHU:
		m.setReg(f.Reg, uint32(m.Arena[addr])|uint32(m.Arena[addr+1])<<8)
	case instr.SB:
		m.Arena[addr] = byte(m.Regs[f.Reg])
	case instr.SH:
		v := uint16(m.Regs[f.Reg])
		m.Arena[addr] = byte(v)
		m.Arena[addr+1] = byte(v >> 8)
	case instr.SW:
		putLE32(m.Arena, addr, m.Regs[f.Reg])
	}
	return nil
}

// checkAccess validates an effective address against the arena
// bounds and, when debug tracing is on, against the guard-byte and
// null-page conventions the libc surrogate relies on.
func (m *Machine) checkAccess(addr uint32) error {
	if int(addr)+4 > len(m.Arena) {
		return &InvalidAddressError{Addr: addr, Detail: "access beyond arena end"}
	}
	if m.cfg.KeepDebugInfo {
		if addr == 0 {
			return &InvalidAddressError{Addr: addr, Detail: "access to the null page"}
		}
		if m.InvalidAddrs[addr] {
			return &InvalidAddressError{Addr: addr, Detail: "access to a guard byte"}
		}
	}
	return nil
}

// fetchForCache runs the effective address through the cache model.
// Sub-word accesses near the top of a 4-byte slot are clamped so the
// word fetch itself never runs past the arena end.
func (m *Machine) fetchForCache(addr uint32) (bool, error) {
	cacheAddr := addr &^ 3
	if int(cacheAddr)+4 > len(m.Arena) {
		cacheAddr = uint32(len(m.Arena) - 4)
	}
	_, hit, err := m.Cache.FetchWord(m.Arena, cacheAddr)
	if err != nil {
		return false, &InvalidAddressError{Addr: cacheAddr, Detail: err.Error()}
	}
	return hit, nil
}

func putLE32(mem []byte, addr, val uint32) {
	mem[addr] = byte(val)
	mem[addr+1] = byte(val >> 8)
	mem[addr+2] = byte(val >> 16)
	mem[addr+3] = byte(val >> 24)
}
