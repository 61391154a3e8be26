// monitor_inspect.go - Register/memory inspection surface for the Monitor.
//
// Grounded on debug_commands.go's DebuggableCPU interface: the monitor and
// the breakpoint-condition evaluator need to read a register by name or a
// byte of memory by address without depending on the full CPU_Z80 struct
// layout. CPU_Z80 implements that surface directly rather than through a
// separate interface type, since it is the only CPU family in scope.
//
// License: GPLv3 or later

package core

import "strings"

// GetRegister returns the current value of the named Z80 register (case
// insensitive). Unknown names return 0 - callers that need to distinguish
// "unknown register" from "register is zero" should validate the name
// against isRegisterName first.
func (c *CPU_Z80) GetRegister(name string) uint64 {
	switch strings.ToLower(name) {
	case "a":
		return uint64(c.A)
	case "f":
		return uint64(c.F)
	case "b":
		return uint64(c.B)
	case "c":
		return uint64(c.C)
	case "d":
		return uint64(c.D)
	case "e":
		return uint64(c.E)
	case "h":
		return uint64(c.H)
	case "l":
		return uint64(c.L)
	case "af":
		return uint64(c.AF())
	case "bc":
		return uint64(c.BC())
	case "de":
		return uint64(c.DE())
	case "hl":
		return uint64(c.HL())
	case "a'":
		return uint64(c.A2)
	case "f'":
		return uint64(c.F2)
	case "af'":
		return uint64(c.AF2())
	case "bc'":
		return uint64(c.BC2())
	case "de'":
		return uint64(c.DE2())
	case "hl'":
		return uint64(c.HL2())
	case "ix":
		return uint64(c.IX)
	case "iy":
		return uint64(c.IY)
	case "ixh":
		return uint64(byte(c.IX >> 8))
	case "ixl":
		return uint64(byte(c.IX))
	case "iyh":
		return uint64(byte(c.IY >> 8))
	case "iyl":
		return uint64(byte(c.IY))
	case "sp":
		return uint64(c.SP)
	case "pc":
		return uint64(c.PC)
	case "i":
		return uint64(c.I)
	case "r":
		return uint64(c.R)
	default:
		return 0
	}
}

// SetRegister stores value into the named Z80 register (case insensitive).
// Unknown names are a no-op.
func (c *CPU_Z80) SetRegister(name string, value uint64) {
	switch strings.ToLower(name) {
	case "a":
		c.A = byte(value)
	case "f":
		c.F = byte(value)
	case "b":
		c.B = byte(value)
	case "c":
		c.C = byte(value)
	case "d":
		c.D = byte(value)
	case "e":
		c.E = byte(value)
	case "h":
		c.H = byte(value)
	case "l":
		c.L = byte(value)
	case "af":
		c.SetAF(uint16(value))
	case "bc":
		c.SetBC(uint16(value))
	case "de":
		c.SetDE(uint16(value))
	case "hl":
		c.SetHL(uint16(value))
	case "ix":
		c.IX = uint16(value)
	case "iy":
		c.IY = uint16(value)
	case "sp":
		c.SP = uint16(value)
	case "pc":
		c.PC = uint16(value)
	case "i":
		c.I = byte(value)
	case "r":
		c.R = byte(value)
	}
}

// ReadMemory peeks one byte through the CPU's bus without disturbing bus
// shadow state or triggering clear-on-read device side effects.
func (c *CPU_Z80) ReadMemory(addr uint16) byte {
	return c.bus.Peek(addr)
}

// WriteMemory writes one byte through the CPU's bus, exactly as an
// instruction's own memory write would.
func (c *CPU_Z80) WriteMemory(addr uint16, value byte) {
	c.bus.Write(addr, value)
}

// Bus returns the CPU's attached AddressSpace, for monitor commands (dump,
// mmap) that need to address memory directly.
func (c *CPU_Z80) Bus() *AddressSpace {
	return c.bus
}
