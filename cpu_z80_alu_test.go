package core

import "testing"

func TestZ80ALUAdd(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{0x80}) // ADD A,B
	rig.cpu.A = 0x0F
	rig.cpu.B = 0x01

	rig.cpu.Step()

	requireZ80EqualU8(t, "A", rig.cpu.A, 0x10)
	requireZ80EqualU8(t, "F", rig.cpu.F, 0x10)
}

func TestZ80ALUAddOverflow(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{0x80}) // ADD A,B
	rig.cpu.A = 0x7F
	rig.cpu.B = 0x01

	rig.cpu.Step()

	requireZ80EqualU8(t, "A", rig.cpu.A, 0x80)
	requireZ80EqualU8(t, "F", rig.cpu.F, 0x94)
}

func TestZ80ALUSub(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{0x90}) // SUB B
	rig.cpu.A = 0x10
	rig.cpu.B = 0x01

	rig.cpu.Step()

	requireZ80EqualU8(t, "A", rig.cpu.A, 0x0F)
	requireZ80EqualU8(t, "F", rig.cpu.F, 0x1A)
}

func TestZ80JPImmediate(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{0xC3, 0x34, 0x12}) // JP 0x1234

	rig.cpu.Step()

	requireZ80EqualU16(t, "PC", rig.cpu.PC, 0x1234)
}

func TestZ80CallAndRet(t *testing.T) {
	rig := newCPUZ80TestRig()
	rig.resetAndLoad(0x0000, []byte{0xCD, 0x10, 0x00}) // CALL 0x0010
	rig.bus.Write(0x0010, 0xC9)                        // RET
	rig.cpu.SP = 0xFFFE

	rig.cpu.Step() // CALL
	requireZ80EqualU16(t, "PC after CALL", rig.cpu.PC, 0x0010)

	rig.cpu.Step() // RET
	requireZ80EqualU16(t, "PC after RET", rig.cpu.PC, 0x0003)
}
