// monitor.go - Interactive Machine Monitor: the 16-command debugger CLI
// spec.md §6 specifies (assemble, disass, dump, regs, mmap, bpadd, bpdel,
// bpclear, bplist, go, si, load, save, loglevel, quit, help).
//
// debug_monitor.go's MachineMonitor is a multi-CPU, goroutine/channel,
// Ebiten-render-loop-coupled debugger core built for a very different
// shape of problem (several CPU families sharing one render loop) - it
// does not fit a single synchronously-stepped Z80 and is not adapted here
// (see DESIGN.md). This Monitor instead reuses debug_commands.go's command
// parsing shape (ParseCommand/ParseAddress/EvalAddress) directly against
// the single attached CPU_Z80 and AddressSpace.
//
// License: GPLv3 or later

package core

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Monitor is the interactive debugger attached to one CPU_Z80/Clock pair.
type Monitor struct {
	cpu   *CPU_Z80
	clock *Clock
	out   io.Writer

	asm *Assembler

	breakpoints map[uint16]*Condition
	lastDisasm  uint64
	lastDump    uint64

	// ExitCode is set by a "quit [exitcode]" command (spec.md §6); callers
	// driving RunInteractive/Dispatch from cmd/retrocore may act on it.
	ExitCode int
}

// NewMonitor builds a Monitor attached to cpu, wiring its MonitorHook so
// that ebreak/breakpoint hits divert into onMonitorBreak. The CPU's
// Breakpoints map is filled by syncBreakpoints as breakpoints are added or
// removed.
func NewMonitor(cpu *CPU_Z80, clock *Clock, out io.Writer) *Monitor {
	m := &Monitor{
		cpu:         cpu,
		clock:       clock,
		out:         out,
		breakpoints: make(map[uint16]*Condition),
	}
	cpu.MonitorHook = m.onMonitorBreak
	return m
}

// onMonitorBreak is installed as the CPU's MonitorHook. It reports the
// break and halts the CPU/Clock - spec.md §4.5's "monitor's ebreak path
// returns HALT to the clock when the user quits" describes the Run loop
// returning here; the REPL itself is driven by RunInteractive, not by this
// hook re-entering a nested loop.
func (m *Monitor) onMonitorBreak(c *CPU_Z80) bool {
	fmt.Fprintf(m.out, "break at $%04X\n", c.PC)
	return false
}

// Break requests the monitor take control at the next instruction
// boundary (the "ebreak" flag of spec.md §4.5).
func (m *Monitor) Break() { m.cpu.Ebreak = true }

// evalAddress resolves a monitor address expression: a bare number term,
// a register name, or a sum/difference of terms (debug_commands.go's
// EvalAddress grammar, ported against CPU_Z80.GetRegister).
func (m *Monitor) evalAddress(expr string) (uint64, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, false
	}
	type term struct {
		text string
		op   byte
	}
	var terms []term
	var cur strings.Builder
	curOp := byte(0)
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		if (ch == '+' || ch == '-') && i > 0 {
			if t := strings.TrimSpace(cur.String()); t != "" {
				terms = append(terms, term{t, curOp})
			}
			curOp = ch
			cur.Reset()
			continue
		}
		cur.WriteByte(ch)
	}
	if t := strings.TrimSpace(cur.String()); t != "" {
		terms = append(terms, term{t, curOp})
	}
	if len(terms) == 0 {
		return 0, false
	}
	var result uint64
	for _, t := range terms {
		var val uint64
		if isRegisterName(t.text) {
			val = m.cpu.GetRegister(t.text)
		} else if n, ok := ParseNumber(t.text); ok {
			val = n
		} else {
			return 0, false
		}
		switch t.op {
		case 0, '+':
			result += val
		case '-':
			result -= val
		}
	}
	return result, true
}

// Dispatch executes one command line. Returns true if the monitor session
// should end (the "quit" command).
func (m *Monitor) Dispatch(input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	fields := strings.Fields(input)
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch name {
	case "help", "h", "?":
		m.cmdHelp()
	case "assemble", "a":
		m.cmdAssemble(args)
	case "disass", "d":
		m.cmdDisass(args)
	case "dump", "x":
		m.cmdDump(args)
	case "regs", "r":
		m.cmdRegs()
	case "mmap", "m":
		m.cmdMmap()
	case "bpadd", "b":
		m.cmdBpAdd(args)
	case "bpdel", "bd":
		m.cmdBpDel(args)
	case "bpclear", "bc":
		m.breakpoints = make(map[uint16]*Condition)
		m.syncBreakpoints()
		fmt.Fprintln(m.out, "breakpoints cleared")
	case "bplist", "bl":
		m.cmdBpList()
	case "go", "g":
		m.cmdGo(args)
	case "si", "s":
		m.cmdStepInstruction(args)
	case "load", "l":
		m.cmdLoad(args)
	case "save", "w":
		m.cmdSave(args)
	case "loglevel", "lv":
		m.cmdLogLevel(args)
	case "quit", "q":
		if len(args) >= 1 {
			if n, err := strconv.Atoi(args[0]); err == nil {
				m.ExitCode = n
			}
		}
		return true
	default:
		fmt.Fprintf(m.out, "unknown command %q (try 'help')\n", name)
	}
	return false
}

func (m *Monitor) cmdHelp() {
	fmt.Fprint(m.out, `commands:
  assemble|a  [addr|.]       interactive assembly loop, "." exits
  disass|d    [addr [n]]     disassemble n instructions (default 10)
  dump|x      [addr [n]]     hex dump n bytes (default 128)
  regs|r                     show registers
  mmap|m                     show memory map
  bpadd|b     addr [cond]    add an optionally conditional breakpoint
  bpdel|bd    addr           delete a breakpoint
  bpclear|bc                 clear all breakpoints
  bplist|bl                  list breakpoints
  go|g        [addr]         resume execution, optionally from addr
  si|s        [addr]         single step, optionally from addr
  load|l      file [addr]    load binary (default: current PC)
  save|w      file start end save address range [start, end] to a file
  loglevel|lv [lv]           get/set log level
  quit|q      [exitcode]     exit
  help|h|?                   this help
`)
}

func (m *Monitor) cmdAssemble(args []string) {
	addr := uint64(m.cpu.PC)
	if len(args) >= 1 && args[0] != "." {
		v, ok := m.evalAddress(args[0])
		if !ok {
			fmt.Fprintf(m.out, "bad address %q\n", args[0])
			return
		}
		addr = v
	}
	m.asm = NewAssembler(uint16(addr))
	fmt.Fprintf(m.out, "assembling at $%04X, \".\" to finish\n", addr)
}

// AssembleLine feeds one line of source into an in-progress "assemble"
// session started by cmdAssemble. Returns false once the session (a line
// consisting of just ".") has ended, per spec.md §6.
func (m *Monitor) AssembleLine(line string) bool {
	if m.asm == nil {
		return false
	}
	if strings.TrimSpace(line) == "." {
		m.asm = nil
		return false
	}
	n, err := m.asm.AssembleLine(line, func(addr uint16, value byte) {
		m.cpu.WriteMemory(addr, value)
	})
	if err != nil {
		fmt.Fprintf(m.out, "error: %v\n", err)
		return true
	}
	fmt.Fprintf(m.out, "$%04X  (%d bytes)\n", m.asm.PC()-uint16(n), n)
	return true
}

func (m *Monitor) cmdDisass(args []string) {
	addr := m.lastDisasm
	count := 10
	if len(args) >= 1 {
		if v, ok := m.evalAddress(args[0]); ok {
			addr = v
		}
	}
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			count = n
		}
	}
	lines := disassembleZ80(func(a uint64, size int) []byte {
		buf := make([]byte, size)
		for i := 0; i < size; i++ {
			buf[i] = m.cpu.ReadMemory(uint16(a) + uint16(i))
		}
		return buf
	}, addr, count)
	for _, l := range lines {
		marker := "  "
		if uint16(l.Address) == m.cpu.PC {
			marker = "->"
		}
		fmt.Fprintf(m.out, "%s $%04X  %-11s  %s\n", marker, l.Address, l.HexBytes, l.Mnemonic)
	}
	if len(lines) > 0 {
		m.lastDisasm = lines[len(lines)-1].Address + uint64(lines[len(lines)-1].Size)
	}
}

func (m *Monitor) cmdDump(args []string) {
	addr := m.lastDump
	count := 128
	if len(args) >= 1 {
		if v, ok := m.evalAddress(args[0]); ok {
			addr = v
		}
	}
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			count = n
		}
	}
	for row := uint64(0); row < uint64(count); row += 16 {
		fmt.Fprintf(m.out, "$%04X  ", addr+row)
		var ascii strings.Builder
		for col := uint64(0); col < 16 && row+col < uint64(count); col++ {
			b := m.cpu.ReadMemory(uint16(addr + row + col))
			fmt.Fprintf(m.out, "%02X ", b)
			if b >= 0x20 && b < 0x7F {
				ascii.WriteByte(b)
			} else {
				ascii.WriteByte('.')
			}
		}
		fmt.Fprintf(m.out, " %s\n", ascii.String())
	}
	m.lastDump = addr + uint64(count)
}

func (m *Monitor) cmdRegs() {
	c := m.cpu
	fmt.Fprintf(m.out, "AF=%04X BC=%04X DE=%04X HL=%04X\n", c.AF(), c.BC(), c.DE(), c.HL())
	fmt.Fprintf(m.out, "AF'=%04X BC'=%04X DE'=%04X HL'=%04X\n", c.AF2(), c.BC2(), c.DE2(), c.HL2())
	fmt.Fprintf(m.out, "IX=%04X IY=%04X SP=%04X PC=%04X\n", c.IX, c.IY, c.SP, c.PC)
	fmt.Fprintf(m.out, "I=%02X R=%02X IM=%d IFF1=%v IFF2=%v halted=%v\n", c.I, c.R, c.IM, c.IFF1, c.IFF2, c.Halted)
	fmt.Fprintf(m.out, "flags: S=%v Z=%v H=%v P/V=%v N=%v C=%v\n",
		c.Flag(z80FlagS), c.Flag(z80FlagZ), c.Flag(z80FlagH), c.Flag(z80FlagPV), c.Flag(z80FlagN), c.Flag(z80FlagC))
}

func (m *Monitor) cmdMmap() {
	m.cpu.Bus().Dump(m.out)
}

func (m *Monitor) cmdBpAdd(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(m.out, "usage: bpadd <addr> [condition]")
		return
	}
	addr, ok := m.evalAddress(args[0])
	if !ok {
		fmt.Fprintf(m.out, "bad address %q\n", args[0])
		return
	}
	var cond *Condition
	if len(args) > 1 {
		c, err := ParseCondition(strings.Join(args[1:], ""))
		if err != nil {
			fmt.Fprintf(m.out, "bad condition: %v\n", err)
			return
		}
		cond = c
	}
	m.breakpoints[uint16(addr)] = cond
	m.syncBreakpoints()
	fmt.Fprintf(m.out, "breakpoint set at $%04X\n", addr)
}

func (m *Monitor) cmdBpDel(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(m.out, "usage: bpdel <addr>")
		return
	}
	addr, ok := m.evalAddress(args[0])
	if !ok {
		fmt.Fprintf(m.out, "bad address %q\n", args[0])
		return
	}
	delete(m.breakpoints, uint16(addr))
	m.syncBreakpoints()
	fmt.Fprintf(m.out, "breakpoint removed at $%04X\n", addr)
}

func (m *Monitor) cmdBpList() {
	addrs := make([]uint16, 0, len(m.breakpoints))
	for a := range m.breakpoints {
		addrs = append(addrs, a)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })
	for _, a := range addrs {
		cond := m.breakpoints[a]
		if cond == nil {
			fmt.Fprintf(m.out, "$%04X\n", a)
		} else {
			fmt.Fprintf(m.out, "$%04X  if %s\n", a, cond.String())
		}
	}
}

// syncBreakpoints rewrites the CPU's Breakpoints map from m.breakpoints.
func (m *Monitor) syncBreakpoints() {
	m.cpu.Breakpoints = make(map[uint16]func(*CPU_Z80) bool)
	for addr, cond := range m.breakpoints {
		cond := cond
		m.cpu.Breakpoints[addr] = func(c *CPU_Z80) bool {
			return cond.Eval(c)
		}
	}
}

// cmdGo resumes execution (runs the Clock to completion/halt), optionally
// setting PC to addr first.
func (m *Monitor) cmdGo(args []string) {
	if len(args) >= 1 {
		addr, ok := m.evalAddress(args[0])
		if !ok {
			fmt.Fprintf(m.out, "bad address %q\n", args[0])
			return
		}
		m.cpu.PC = uint16(addr)
	}
	m.cpu.SetRunning(true)
	if _, ok := m.cpu.Breakpoints[m.cpu.PC]; ok {
		// Step off the breakpoint at PC so go does not stop again at once.
		hook := m.cpu.MonitorHook
		m.cpu.MonitorHook = nil
		m.cpu.Step()
		m.cpu.MonitorHook = hook
	}
	fmt.Fprintln(m.out, "running...")
	m.clock.Run()
	fmt.Fprintln(m.out, "stopped")
}

// cmdStepInstruction executes exactly one instruction, optionally setting
// PC to addr first.
func (m *Monitor) cmdStepInstruction(args []string) {
	if len(args) >= 1 {
		addr, ok := m.evalAddress(args[0])
		if !ok {
			fmt.Fprintf(m.out, "bad address %q\n", args[0])
			return
		}
		m.cpu.PC = uint16(addr)
	}
	hook := m.cpu.MonitorHook
	m.cpu.MonitorHook = nil
	m.cpu.SetRunning(true)
	m.cpu.Step()
	m.cpu.MonitorHook = hook
	m.cmdRegs()
}

// cmdLoad loads file's raw bytes into memory at addr, defaulting to the
// current PC if addr is omitted.
func (m *Monitor) cmdLoad(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(m.out, "usage: load file [addr]")
		return
	}
	addr := uint64(m.cpu.PC)
	if len(args) >= 2 {
		v, ok := m.evalAddress(args[1])
		if !ok {
			fmt.Fprintf(m.out, "bad address %q\n", args[1])
			return
		}
		addr = v
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(m.out, "load failed: %v\n", err)
		return
	}
	for i, b := range data {
		m.cpu.WriteMemory(uint16(addr)+uint16(i), b)
	}
	fmt.Fprintf(m.out, "loaded %d bytes at $%04X\n", len(data), addr)
}

// cmdSave writes memory in the inclusive range [start, end] to file.
func (m *Monitor) cmdSave(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(m.out, "usage: save file start end")
		return
	}
	start, ok := m.evalAddress(args[1])
	if !ok {
		fmt.Fprintf(m.out, "bad address %q\n", args[1])
		return
	}
	end, ok := m.evalAddress(args[2])
	if !ok {
		fmt.Fprintf(m.out, "bad address %q\n", args[2])
		return
	}
	if end < start {
		fmt.Fprintf(m.out, "end $%04X is before start $%04X\n", end, start)
		return
	}
	length := end - start + 1
	data := make([]byte, length)
	for i := range data {
		data[i] = m.cpu.ReadMemory(uint16(start) + uint16(i))
	}
	if err := os.WriteFile(args[0], data, 0644); err != nil {
		fmt.Fprintf(m.out, "save failed: %v\n", err)
		return
	}
	fmt.Fprintf(m.out, "saved %d bytes from $%04X\n", length, start)
}

func (m *Monitor) cmdLogLevel(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(m.out, "log level: %s\n", GetLogLevel())
		return
	}
	switch strings.ToLower(args[0]) {
	case "error":
		SetLogLevel(LogError)
	case "warn":
		SetLogLevel(LogWarn)
	case "info":
		SetLogLevel(LogInfo)
	case "debug":
		SetLogLevel(LogDebug)
	default:
		fmt.Fprintf(m.out, "unknown log level %q\n", args[0])
		return
	}
	fmt.Fprintf(m.out, "log level set to %s\n", GetLogLevel())
}

// RunInteractive drives the monitor's REPL against an interactive terminal
// (raw mode, local echo/backspace via TermReader) until "quit" or EOF.
func (m *Monitor) RunInteractive() error {
	term, err := NewTermReader()
	if err != nil {
		return err
	}
	defer term.Close()

	for {
		line, err := term.ReadLine("> ")
		if err != nil {
			return nil
		}
		if m.asm != nil {
			if m.AssembleLine(line) {
				continue
			}
		}
		if m.Dispatch(line) {
			return nil
		}
	}
}
