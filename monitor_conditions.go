// monitor_conditions.go - Breakpoint condition grammar for the Monitor.
//
// Adapted from debug_conditions.go's BreakpointCondition shape, extended per
// spec.md §6: both sides of the comparison may be a bare numeric literal, a
// register name, or a dereference of either (*nn, *reg), and the operator
// set adds the bitwise &,| forms alongside the comparisons debug_conditions.go
// already supported. Per spec.md §9's design note, a condition string is
// parsed once into a compiled closure rather than re-parsed on every
// breakpoint hit.
//
// License: GPLv3 or later

package core

import (
	"fmt"
	"strconv"
	"strings"
)

// conditionOperand is one side of a breakpoint condition.
type conditionOperand struct {
	deref    bool
	register string // empty if this operand is a literal
	literal  uint64
}

func (op conditionOperand) resolve(cpu *CPU_Z80) uint64 {
	var v uint64
	if op.register != "" {
		v = cpu.GetRegister(op.register)
	} else {
		v = op.literal
	}
	if op.deref {
		v = uint64(cpu.ReadMemory(uint16(v)))
	}
	return v
}

// Condition is a compiled breakpoint predicate: a closure over its two
// operands and comparison operator, built once by ParseCondition.
type Condition struct {
	text string
	eval func(cpu *CPU_Z80) bool
}

// String returns the original condition text, as typed by the user.
func (c *Condition) String() string { return c.text }

// Eval evaluates the condition against the CPU's current state.
func (c *Condition) Eval(cpu *CPU_Z80) bool {
	if c == nil {
		return true
	}
	return c.eval(cpu)
}

var conditionOps = []string{"==", "!=", "<=", ">=", "&", "|", "<", ">"}

// ParseCondition parses a condition expression such as:
//
//	a==$ff
//	*pc!=#4096
//	hl&$f0
//	*$c000==*hl
//
// into a Condition closure. Returns an error (wrapped in ErrInvalidArgument)
// if the text does not match the grammar.
func ParseCondition(text string) (*Condition, error) {
	trimmed := strings.TrimSpace(text)
	var opStr string
	var lhsText, rhsText string
	for _, op := range conditionOps {
		if idx := strings.Index(trimmed, op); idx >= 0 {
			opStr = op
			lhsText = trimmed[:idx]
			rhsText = trimmed[idx+len(op):]
			break
		}
	}
	if opStr == "" {
		return nil, fmt.Errorf("%w: condition %q has no recognized operator", ErrInvalidArgument, text)
	}

	lhs, err := parseConditionOperand(strings.TrimSpace(lhsText))
	if err != nil {
		return nil, err
	}
	rhs, err := parseConditionOperand(strings.TrimSpace(rhsText))
	if err != nil {
		return nil, err
	}

	var cmp func(a, b uint64) bool
	switch opStr {
	case "==":
		cmp = func(a, b uint64) bool { return a == b }
	case "!=":
		cmp = func(a, b uint64) bool { return a != b }
	case "<=":
		cmp = func(a, b uint64) bool { return a <= b }
	case ">=":
		cmp = func(a, b uint64) bool { return a >= b }
	case "<":
		cmp = func(a, b uint64) bool { return a < b }
	case ">":
		cmp = func(a, b uint64) bool { return a > b }
	case "&":
		cmp = func(a, b uint64) bool { return a&b != 0 }
	case "|":
		cmp = func(a, b uint64) bool { return a|b != 0 }
	}

	return &Condition{
		text: trimmed,
		eval: func(cpu *CPU_Z80) bool {
			return cmp(lhs.resolve(cpu), rhs.resolve(cpu))
		},
	}, nil
}

func parseConditionOperand(s string) (conditionOperand, error) {
	if s == "" {
		return conditionOperand{}, fmt.Errorf("%w: empty operand", ErrInvalidArgument)
	}
	op := conditionOperand{}
	if strings.HasPrefix(s, "*") {
		op.deref = true
		s = s[1:]
	}
	if isRegisterName(s) {
		op.register = strings.ToLower(s)
		return op, nil
	}
	n, ok := ParseNumber(s)
	if !ok {
		return conditionOperand{}, fmt.Errorf("%w: %q is neither a register nor a number", ErrInvalidNumber, s)
	}
	op.literal = n
	return op, nil
}

var z80RegisterNames = map[string]bool{
	"a": true, "f": true, "b": true, "c": true, "d": true, "e": true, "h": true, "l": true,
	"af": true, "bc": true, "de": true, "hl": true,
	"a'": true, "f'": true, "af'": true, "bc'": true, "de'": true, "hl'": true,
	"ix": true, "iy": true, "ixh": true, "ixl": true, "iyh": true, "iyl": true,
	"sp": true, "pc": true, "i": true, "r": true,
}

func isRegisterName(s string) bool {
	return z80RegisterNames[strings.ToLower(s)]
}

// ParseNumber parses a monitor numeric literal (spec.md §6): `#decimal`,
// `$hex`, the combined `#$hex` form, or a bare hex string (the monitor's
// default radix is hexadecimal).
func ParseNumber(s string) (uint64, bool) {
	if s == "" {
		return 0, false
	}
	switch {
	case strings.HasPrefix(s, "#$"):
		n, err := strconv.ParseUint(s[2:], 16, 64)
		return n, err == nil
	case strings.HasPrefix(s, "#"):
		n, err := strconv.ParseUint(s[1:], 10, 64)
		return n, err == nil
	case strings.HasPrefix(s, "$"):
		n, err := strconv.ParseUint(s[1:], 16, 64)
		return n, err == nil
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		n, err := strconv.ParseUint(s[2:], 16, 64)
		return n, err == nil
	default:
		n, err := strconv.ParseUint(s, 16, 64)
		return n, err == nil
	}
}
