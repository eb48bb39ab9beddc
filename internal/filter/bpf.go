package filter

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/net/bpf"

	"firestige.xyz/hdrview/internal/core"
)

// BPF runs a classic BPF program over the raw packet bytes. A packet
// matches when the program returns a non-zero length.
type BPF struct {
	vm    *bpf.VM
	insns int
}

// ParseBPF parses the decimal instruction listing printed by
// `tcpdump -ddd`: an instruction count followed by one "code jt jf k"
// quadruple per line. Commas may separate the lines, as in the form taken
// by iptables and tc.
func ParseBPF(text string) ([]bpf.RawInstruction, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == ',' || r == '\r' })
	var lines []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			lines = append(lines, f)
		}
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty bpf program", core.ErrConfigInvalid)
	}

	count, err := strconv.Atoi(lines[0])
	if err != nil {
		return nil, fmt.Errorf("%w: bpf instruction count %q: %v", core.ErrConfigInvalid, lines[0], err)
	}
	if count != len(lines)-1 {
		return nil, fmt.Errorf("%w: bpf program announces %d instructions, has %d", core.ErrConfigInvalid, count, len(lines)-1)
	}

	raw := make([]bpf.RawInstruction, count)
	for i, line := range lines[1:] {
		var v [4]uint64
		parts := strings.Fields(line)
		if len(parts) != 4 {
			return nil, fmt.Errorf("%w: bpf instruction %d: want 4 fields, got %q", core.ErrConfigInvalid, i, line)
		}
		for j, bits := range [4]int{16, 8, 8, 32} {
			if v[j], err = strconv.ParseUint(parts[j], 10, bits); err != nil {
				return nil, fmt.Errorf("%w: bpf instruction %d: %v", core.ErrConfigInvalid, i, err)
			}
		}
		raw[i] = bpf.RawInstruction{Op: uint16(v[0]), Jt: uint8(v[1]), Jf: uint8(v[2]), K: uint32(v[3])}
	}
	return raw, nil
}

// NewBPF validates raw and prepares it for execution.
func NewBPF(raw []bpf.RawInstruction) (*BPF, error) {
	insns := make([]bpf.Instruction, len(raw))
	for i, ri := range raw {
		ins := ri.Disassemble()
		if _, unknown := ins.(bpf.RawInstruction); unknown {
			return nil, fmt.Errorf("%w: bpf instruction %d: unknown opcode 0x%04x", core.ErrConfigInvalid, i, ri.Op)
		}
		insns[i] = ins
	}
	vm, err := bpf.NewVM(insns)
	if err != nil {
		return nil, fmt.Errorf("%w: bpf program: %v", core.ErrConfigInvalid, err)
	}
	return &BPF{vm: vm, insns: len(insns)}, nil
}

// CompileBPF parses and validates a `tcpdump -ddd` listing.
func CompileBPF(text string) (*BPF, error) {
	raw, err := ParseBPF(text)
	if err != nil {
		return nil, err
	}
	return NewBPF(raw)
}

// LoadBPF reads a `tcpdump -ddd` listing from path.
func LoadBPF(path string) (*BPF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bpf program: %w", err)
	}
	return CompileBPF(string(data))
}

func (b *BPF) Match(pkt core.RawPacket) bool {
	n, err := b.vm.Run(pkt.Data)
	return err == nil && n > 0
}

// Len returns the number of instructions.
func (b *BPF) Len() int { return b.insns }
