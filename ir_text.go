// ir_text.go - lossless textual IR syntax for round-tripping (spec.md §4.3, §8).
//
// One instruction per line, block labels terminated by a colon, values
// introduced as %name, types always explicit. Grounded on
// original_source/src/jit/ir/ir_read.c's syntax (the same three rules).
package dreamcast

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// Format renders fn as text. The round trip Parse(Format(fn)) reproduces
// fn modulo ordering-irrelevant details (e.g. unused local IDs); it is
// lossy only for post-allocation register assignments, which this
// textual form does not represent at all (spec.md §4.3).
func Format(fn *Function) string {
	var sb strings.Builder
	ids := map[*Value]int{}
	next := 0
	nameOf := func(v *Value) string {
		if v.Kind == ValueLocalRef {
			return fmt.Sprintf("local%d", v.Local.ID)
		}
		if v.Kind == ValueConstant {
			return formatConst(v)
		}
		id, ok := ids[v]
		if !ok {
			id = next
			next++
			ids[v] = id
		}
		return fmt.Sprintf("%%%d", id)
	}

	for _, blk := range fn.Blocks {
		fmt.Fprintf(&sb, "%s:\n", blk.Label)
		for _, ins := range blk.Instrs {
			sb.WriteString("  ")
			if ins.Result != nil {
				fmt.Fprintf(&sb, "%s %s = ", nameOf(ins.Result), ins.Result.Type)
			}
			switch ins.Op {
			case OpBranch:
				fmt.Fprintf(&sb, "%s %s\n", ins.Op, ins.Target.Label)
				continue
			case OpBranchCond:
				fmt.Fprintf(&sb, "%s %s, %s, %s\n", ins.Op, nameOf(ins.Arg(0)), ins.Target.Label, ins.FalseTarget.Label)
				continue
			case OpCallExternal:
				args := make([]string, ins.NumArgs)
				for i := 0; i < ins.NumArgs; i++ {
					args[i] = nameOf(ins.Arg(i))
				}
				fmt.Fprintf(&sb, "%s %s(%s)\n", ins.Op, ins.CallTarget, strings.Join(args, ", "))
				continue
			case OpSourceInfo:
				fmt.Fprintf(&sb, "%s pc=0x%X cycles=%d\n", ins.Op, ins.SourcePC, ins.CycleCost)
				continue
			}
			args := make([]string, ins.NumArgs)
			for i := 0; i < ins.NumArgs; i++ {
				args[i] = nameOf(ins.Arg(i))
			}
			fmt.Fprintf(&sb, "%s %s\n", ins.Op, strings.Join(args, ", "))
		}
	}
	return sb.String()
}

func formatConst(v *Value) string {
	switch v.Type {
	case TypeF32, TypeF64:
		return fmt.Sprintf("%s %g", v.Type, v.ConstF)
	default:
		return fmt.Sprintf("%s 0x%X", v.Type, v.ConstI)
	}
}

var textOpByName map[string]Op

func init() {
	textOpByName = make(map[string]Op, len(opNames))
	for op, name := range opNames {
		textOpByName[name] = op
	}
}

// Parse reconstructs a Function from text produced by Format. It
// supports exactly the grammar Format emits: "label:" lines, optional
// "%N type = " result prefixes, operator mnemonics, and comma-separated
// argument lists of "%N", "type literal", or block-label targets.
func Parse(text string) (*Function, error) {
	fn := &Function{}
	fn.Blocks = nil

	values := map[int]*Value{}
	blocks := map[string]*Block{}
	var cur *Block

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, ":") && !strings.Contains(line, " ") {
			label := strings.TrimSuffix(line, ":")
			blk, ok := blocks[label]
			if !ok {
				blk = &Block{Label: label, Fn: fn}
				blocks[label] = blk
			}
			fn.Blocks = append(fn.Blocks, blk)
			cur = blk
			continue
		}
		if cur == nil {
			return nil, fmt.Errorf("ir parse: line %d: instruction before any block label", lineNo)
		}

		var resultID int
		var resultType ValueType
		hasResult := false
		rest := line
		if idx := strings.Index(line, " = "); idx >= 0 && strings.HasPrefix(line, "%") {
			head := line[:idx]
			rest = line[idx+3:]
			parts := strings.Fields(head)
			if len(parts) != 2 {
				return nil, fmt.Errorf("ir parse: line %d: bad result header %q", lineNo, head)
			}
			id, err := strconv.Atoi(strings.TrimPrefix(parts[0], "%"))
			if err != nil {
				return nil, fmt.Errorf("ir parse: line %d: bad value id %q", lineNo, parts[0])
			}
			t, err := parseType(parts[1])
			if err != nil {
				return nil, err
			}
			resultID, resultType, hasResult = id, t, true
		}

		fields := strings.SplitN(rest, " ", 2)
		opName := fields[0]
		argText := ""
		if len(fields) == 2 {
			argText = fields[1]
		}
		op, ok := textOpByName[opName]
		if !ok {
			return nil, fmt.Errorf("ir parse: line %d: unknown op %q", lineNo, opName)
		}

		ins := &Instruction{Op: op}

		switch op {
		case OpBranch:
			target := blockFor(blocks, fn, strings.TrimSpace(argText))
			ins.Target = target
		case OpBranchCond:
			parts := splitArgs(argText)
			ins.setArg(0, resolveValue(parts[0], values, lineNo))
			ins.Target = blockFor(blocks, fn, parts[1])
			ins.FalseTarget = blockFor(blocks, fn, parts[2])
		case OpCallExternal:
			name, argsInner, err := parseCall(argText)
			if err != nil {
				return nil, fmt.Errorf("ir parse: line %d: %v", lineNo, err)
			}
			ins.CallTarget = name
			for i, a := range argsInner {
				ins.setArg(i, resolveValue(a, values, lineNo))
			}
		case OpSourceInfo:
			pc, cycles, err := parseSourceInfo(argText)
			if err != nil {
				return nil, fmt.Errorf("ir parse: line %d: %v", lineNo, err)
			}
			ins.SourcePC = pc
			ins.CycleCost = cycles
		default:
			for i, a := range splitArgs(argText) {
				ins.setArg(i, resolveValue(a, values, lineNo))
			}
		}

		cur.emit(ins)

		if hasResult {
			v := &Value{Kind: ValueInstrResult, Type: resultType, Def: ins, Reg: -1}
			ins.Result = v
			values[resultID] = v
		}
	}
	return fn, nil
}

func blockFor(blocks map[string]*Block, fn *Function, label string) *Block {
	label = strings.TrimSpace(label)
	if b, ok := blocks[label]; ok {
		return b
	}
	b := &Block{Label: label, Fn: fn}
	blocks[label] = b
	return b
}

func splitArgs(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	out := make([]string, len(raw))
	for i, p := range raw {
		out[i] = strings.TrimSpace(p)
	}
	return out
}

func resolveValue(tok string, values map[int]*Value, lineNo int) *Value {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "%") {
		id, err := strconv.Atoi(tok[1:])
		if err != nil {
			return nil
		}
		return values[id]
	}
	if strings.HasPrefix(tok, "local") {
		id, err := strconv.Atoi(strings.TrimPrefix(tok, "local"))
		if err != nil {
			return nil
		}
		return &Value{Kind: ValueLocalRef, Local: &Local{ID: id}, Reg: -1}
	}
	// "type literal"
	fields := strings.Fields(tok)
	if len(fields) != 2 {
		return nil
	}
	t, err := parseType(fields[0])
	if err != nil {
		return nil
	}
	switch t {
	case TypeF32, TypeF64:
		f, _ := strconv.ParseFloat(fields[1], 64)
		return &Value{Kind: ValueConstant, Type: t, ConstF: f, Reg: -1}
	default:
		lit := strings.TrimPrefix(fields[1], "0x")
		n, _ := strconv.ParseUint(lit, 16, 64)
		return &Value{Kind: ValueConstant, Type: t, ConstI: n, Reg: -1}
	}
}

func parseType(s string) (ValueType, error) {
	switch s {
	case "i8":
		return TypeI8, nil
	case "i16":
		return TypeI16, nil
	case "i32":
		return TypeI32, nil
	case "i64":
		return TypeI64, nil
	case "f32":
		return TypeF32, nil
	case "f64":
		return TypeF64, nil
	case "v128":
		return TypeV128, nil
	case "str":
		return TypeSTR, nil
	case "block":
		return TypeBLOCK, nil
	default:
		return 0, fmt.Errorf("ir parse: unknown type %q", s)
	}
}

func parseCall(s string) (name string, args []string, err error) {
	open := strings.Index(s, "(")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("malformed call %q", s)
	}
	name = strings.TrimSpace(s[:open])
	inner := s[open+1 : len(s)-1]
	return name, splitArgs(inner), nil
}

func parseSourceInfo(s string) (pc uint32, cycles uint32, err error) {
	fields := strings.Fields(s)
	for _, f := range fields {
		if strings.HasPrefix(f, "pc=0x") {
			n, e := strconv.ParseUint(strings.TrimPrefix(f, "pc=0x"), 16, 32)
			if e != nil {
				return 0, 0, e
			}
			pc = uint32(n)
		} else if strings.HasPrefix(f, "cycles=") {
			n, e := strconv.Atoi(strings.TrimPrefix(f, "cycles="))
			if e != nil {
				return 0, 0, e
			}
			cycles = uint32(n)
		}
	}
	return pc, cycles, nil
}
