package ir

import (
	"fmt"
	"strings"
)

// Dump renders nodes as indented pseudo-code for debugging and golden
// files.
func Dump(nodes []Node) string {
	var b strings.Builder
	for _, n := range nodes {
		dump(&b, n, 0)
	}
	return b.String()
}

// DumpCallables renders elemental functions.
func DumpCallables(callables []*Callable) string {
	var b strings.Builder
	for _, c := range callables {
		dump(&b, c, 0)
	}
	return b.String()
}

func dump(b *strings.Builder, n Node, depth int) {
	pad := strings.Repeat("  ", depth)
	line := func(format string, args ...any) {
		b.WriteString(pad)
		fmt.Fprintf(b, format, args...)
		b.WriteByte('\n')
	}
	switch v := n.(type) {
	case *Iteration:
		for _, p := range v.Pragmas {
			line("%s", p)
		}
		head := fmt.Sprintf("for %s in [%s, %s) step %s", v.Dim.Name, v.Lower(), v.Upper(), v.Limits.Step)
		if v.Properties != 0 {
			head += " <" + v.Properties.String() + ">"
		}
		if v.Tag != 0 {
			head += fmt.Sprintf(" tag=%d", v.Tag)
		}
		line("%s", head)
		dumpBody(b, v.Body, depth+1)
	case *Expression:
		line("%s = %s", v.LHS, v.RHS)
	case *List:
		dumpBody(b, v.Body, depth)
	case *Block:
		for _, h := range v.Header {
			line("%s", h)
		}
		line("{")
		dumpBody(b, v.Body, depth+1)
		line("}")
		for _, f := range v.Footer {
			line("%s", f)
		}
	case *Denormals:
		for _, i := range v.Instructions {
			line("%s", i)
		}
	case *Call:
		line("%s(%s)", v.Name, strings.Join(v.Args, ", "))
	case *Callable:
		names := make([]string, len(v.Params))
		for i, p := range v.Params {
			names[i] = p.Name
		}
		line("func %s(%s)", v.Name, strings.Join(names, ", "))
		dumpBody(b, v.Body, depth+1)
	case *Fold:
		for i, p := range v.Parts {
			line("fold part %d", i)
			dumpBody(b, p, depth+1)
		}
	}
}

func dumpBody(b *strings.Builder, nodes []Node, depth int) {
	for _, n := range nodes {
		dump(b, n, depth)
	}
}
