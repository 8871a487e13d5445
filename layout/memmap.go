package layout

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// WriteMemoryMap prints the address bit map and the address range of every
// memory mapped unit.
func WriteMemoryMap(w io.Writer, v Values) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "address size\t%d bits\n", v.AddressSize)
	fmt.Fprintf(tw, "bit %d\t1: memory mapped, 0: config/state\n", v.DecisionBit)
	if len(v.Mapped) > 0 {
		if v.UnitSelectBits > 0 {
			fmt.Fprintf(tw, "bits %s\tunit select (%d units)\n", span(v.InUnitBits, v.UnitSelectBits), len(v.Mapped))
		}
		fmt.Fprintf(tw, "bits %s\tin unit address\n", span(0, v.InUnitBits))
	}
	if v.ConfigStateBits > 0 {
		fmt.Fprintf(tw, "bits %s\tconfig/state register (%d configs, %d states)\n",
			span(0, v.ConfigStateBits), v.NumConfigurations, v.NumStates)
	}
	fmt.Fprintf(tw, "%s\n", bitPicture(v))

	if len(v.Mapped) > 0 {
		fmt.Fprintln(tw, "unit\tname\ttype\twords\trange")
		for i, m := range v.Mapped {
			first, last := v.Range(i)
			fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%#x-%#x\n", m.Index, m.Name, m.Decl, m.Words, first, last)
		}
	}
	return tw.Flush()
}

func span(lo, n int) string {
	if n == 1 {
		return fmt.Sprintf("%d", lo)
	}
	return fmt.Sprintf("%d..%d", lo+n-1, lo)
}

// bitPicture draws one character per address bit, most significant first:
// D decision, U unit select, M in unit address, R config/state, - unused.
func bitPicture(v Values) string {
	var b strings.Builder
	for bit := v.AddressSize - 1; bit >= 0; bit-- {
		switch {
		case bit == v.DecisionBit:
			b.WriteByte('D')
		case len(v.Mapped) > 0 && bit >= v.InUnitBits && bit < v.InUnitBits+v.UnitSelectBits:
			b.WriteByte('U')
		case len(v.Mapped) > 0 && bit < v.InUnitBits:
			b.WriteByte('M')
		case bit < v.ConfigStateBits:
			b.WriteByte('R')
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
