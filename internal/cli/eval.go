package cli

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	placeio "github.com/matzehuels/netplace/pkg/io"
	"github.com/matzehuels/netplace/pkg/netlist"
	"github.com/matzehuels/netplace/pkg/objective"
)

// netRow is one line of the eval table.
type netRow struct {
	id        int
	terminals int
	hpwl      float64
}

// evalCommand creates the eval command that scores a placement.
func (c *CLI) evalCommand() *cobra.Command {
	var (
		placement string
		top       int
		byID      bool
	)

	cmd := &cobra.Command{
		Use:   "eval [netlist]",
		Short: "Print the wirelength of a placement per net",
		Long: `Print the half-perimeter wirelength of a placement per net.

Nets are listed longest first; --top limits the table. Without --placement
every gate sits at the origin, so only pad spread contributes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nl, err := placeio.ImportNetlist(args[0])
			if err != nil {
				return err
			}
			if placement != "" {
				if err := placeio.ImportJSON(placement, nl); err != nil {
					return err
				}
			}
			rows := netRows(nl, byID)
			if top > 0 && top < len(rows) {
				rows = rows[:top]
			}
			printEval(nl, rows)
			return nil
		},
	}

	cmd.Flags().StringVarP(&placement, "placement", "p", "", "placement JSON file (from 'place')")
	cmd.Flags().IntVar(&top, "top", 20, "show only the N longest nets (0: all)")
	cmd.Flags().BoolVar(&byID, "by-id", false, "order nets by id instead of length")

	return cmd
}

// netRows scores every net of nl, longest first unless byID is set.
func netRows(nl *netlist.Netlist, byID bool) []netRow {
	per := objective.PerNet(nl)
	rows := make([]netRow, len(per))
	for i, h := range per {
		rows[i] = netRow{id: netlist.ID(i), terminals: nl.Nets()[i].Terminals(), hpwl: h}
	}
	if !byID {
		slices.SortStableFunc(rows, func(a, b netRow) int {
			return cmp.Compare(b.hpwl, a.hpwl)
		})
	}
	return rows
}

func printEval(nl *netlist.Netlist, rows []netRow) {
	t := newTable("Net", "Terminals", "HPWL")
	for _, r := range rows {
		t.Row(strconv.Itoa(r.id), strconv.Itoa(r.terminals), formatHPWL(r.hpwl))
	}
	fmt.Println(t.Render())

	printKeyValue("total", formatHPWL(objective.HPWL(nl)))
	printKeyValue("nets", fmt.Sprintf("%d (%d shown)", nl.NetCount(), len(rows)))
	for _, w := range objective.Degenerate(nl) {
		printWarning("%s", w.String())
	}
}
