package cli

import (
	"fmt"
	"io"

	"github.com/RicardoMLopes/wsh/internal/domain"

	"github.com/spf13/cobra"
)

// keyFlags the aggregate key, or just its pair when withPart is false
type keyFlags struct {
	domain.AggregateKey
}

func (k *keyFlags) register(cmd *cobra.Command, withPart bool) {
	cmd.Flags().StringVar(&k.Reference, "reference", "", "shipment reference (required)")
	cmd.Flags().StringVar(&k.Waybill, "waybill", "", "waybill (required)")
	_ = cmd.MarkFlagRequired("reference")
	_ = cmd.MarkFlagRequired("waybill")
	if withPart {
		cmd.Flags().StringVar(&k.PartNumber, "part", "", "part number (required)")
		_ = cmd.MarkFlagRequired("part")
	}
}

func printAggregateTotals(w io.Writer, agg *domain.Aggregate) {
	if agg == nil {
		return
	}
	fmt.Fprintf(w, "totals %s\n", agg.Key)
	fmt.Fprintf(w, "  %-12s%s\n", "declared:", agg.DeclaredQty)
	fmt.Fprintf(w, "  %-12s%s\n", "revised:", agg.RevisedQty)
	fmt.Fprintf(w, "  %-12s%s\n", "standard:", agg.StandardQty)
	fmt.Fprintf(w, "  %-12s%s\n", "lps:", agg.LPSQty)
	fmt.Fprintf(w, "  %-12s%s\n", "undeclared:", agg.UndeclaredQty)
	fmt.Fprintf(w, "  %-12s%s\n", "breakdown:", agg.BreakdownQty)
}
