package cli

import (
	"fmt"
	"io"

	"github.com/RicardoMLopes/wsh/internal/reconcile"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// ClassifyOptions holds flags for the classify command.
type ClassifyOptions struct {
	*RootOptions
	Declared string
	Revised  string
	Incoming string
}

type classifyOutput struct {
	Declared decimal.Decimal     `json:"declared"`
	Revised  decimal.Decimal     `json:"revised"`
	Incoming decimal.Decimal     `json:"incoming"`
	Split    reconcile.Split     `json:"split"`
	Portions []reconcile.Portion `json:"portions"`
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClassifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Show how an incoming quantity would be labeled",
		Long: `Split an incoming quantity into standard, LPS and undeclared portions
without touching the database.

Example:
  wsh-putawayctl classify --declared 10 --revised 8 --incoming 5`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Declared, "declared", "0", "declared quantity")
	cmd.Flags().StringVar(&opts.Revised, "revised", "0", "quantity already confirmed")
	cmd.Flags().StringVar(&opts.Incoming, "incoming", "", "incoming quantity (required)")
	_ = cmd.MarkFlagRequired("incoming")

	return cmd
}

func runClassify(opts *ClassifyOptions, cmd *cobra.Command) error {
	var out classifyOutput
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"declared", opts.Declared, &out.Declared},
		{"revised", opts.Revised, &out.Revised},
		{"incoming", opts.Incoming, &out.Incoming},
	} {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return WrapExitError(ExitFailure, "invalid --"+f.name, err)
		}
		*f.dst = v
	}
	if !out.Incoming.IsPositive() {
		return NewExitError(ExitFailure, "--incoming must be positive")
	}

	out.Split = reconcile.Classify(out.Declared, out.Revised, out.Incoming)
	out.Portions = out.Split.Portions()

	return opts.formatter(cmd).Success(out, func(w io.Writer) {
		printSplit(w, out)
	})
}

func printSplit(w io.Writer, out classifyOutput) {
	fmt.Fprintf(w, "%-12s%s\n", "declared:", out.Declared)
	fmt.Fprintf(w, "%-12s%s\n", "revised:", out.Revised)
	fmt.Fprintf(w, "%-12s%s\n", "incoming:", out.Incoming)
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "%-12s%s\n", "standard:", out.Split.Standard)
	fmt.Fprintf(w, "%-12s%s\n", "lps:", out.Split.LPS)
	fmt.Fprintf(w, "%-12s%s\n", "undeclared:", out.Split.Undeclared)
	fmt.Fprintf(w, "%-12s%d\n", "entries:", len(out.Portions))
}
