package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/terra-clan/grade-compass/internal/catalog"
)

var gradesCmd = &cobra.Command{
	Use:   "grades",
	Short: "Print the grade catalog",
	RunE:  runGrades,
}

var gradesJSON bool

func init() {
	gradesCmd.Flags().BoolVar(&gradesJSON, "json", false, "Print the catalog as JSON")

	rootCmd.AddCommand(gradesCmd)
}

func runGrades(_ *cobra.Command, _ []string) error {
	grades := catalog.Default().All()

	if gradesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(grades)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLABEL\tSCOPE\tPROFICIENCY\tPARTNERS")
	for _, g := range grades {
		fmt.Fprintf(w, "%s\t%s\t%.0f\t%.0f\t%s\n",
			g.ID, g.Label, g.ScopePosition, g.ProficiencyPosition, strings.Join(g.Partners, ", "))
	}
	return w.Flush()
}
