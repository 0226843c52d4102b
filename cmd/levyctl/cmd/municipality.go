package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// municipalityCmd looks up the class of a municipality.
var municipalityCmd = &cobra.Command{
	Use:   "municipality <name>",
	Short: "Show the class of a municipality",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBackend()
		if err != nil {
			return err
		}
		defer b.Close()

		name := strings.TrimSpace(args[0])
		class, err := b.MunicipalityClass(cmd.Context(), name)
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
				"municipality":      name,
				"municipalityClass": class.String(),
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: class %s\n", name, class)
		return nil
	},
}
