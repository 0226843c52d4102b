package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
	"github.com/lawdigitaltwin/tourismlevy/internal/levy"
	"github.com/lawdigitaltwin/tourismlevy/internal/refdata"
	"github.com/lawdigitaltwin/tourismlevy/internal/repository"
	"github.com/lawdigitaltwin/tourismlevy/internal/rules"
)

var (
	seedDriver string
	seedSQLite string
)

// referenceCmd groups reference data commands
var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Validate and install reference data",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var referenceValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Check a reference data file",
	Long: `Parse a reference data file and check the tables: seven groups per
class, non-increasing rates, non-negative minimums, known classes for every
municipality and activity, no duplicate names, compilable rules.

Without a file argument the --reference file or the embedded dataset is
checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := referenceFile
		if len(args) > 0 {
			file = args[0]
		}

		data, ref, err := loadValidated(file)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Reference data OK (%s)\n", describeSource(file))
		fmt.Fprintf(out, "  Classes:         %v\n", ref.Schedule.Classes())
		fmt.Fprintf(out, "  Max revenue cap: %s\n", euro(ref.Schedule.MaxRevenueCap()))
		fmt.Fprintf(out, "  Municipalities:  %d\n", ref.Municipalities.Len())
		fmt.Fprintf(out, "  Activities:      %d\n", ref.Activities.Len())
		fmt.Fprintf(out, "  Rules:           %d\n", len(data.Rules))
		return nil
	},
}

var referenceSeedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Write reference data into the repository",
	Long: `Validate a reference data file and replace the lookup tables stored in
the repository with it. The repository is configured from the LEVY_*
environment variables; --driver and --sqlite override them.

A running server picks the new tables up with POST /reference/reload.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := referenceFile
		if len(args) > 0 {
			file = args[0]
		}

		data, _, err := loadValidated(file)
		if err != nil {
			return err
		}

		cfg := domain.LoadConfig().Repository
		if seedDriver != "" {
			cfg.Driver = seedDriver
		}
		if seedSQLite != "" {
			cfg.SQLitePath = seedSQLite
		}

		repo, err := repository.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to open repository: %w", err)
		}
		defer repo.Close()

		if err := repo.SaveReference(cmd.Context(), data); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s repository from %s: %d municipalities, %d activities, %d rules\n",
			cfg.Driver, describeSource(file), len(data.Municipalities), len(data.Activities), len(data.Rules))
		return nil
	},
}

func init() {
	referenceSeedCmd.Flags().StringVar(&seedDriver, "driver", "", "repository driver (sqlite, postgres)")
	referenceSeedCmd.Flags().StringVar(&seedSQLite, "sqlite", "", "SQLite database path")

	referenceCmd.AddCommand(referenceValidateCmd)
	referenceCmd.AddCommand(referenceSeedCmd)
}

// loadValidated loads a dataset and checks both the tables and the rules.
func loadValidated(file string) (*domain.ReferenceData, *levy.Reference, error) {
	data, err := refdata.Load(file)
	if err != nil {
		return nil, nil, err
	}
	ref, err := levy.NewReference(data)
	if err != nil {
		return nil, nil, err
	}

	engine, err := rules.NewEngine(1)
	if err != nil {
		return nil, nil, err
	}
	defer engine.Close()
	for _, rule := range data.Rules {
		if err := engine.ValidateRule(rule); err != nil {
			return nil, nil, fmt.Errorf("%w: rule %s: %v", domain.ErrInvalidReference, rule.ID, err)
		}
	}

	return data, ref, nil
}

func describeSource(file string) string {
	if file == "" {
		return "embedded dataset"
	}
	return file
}
