package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pgEdge/pgedge-songdwh/internal/warehouse"
)

var (
	statementsFormat string
	statementsPhase  string
)

var statementsCmd = &cobra.Command{
	Use:   "statements",
	Short: "Print the SQL statements for a dialect",
	Long: `Print the drop, create, copy, insert and count statements the pipeline
runs for the selected dialect, either as SQL or as YAML. Credentials in
COPY statements are masked. Unset source locations are shown as
placeholders.

Example:
  pgedge-songdwh statements --dialect redshift --config dwh.yaml
  pgedge-songdwh statements --dialect postgres --format yaml --phase insert`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := warehouse.Get(cfg.Dialect)
		if err != nil {
			return err
		}
		plan, err := warehouse.BuildPlan(d, placeholderSource(cfg.CopySource()))
		if err != nil {
			return err
		}
		for i := range plan.Copy {
			plan.Copy[i].SQL = warehouse.Redact(plan.Copy[i].SQL)
		}

		if statementsPhase != "" {
			phase, err := warehouse.ParsePhase(statementsPhase)
			if err != nil {
				return err
			}
			plan = &warehouse.Plan{
				Dialect: plan.Dialect,
				Drop:    pick(phase == warehouse.PhaseDrop, plan.Drop),
				Create:  pick(phase == warehouse.PhaseCreate, plan.Create),
				Copy:    pick(phase == warehouse.PhaseCopy, plan.Copy),
				Insert:  pick(phase == warehouse.PhaseInsert, plan.Insert),
			}
		}

		switch statementsFormat {
		case "sql", "":
			return writeSQL(cmd.OutOrStdout(), plan)
		case "yaml":
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(plan)
		default:
			return fmt.Errorf("unknown format %q (use sql or yaml)", statementsFormat)
		}
	},
}

func init() {
	statementsCmd.Flags().StringVar(&statementsFormat, "format", "sql",
		"output format: sql or yaml")
	statementsCmd.Flags().StringVar(&statementsPhase, "phase", "",
		"print only one phase: drop, create, copy or insert")
}

func pick(keep bool, stmts []warehouse.Statement) []warehouse.Statement {
	if keep {
		return stmts
	}
	return nil
}

// placeholderSource fills unset locations so COPY statements can always
// be rendered.
func placeholderSource(src warehouse.CopySource) warehouse.CopySource {
	if src.LogData == "" {
		src.LogData = "<s3.log_data>"
	}
	if src.LogJSONPath == "" {
		src.LogJSONPath = "<s3.log_jsonpath>"
	}
	if src.SongData == "" {
		src.SongData = "<s3.song_data>"
	}
	if src.Credentials.IAMRoleARN == "" {
		src.Credentials.IAMRoleARN = "<iam_role.arn>"
	}
	return src
}

func writeSQL(w io.Writer, plan *warehouse.Plan) error {
	sections := []struct {
		title string
		stmts []warehouse.Statement
	}{
		{"drop", plan.Drop},
		{"create", plan.Create},
		{"copy", plan.Copy},
		{"insert", plan.Insert},
		{"count", plan.Count},
	}
	for _, s := range sections {
		if len(s.stmts) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "-- %s (%s)\n\n", s.title, plan.Dialect); err != nil {
			return err
		}
		for _, stmt := range s.stmts {
			if _, err := fmt.Fprintf(w, "-- %s\n%s\n\n", stmt.Name, stmt.SQL); err != nil {
				return err
			}
		}
	}
	return nil
}
