package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/nibzard/mdtasks/internal/diff"
	"github.com/nibzard/mdtasks/internal/markdown"
	"github.com/nibzard/mdtasks/internal/task"
)

// ErrInvalidDocument is returned by validate when a document has problems.
var ErrInvalidDocument = errors.New("document has invalid tasks")

func newDiffCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:         "diff <before.md> <after.md>",
		Short:       "Show task-level changes between two documents",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{skipConfig: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			before, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			after, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			d := diff.Analyze(string(before), string(after))
			if asJSON {
				data, err := sonic.ConfigStd.MarshalIndent(d, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, string(data))
				return nil
			}
			if !diff.HasChanges(d) {
				fmt.Fprintln(a.stdout, "No task changes.")
				return nil
			}
			fmt.Fprintln(a.stdout, diff.Report(d))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the diff as JSON")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [file]",
		Short: "Check a task document for unparseable rows and invalid fields",
		Long: `Validate decodes a task document and checks every task.
Without an argument the configured document is read from its store.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var content, source string
			if len(args) == 1 {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				content, source = string(data), args[0]
			} else {
				st, id, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				doc, err := st.Get(cmd.Context(), id)
				if err != nil {
					return fmt.Errorf("reading %s: %w", id, err)
				}
				content, source = doc.Content, id.String()
			}
			return validateDocument(a, source, content)
		},
	}
}

func validateDocument(a *app, source, content string) error {
	result := markdown.Decode(content)
	for _, w := range result.Warnings {
		fmt.Fprintf(a.stdout, "warning: %s\n", w)
	}
	err := task.ValidateAll(result.Tasks)
	var verrs *task.ValidationErrors
	if errors.As(err, &verrs) {
		for _, te := range verrs.Tasks {
			for _, e := range te.Errors {
				fmt.Fprintf(a.stdout, "invalid: task %q: %v\n", te.Name, e)
			}
		}
		return fmt.Errorf("%s: %w (%d of %d)", source, ErrInvalidDocument, len(verrs.Tasks), len(result.Tasks))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s: %d task(s), all valid\n", source, len(result.Tasks))
	return nil
}
