// cmd/examples.go
package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// Example is a ready-made task.
type Example struct {
	Name          string
	Task          string
	StartURL      string
	MaxIterations int
}

var builtinExamples = map[string]Example{
	"notepad": {
		Name:          "notepad",
		Task:          "Click into the text area and type 'Hello from the glimpse agent!'",
		StartURL:      "data:text/html,<title>Notepad</title><textarea style='width:95vw;height:90vh'></textarea>",
		MaxIterations: 20,
	},
	"calculator": {
		Name:          "calculator",
		Task:          "Use the search page to calculate 10 + 15 and report the result",
		StartURL:      "https://www.google.com",
		MaxIterations: 30,
	},
	"search": {
		Name:          "search",
		Task:          "Search the web for 'What is the capital of France?' and report the answer",
		StartURL:      "https://duckduckgo.com",
		MaxIterations: 25,
	},
	"wikipedia": {
		Name:          "wikipedia",
		Task:          "Open the Wikipedia article about the Go programming language",
		StartURL:      "https://en.wikipedia.org",
		MaxIterations: 15,
	},
}

func lookupExample(name string) (Example, error) {
	ex, ok := builtinExamples[name]
	if !ok {
		return Example{}, fmt.Errorf("unknown example '%s' (see 'glimpse examples')", name)
	}
	return ex, nil
}

func exampleNames() []string {
	names := make([]string, 0, len(builtinExamples))
	for name := range builtinExamples {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Lists the built-in example tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMAX ITERATIONS\tTASK")
			for _, name := range exampleNames() {
				ex := builtinExamples[name]
				fmt.Fprintf(w, "%s\t%d\t%s\n", ex.Name, ex.MaxIterations, ex.Task)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\nRun one with: glimpse run --example <name>")
			return nil
		},
	}
}
