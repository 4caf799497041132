package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arborlabs/arbor"
	"github.com/arborlabs/arbor/internal/presentation/graph"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph <definition> [args...]",
	Short: "Export the dependency graph visualization",
	Long:  `Spawns a throwaway instance of the named definition and outputs a Mermaid diagram (graph TD) of its dependency graph.`,
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		def, err := builtinSource().Definition(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}

		rt := arbor.New()
		defer rt.Close()

		spawnArgs := make([]any, 0, len(args)-1)
		for _, a := range args[1:] {
			spawnArgs = append(spawnArgs, a)
		}

		h, err := rt.Spawn(context.Background(), def, spawnArgs...)
		if err != nil {
			fmt.Printf("Error spawning %q: %v\n", args[0], err)
			os.Exit(1)
		}

		info, err := h.Inspect()
		if err != nil {
			fmt.Printf("Error inspecting graph: %v\n", err)
			os.Exit(1)
		}

		fmt.Print(graph.GenerateMermaid(info, nil))
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
