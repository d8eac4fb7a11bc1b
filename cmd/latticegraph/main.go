// Package main provides the latticegraph CLI entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/latticegraph/lattice/pkg/config"
	"github.com/latticegraph/lattice/pkg/graph"
	"github.com/latticegraph/lattice/pkg/kv"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "latticegraph",
		Short: "LatticeGraph - a property-graph engine over a sorted key-value store",
		Long: `latticegraph is a property-graph engine (vertices, edges,
properties, and named/key indices) backed by an embedded sorted
key-value store with managed-timestamp time travel.`,
	}

	var configPath string
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default: search standard locations)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("latticegraph v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Open the graph and block until interrupted",
		Long:  "Opens the configured store and graph, then blocks until SIGINT/SIGTERM, flushing and closing cleanly on shutdown.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	rootCmd.AddCommand(serveCmd)

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive graph shell",
		Long:  "Opens the configured graph and accepts line-oriented commands against it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(configPath)
		},
	}
	rootCmd.AddCommand(shellCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openGraph loads config, opens the store, and builds a Graph from it.
func openGraph(configPath string) (*config.Config, *kv.Engine, *graph.Graph, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}

	if !cfg.Store.InMemory {
		if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	engine, err := kv.Open(cfg.StoreOptions())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening store: %w", err)
	}

	g, err := graph.New(engine, cfg.GraphOptions())
	if err != nil {
		engine.Close()
		return nil, nil, nil, fmt.Errorf("opening graph: %w", err)
	}

	return cfg, engine, g, nil
}

func runServe(configPath string) error {
	cfg, engine, g, err := openGraph(configPath)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Printf("latticegraph serving graph %q\n", cfg.Graph.Name)
	fmt.Printf("  store:  dir=%s in_memory=%v\n", cfg.Store.Dir, cfg.Store.InMemory)
	fmt.Printf("  cache:  capacity=%d vertex_ttl=%s edge_ttl=%s\n", cfg.Graph.CacheCapacity, cfg.Graph.VertexCacheTTL, cfg.Graph.EdgeCacheTTL)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nshutting down...")
	if err := g.Shutdown(); err != nil {
		return fmt.Errorf("shutting down graph: %w", err)
	}
	fmt.Println("stopped")
	return nil
}

func runShell(configPath string) error {
	_, engine, g, err := openGraph(configPath)
	if err != nil {
		return err
	}
	defer engine.Close()
	defer g.Shutdown()

	fmt.Println("connected to latticegraph")
	fmt.Println("commands: add-vertex [id] | add-edge <outV> <inV> <label> [id] | get-vertex <id> | get-edge <id>")
	fmt.Println("          remove-vertex <id> | remove-edge <id> | set-property <kind> <id> <key> <value>")
	fmt.Println("          get-property <kind> <id> <key> | count-vertices | count-edges | is-empty | exit")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()

	for {
		fmt.Print("latticegraph> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if err := runShellCommand(ctx, g, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
		fmt.Println()
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

func runShellCommand(ctx context.Context, g *graph.Graph, line string) error {
	fields := strings.Fields(line)
	ts := uint64(time.Now().UnixNano())

	switch fields[0] {
	case "add-vertex":
		id := ""
		if len(fields) > 1 {
			id = fields[1]
		}
		v, err := g.AddVertex(id, ts)
		if err != nil {
			return err
		}
		fmt.Printf("vertex %s\n", v.ID)

	case "add-edge":
		if len(fields) < 4 {
			return fmt.Errorf("usage: add-edge <outV> <inV> <label> [id]")
		}
		id := ""
		if len(fields) > 4 {
			id = fields[4]
		}
		e, err := g.AddEdge(id, fields[1], fields[2], fields[3], ts)
		if err != nil {
			return err
		}
		fmt.Printf("edge %s: %s -[%s]-> %s\n", e.ID, e.OutV, e.Label, e.InV)

	case "get-vertex":
		if len(fields) < 2 {
			return fmt.Errorf("usage: get-vertex <id>")
		}
		v, err := g.GetVertex(ctx, fields[1])
		if err != nil {
			return err
		}
		fmt.Printf("vertex %s\n", v.ID)

	case "get-edge":
		if len(fields) < 2 {
			return fmt.Errorf("usage: get-edge <id>")
		}
		e, err := g.GetEdge(ctx, fields[1])
		if err != nil {
			return err
		}
		fmt.Printf("edge %s: %s -[%s]-> %s\n", e.ID, e.OutV, e.Label, e.InV)

	case "remove-vertex":
		if len(fields) < 2 {
			return fmt.Errorf("usage: remove-vertex <id>")
		}
		if err := g.RemoveVertex(fields[1], ts); err != nil {
			return err
		}
		fmt.Println("ok")

	case "remove-edge":
		if len(fields) < 2 {
			return fmt.Errorf("usage: remove-edge <id>")
		}
		if err := g.RemoveEdge(fields[1], ts); err != nil {
			return err
		}
		fmt.Println("ok")

	case "set-property":
		if len(fields) < 5 {
			return fmt.Errorf("usage: set-property <vertex|edge> <id> <key> <value>")
		}
		kind, err := parseKind(fields[1])
		if err != nil {
			return err
		}
		if err := g.SetProperty(ctx, kind, fields[2], fields[3], strings.Join(fields[4:], " "), ts); err != nil {
			return err
		}
		fmt.Println("ok")

	case "get-property":
		if len(fields) < 4 {
			return fmt.Errorf("usage: get-property <vertex|edge> <id> <key>")
		}
		kind, err := parseKind(fields[1])
		if err != nil {
			return err
		}
		value, err := g.GetProperty(ctx, kind, fields[2], fields[3])
		if err != nil {
			return err
		}
		fmt.Printf("%v\n", value)

	case "count-vertices":
		n, err := g.CountVertices(ctx)
		if err != nil {
			return err
		}
		fmt.Println(n)

	case "count-edges":
		n, err := g.CountEdges(ctx)
		if err != nil {
			return err
		}
		fmt.Println(n)

	case "is-empty":
		empty, err := g.IsEmpty()
		if err != nil {
			return err
		}
		fmt.Println(empty)

	default:
		return fmt.Errorf("unrecognized command %q", fields[0])
	}
	return nil
}

func parseKind(s string) (graph.Kind, error) {
	switch strings.ToLower(s) {
	case "vertex", "v":
		return graph.VertexKind, nil
	case "edge", "e":
		return graph.EdgeKind, nil
	default:
		return 0, fmt.Errorf("unknown kind %q (want vertex or edge)", s)
	}
}
