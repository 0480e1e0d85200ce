// cmd/client is the CLI entry-point built with Cobra.
//
// Usage:
//
//	kvcli insert mykey "hello world"   --server http://localhost:8080
//	kvcli query mykey                  --server http://localhost:8080
//	kvcli delete mykey                 --server http://localhost:8080
//	kvcli overlay                      --server http://localhost:8080
//	kvcli depart                       --server http://localhost:8080
//	kvcli node-info                    --server http://localhost:8080
//	kvcli join 127.0.0.1 8081          --server http://localhost:8080
//	kvcli file-launch insert data/insert_0.txt --server http://localhost:8080
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"distributed-kvstore/internal/client"
)

var (
	serverAddr string
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "kvcli",
		Short: "CLI client for the ring-based KV store",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "server", "s",
		"http://localhost:8080", "ring node address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")

	root.AddCommand(insertCmd(), deleteCmd(), queryCmd(), overlayCmd(),
		departCmd(), nodeInfoCmd(), joinCmd(), setConfigCmd(), fileLaunchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─── insert ───────────────────────────────────────────────────────────────────

func insertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insert <key> <value>",
		Short: "Insert a key-value pair (appended if the key already exists)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Insert(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── delete ───────────────────────────────────────────────────────────────────

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			if err := c.Delete(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %q\n", args[0])
			return nil
		},
	}
}

// ─── query ────────────────────────────────────────────────────────────────────

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <key>",
		Short: `Retrieve a value by key, or pass "*" to dump the whole ring`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Query(context.Background(), args[0])
			if err == client.ErrNotFound {
				fmt.Printf("key %q not found\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── overlay ──────────────────────────────────────────────────────────────────

func overlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overlay",
		Short: "Display the ring topology as seen from this node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Overlay(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── depart ───────────────────────────────────────────────────────────────────

func departCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "depart",
		Short: "Instruct the node to gracefully leave the ring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			if err := c.Depart(context.Background()); err != nil {
				return err
			}
			fmt.Println("departed")
			return nil
		},
	}
}

// ─── node-info ────────────────────────────────────────────────────────────────

func nodeInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "node-info",
		Short: "Dump the node's full local state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.NodeInfo(context.Background())
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── join ─────────────────────────────────────────────────────────────────────

func joinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <ip> <port>",
		Short: "Ask the node to admit a newcomer into the ring",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			resp, err := c.Join(context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			prettyPrint(resp)
			return nil
		},
	}
}

// ─── set-config ───────────────────────────────────────────────────────────────

func setConfigCmd() *cobra.Command {
	var consistency string
	var kFactor int
	cmd := &cobra.Command{
		Use:   "set-config",
		Short: "Change the node's consistency mode and/or replication factor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverAddr, timeout)
			if err := c.SetConfig(context.Background(), consistency, kFactor); err != nil {
				return err
			}
			fmt.Println("config updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&consistency, "consistency", "", `"eventual" or "linearizability"`)
	cmd.Flags().IntVar(&kFactor, "k-factor", 0, "replication factor")
	return cmd
}

// ─── file-launch ──────────────────────────────────────────────────────────────
//
// Replays a batch file of operations against one node, one line per request.
// Mirrors the original client's file_launch/file_parallel tooling for load
// testing: "insert" files are "key value" lines, "query" files are bare keys.

func fileLaunchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "file-launch <insert|query> <path>",
		Short: "Replay a batch file of insert or query operations",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, path := args[0], args[1]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			c := client.New(serverAddr, timeout)
			ctx := context.Background()
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				line := scanner.Text()
				if line == "" {
					continue
				}
				switch kind {
				case "insert":
					var key, value string
					if _, err := fmt.Sscanf(line, "%s %s", &key, &value); err != nil {
						fmt.Fprintf(os.Stderr, "skipping malformed line %q: %v\n", line, err)
						continue
					}
					resp, err := c.Insert(ctx, key, value)
					if err != nil {
						fmt.Println(err)
						continue
					}
					prettyPrint(resp)
				case "query":
					resp, err := c.Query(ctx, line)
					if err != nil {
						fmt.Println(err)
						continue
					}
					prettyPrint(resp)
				default:
					return fmt.Errorf("unknown launch type %q: want insert or query", kind)
				}
			}
			return scanner.Err()
		},
	}
}

// ─── helpers ──────────────────────────────────────────────────────────────────

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
