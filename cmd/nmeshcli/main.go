// cmd/nmeshcli is a Cobra CLI demo client for the sync engine.
//
// Usage:
//
//	nmeshcli put mykey "hello world"   --server ws://localhost:8080 --workspace 7b0e6f4a-2c1d-4e8b-9a3f-5d6c7e8f9a0b --token t
//	nmeshcli get mykey                 --server ws://localhost:8080 --workspace 7b0e6f4a-2c1d-4e8b-9a3f-5d6c7e8f9a0b --token t
//	nmeshcli watch todos:               --server ws://localhost:8080 --workspace 7b0e6f4a-2c1d-4e8b-9a3f-5d6c7e8f9a0b --token t
//	nmeshcli demo --with-server
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"nmeshed/internal/config"
	"nmeshed/internal/engine"
	"nmeshed/internal/kv"
	"nmeshed/internal/orchestrator"
	"nmeshed/internal/transport"
	"nmeshed/internal/view"
)

var (
	serverURL     string
	workspaceID   string
	token         string
	participantID string
	syncMode      string
	timeout       time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "nmeshcli",
		Short: "CLI client for the real-time state sync engine",
	}

	root.PersistentFlags().StringVarP(&serverURL, "server", "s",
		"ws://localhost:8080", "sync server address")
	root.PersistentFlags().StringVarP(&workspaceID, "workspace", "w",
		"00000000-0000-0000-0000-000000000001", "workspace id (UUID or 32 hex digits)")
	root.PersistentFlags().StringVarP(&token, "token", "t",
		"dev-token", "auth token")
	root.PersistentFlags().StringVar(&participantID, "participant-id",
		"", "stable participant id (generated if omitted)")
	root.PersistentFlags().StringVar(&syncMode, "sync-mode",
		"collaborative", "sync mode: collaborative | realtime")
	root.PersistentFlags().DurationVar(&timeout, "timeout",
		5*time.Second, "time to wait for the connection to settle")

	root.AddCommand(putCmd(), getCmd(), watchCmd(), demoCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ─── shared bootstrap ──────────────────────────────────────────────────────

// bootstrap connects a fresh engine+transport+orchestrator and blocks
// until either the engine reaches StateActive or timeout elapses.
func bootstrap(ctx context.Context) (*engine.Engine, *orchestrator.Orchestrator, error) {
	opts := []config.Option{
		config.WithServerURL(serverURL),
		config.WithSyncMode(config.SyncMode(syncMode)),
	}
	if participantID != "" {
		opts = append(opts, config.WithParticipantID(participantID))
	}
	cfg := config.New(workspaceID, token, opts...)

	e, err := engine.New(cfg, kv.NewMemoryStore())
	if err != nil {
		return nil, nil, fmt.Errorf("construct engine: %w", err)
	}

	tr := transport.NewWSTransport(cfg, e.ParticipantID())
	o := orchestrator.New(e, tr)

	if err := o.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("start orchestrator: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for e.State() != engine.StateActive && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	return e, o, nil
}

// ─── put ──────────────────────────────────────────────────────────────────

func putCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Set a key's value and let it sync",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			e, o, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer o.Destroy()

			if err := e.Set(args[0], []byte(args[1])); err != nil {
				return err
			}
			time.Sleep(200 * time.Millisecond) // let the queue flush
			fmt.Printf("set %q = %q\n", args[0], args[1])
			return nil
		},
	}
}

// ─── get ──────────────────────────────────────────────────────────────────

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read a key's current replicated value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			e, o, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer o.Destroy()

			rec, ok := e.Core().GetRecord(args[0])
			if !ok || rec.Tombstone {
				fmt.Printf("key %q not found\n", args[0])
				return nil
			}
			prettyPrint(map[string]any{"key": args[0], "value": string(rec.Value)})
			return nil
		},
	}
}

// ─── watch ──────────────────────────────────────────────────────────────────

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <prefix>",
		Short: "Print every change to keys under prefix until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			e, o, err := bootstrap(ctx)
			cancel()
			if err != nil {
				return err
			}
			defer o.Destroy()

			col := view.NewCollection(e, args[0])
			defer col.Close()

			for _, entry := range col.Data() {
				fmt.Printf("%s = %q\n", entry.ID, entry.Value)
			}

			ch, unsub := col.OnChange(16)
			defer unsub()

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

			fmt.Println("watching, press ctrl-c to stop")
			for {
				select {
				case evt := <-ch:
					if evt.IsDelete {
						fmt.Printf("- %s deleted\n", evt.ID)
					} else {
						fmt.Printf("~ %s = %q\n", evt.ID, evt.Value)
					}
				case <-quit:
					return nil
				}
			}
		},
	}
}

// ─── helpers ────────────────────────────────────────────────────────────────

func prettyPrint(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(v)
		return
	}
	fmt.Println(string(data))
}
