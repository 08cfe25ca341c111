package main

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"flkv/internal/buffer"
	"flkv/internal/server"
	"flkv/pkg/flkv"
)

func newPutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Store a value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := opts.decode(args[0])
			if err != nil {
				return err
			}
			value, err := opts.decode(args[1])
			if err != nil {
				return err
			}

			return opts.withStore(func(r *flkv.Runtime, db flkv.DB) error {
				start := time.Now()
				if err := r.Put(db, key, value); err != nil {
					return err
				}

				if opts.jsonOutput {
					return outputJSON(cmd.OutOrStdout(), map[string]interface{}{
						"success":     true,
						"key":         args[0],
						"duration_ms": time.Since(start).Milliseconds(),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), "OK")
				return nil
			})
		},
	}
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := opts.decode(args[0])
			if err != nil {
				return err
			}

			return opts.withStore(func(r *flkv.Runtime, db flkv.DB) error {
				value, err := r.Get(db, key)
				if errors.Is(err, flkv.ErrNotFound) {
					if opts.jsonOutput {
						outputJSON(cmd.OutOrStdout(), map[string]interface{}{"key": args[0], "found": false})
					}
					return fmt.Errorf("key not found: %s", args[0])
				}
				if err != nil {
					return err
				}

				if opts.jsonOutput {
					return outputJSON(cmd.OutOrStdout(), map[string]interface{}{
						"key":   args[0],
						"found": true,
						"value": opts.encode(value.View()),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), opts.encode(value.View()))
				return nil
			})
		},
	}
}

func newDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <key>",
		Aliases: []string{"del"},
		Short:   "Remove a key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := opts.decode(args[0])
			if err != nil {
				return err
			}

			return opts.withStore(func(r *flkv.Runtime, db flkv.DB) error {
				if err := r.Delete(db, key); err != nil {
					return err
				}
				if opts.jsonOutput {
					return outputJSON(cmd.OutOrStdout(), map[string]interface{}{"success": true, "key": args[0]})
				}
				fmt.Fprintln(cmd.OutOrStdout(), "OK")
				return nil
			})
		},
	}
}

func newBatchCmd(opts *options) *cobra.Command {
	var (
		deletes []string
		sync    bool
	)

	cmd := &cobra.Command{
		Use:   "batch [key=value...]",
		Short: "Apply several puts and deletes atomically",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(deletes) == 0 {
				return errors.New("batch needs at least one key=value or --delete")
			}

			return opts.withStore(func(r *flkv.Runtime, db flkv.DB) error {
				b := r.CreateBatch()
				defer r.DestroyBatch(b)

				for _, arg := range args {
					k, v, ok := strings.Cut(arg, "=")
					if !ok {
						return fmt.Errorf("invalid pair %q, want key=value", arg)
					}
					key, err := opts.decode(k)
					if err != nil {
						return err
					}
					value, err := opts.decode(v)
					if err != nil {
						return err
					}
					if err := r.BatchPut(b, key, value); err != nil {
						return err
					}
				}
				for _, k := range deletes {
					key, err := opts.decode(k)
					if err != nil {
						return err
					}
					if err := r.BatchDelete(b, key); err != nil {
						return err
					}
				}

				n, err := r.BatchLen(b)
				if err != nil {
					return err
				}
				if err := r.WriteBatch(db, b, sync); err != nil {
					return err
				}

				if opts.jsonOutput {
					return outputJSON(cmd.OutOrStdout(), map[string]interface{}{"success": true, "applied": n, "sync": sync})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d operations\n", n)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&deletes, "delete", "d", nil, "key to delete (repeatable)")
	cmd.Flags().BoolVar(&sync, "sync", false, "sync the batch to disk before returning")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list [prefix]",
		Short: "List keys in ascending order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefixArg string
			if len(args) == 1 {
				prefixArg = args[0]
			}
			prefix, err := opts.decode(prefixArg)
			if err != nil {
				return err
			}

			return opts.withStore(func(r *flkv.Runtime, db flkv.DB) error {
				items, err := r.List(db, prefix, limit)
				if err != nil {
					return err
				}

				if opts.jsonOutput {
					out := make([]map[string]string, len(items))
					for i, item := range items {
						out[i] = map[string]string{"key": opts.encode(item.Key), "value": opts.encode(item.Value)}
					}
					return outputJSON(cmd.OutOrStdout(), map[string]interface{}{"items": out, "count": len(out)})
				}
				for _, item := range items {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", opts.encode(item.Key), opts.encode(item.Value))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of keys, 0 for all")
	return cmd
}

func newFlushCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Make all acknowledged writes durable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(r *flkv.Runtime, db flkv.DB) error {
				if err := r.Flush(db); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "OK")
				return nil
			})
		},
	}
}

func newCompactCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Compact the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(r *flkv.Runtime, db flkv.DB) error {
				start := time.Now()
				if err := r.Compact(db); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "compacted in %s\n", time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print engine statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(r *flkv.Runtime, db flkv.DB) error {
				stats, err := r.Stats(db)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return outputJSON(cmd.OutOrStdout(), stats)
				}

				keys := make([]string, 0, len(stats))
				for k := range stats {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(cmd.OutOrStdout(), "%-14s %v\n", k, stats[k])
				}
				return nil
			})
		},
	}
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Open and close the store to verify it is readable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(r *flkv.Runtime, db flkv.DB) error {
				if _, err := r.List(db, buffer.Buffer{}, 1); err != nil {
					return err
				}
				if err := r.Close(db); err != nil {
					return err
				}

				name := opts.store
				if !opts.memory {
					name = r.StorePath(opts.store)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s store %s ok\n", opts.cfg.Storage.Engine, name)
				return nil
			})
		},
	}
}

func newServeCmd(opts *options) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the store over the HTTP inspection API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				host, portStr, err := net.SplitHostPort(addr)
				if err != nil {
					return fmt.Errorf("invalid --addr: %w", err)
				}
				port, err := strconv.Atoi(portStr)
				if err != nil {
					return fmt.Errorf("invalid --addr port: %w", err)
				}
				opts.cfg.Inspect.Host = host
				opts.cfg.Inspect.Port = port
			}

			return opts.withStore(func(r *flkv.Runtime, db flkv.DB) error {
				engine, err := r.Engine(db)
				if err != nil {
					return err
				}
				return server.NewServer(opts.cfg, engine, opts.logger).Run(cmd.Context())
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides inspect.host and inspect.port")
	return cmd
}
