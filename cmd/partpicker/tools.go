package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"partpicker/allocation"
	"partpicker/engine"
	"partpicker/ledger"
	"partpicker/partstate"
)

func newRebuildCmd() *cobra.Command {
	var flush bool
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the consolidated view from the database and print it",
		Long: "Loads every active order, demand line and live pick, rebuilds the consolidated\n" +
			"view and prints per-part totals. When redis is enabled the cache is rewritten too.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			snap, err := ledger.NewReplica(db, cfg.Ledger.PageSize, cfg.Ledger.FilterChunk).Refresh(ctx)
			if err != nil {
				return fmt.Errorf("rebuild: %w", err)
			}

			if rc := openRedis(cfg); rc != nil {
				defer rc.Close()
				rs := partstate.NewRedisStore(rc, cfg.Redis.KeyPrefix)
				if flush {
					if err := rs.FlushAll(ctx); err != nil {
						return fmt.Errorf("flush cache: %w", err)
					}
				}
				if err := rs.ReplaceParts(ctx, snap.Parts, snap.LoadedAt); err != nil {
					return fmt.Errorf("write cache: %w", err)
				}
				log.Info().Int("parts", len(snap.Parts)).Msg("partpicker: cache rewritten")
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PART\tNEEDED\tPICKED\tREMAINING\tROWS")
			for _, p := range snap.Parts {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", p.PartNumber, p.TotalNeeded, p.TotalPicked, p.Remaining, len(p.Rows))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&flush, "flush", false, "delete every cached key under the prefix before rewriting")
	return cmd
}

func newPlanCmd() *cobra.Command {
	var req engine.PlanRequest
	var policy, scope string
	cmd := &cobra.Command{
		Use:   "plan <part-number>",
		Short: "Propose an allocation of an available quantity for one part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			eng := engine.New(engine.Config{AppConfig: cfg, DB: db})
			if err := eng.Refresh(cmd.Context()); err != nil {
				return err
			}
			req.PartNumber = args[0]
			req.Policy = allocation.Policy(policy)
			req.Scope = engine.PlanScope(scope)
			plan, err := eng.PlanPart(req)
			if err != nil {
				return err
			}
			return printJSON(plan)
		},
	}
	cmd.Flags().IntVarP(&req.Available, "available", "n", 0, "quantity on hand to allocate")
	cmd.Flags().StringVarP(&policy, "policy", "p", string(allocation.PolicyEven), "allocation policy (even, in_order)")
	cmd.Flags().StringVarP(&scope, "scope", "s", string(engine.ScopeTool), "bucket scope (tool, order)")
	return cmd
}

func newAllocateCmd() *cobra.Command {
	var available int
	var policy string
	cmd := &cobra.Command{
		Use:   "allocate <capacity>...",
		Short: "Run an allocation policy over literal bucket capacities",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			buckets := make([]allocation.Bucket, len(args))
			for i, a := range args {
				c, err := strconv.Atoi(a)
				if err != nil {
					return fmt.Errorf("capacity %q: %w", a, err)
				}
				buckets[i] = allocation.Bucket{ID: strconv.Itoa(i + 1), Capacity: c}
			}
			plan, ok := allocation.Run(allocation.Policy(policy), buckets, available)
			if !ok {
				return fmt.Errorf("%w: %q", engine.ErrUnknownPolicy, policy)
			}
			return printJSON(map[string]any{
				"allocations": plan.Quantities(),
				"allocated":   plan.Total(),
				"unallocated": available - plan.Total(),
			})
		},
	}
	cmd.Flags().IntVarP(&available, "available", "n", 0, "quantity to allocate")
	cmd.Flags().StringVarP(&policy, "policy", "p", string(allocation.PolicyEven), "allocation policy (even, in_order)")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

