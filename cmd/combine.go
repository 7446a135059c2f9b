package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calmcompass/places-cli/internal/model"
	"github.com/calmcompass/places-cli/internal/reconcile"
	"github.com/calmcompass/places-cli/internal/store"
)

var (
	combineCity     string
	combineCategory string
	combineSource   string
	combineDryRun   bool
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Reconcile raw listings into canonical deduplicated places",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("combine"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		raw, err := st.ListRawPlaces(ctx, store.RawFilter{
			CitySlug: combineCity,
			Category: combineCategory,
			Source:   model.Source(combineSource),
		})
		if err != nil {
			return err
		}
		if len(raw) == 0 {
			zap.L().Info("no raw records to combine")
			return nil
		}

		engine := reconcile.NewEngine(cfg.Reconcile)
		results, err := engine.Reconcile(ctx, raw, st.ListPlaces)
		if err != nil {
			return err
		}

		var created, updated, rejected int
		for _, res := range results {
			switch res.Action {
			case reconcile.ActionRejected:
				rejected++
				zap.L().Warn("record rejected",
					zap.String("source", string(res.Raw.Source)),
					zap.String("source_id", res.Raw.SourceID),
					zap.Error(res.Err),
				)
				continue
			case reconcile.ActionCreated:
				created++
			case reconcile.ActionUpdated:
				updated++
			}
			if combineDryRun {
				continue
			}
			if err := st.UpsertPlace(ctx, res.Place); err != nil {
				return err
			}
		}

		zap.L().Info("combine complete",
			zap.Int("raw", len(raw)),
			zap.Int("created", created),
			zap.Int("updated", updated),
			zap.Int("rejected", rejected),
			zap.Bool("dry_run", combineDryRun),
		)
		return nil
	},
}

func init() {
	combineCmd.Flags().StringVar(&combineCity, "city", "", "restrict to one city slug (default all)")
	combineCmd.Flags().StringVar(&combineCategory, "category", "", "restrict to one category (default all)")
	combineCmd.Flags().StringVar(&combineSource, "source", "", "restrict to raw records from one source (default all)")
	combineCmd.Flags().BoolVar(&combineDryRun, "dry-run", false, "reconcile without writing places")
	rootCmd.AddCommand(combineCmd)
}
