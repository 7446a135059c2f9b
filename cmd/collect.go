package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calmcompass/places-cli/internal/model"
	"github.com/calmcompass/places-cli/internal/provider"
	"github.com/calmcompass/places-cli/internal/provider/google"
	"github.com/calmcompass/places-cli/internal/provider/yelp"
	"github.com/calmcompass/places-cli/internal/store"
)

var (
	collectCity     string
	collectCategory string
	collectSource   string
	collectMax      int
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Fetch raw place listings from the configured providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("collect"); err != nil {
			return err
		}

		timeout := time.Duration(cfg.Collect.TimeoutSecs) * time.Second
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		collectors, err := initCollectors()
		if err != nil {
			return err
		}

		cities, err := targetCities(ctx, st)
		if err != nil {
			return err
		}
		categories, err := targetCategories()
		if err != nil {
			return err
		}

		max := collectMax
		if max == 0 {
			max = cfg.Collect.MaxPerCategory
		}

		var totalInserted, totalUpdated int
		for _, city := range cities {
			for _, category := range categories {
				for _, col := range collectors {
					records, err := col.Collect(ctx, city, category, max)
					if err != nil {
						zap.L().Error("collect failed",
							zap.String("source", string(col.Source())),
							zap.String("city", city.Slug),
							zap.String("category", category),
							zap.Error(err),
						)
						continue
					}
					inserted, updated, err := st.SaveRawPlaces(ctx, records)
					if err != nil {
						return err
					}
					totalInserted += inserted
					totalUpdated += updated
					zap.L().Info("collected",
						zap.String("source", string(col.Source())),
						zap.String("city", city.Slug),
						zap.String("category", category),
						zap.Int("inserted", inserted),
						zap.Int("updated", updated),
					)
				}
			}
		}

		zap.L().Info("collect run complete",
			zap.Int("inserted", totalInserted),
			zap.Int("updated", totalUpdated),
		)
		return nil
	},
}

func initCollectors() ([]provider.Collector, error) {
	var collectors []provider.Collector
	if collectSource == "" || collectSource == string(model.SourceYelp) {
		if cfg.Yelp.Key != "" {
			collectors = append(collectors, yelp.New(cfg.Yelp.Key, cfg.Yelp.BaseURL, cfg.Yelp.QPS))
		}
	}
	if collectSource == "" || collectSource == string(model.SourceGoogle) {
		if cfg.Google.Key != "" {
			collectors = append(collectors, google.New(cfg.Google.Key, cfg.Google.BaseURL, cfg.Google.QPS))
		}
	}
	if len(collectors) == 0 {
		return nil, eris.Errorf("no collector available for source %q (missing API key?)", collectSource)
	}
	return collectors, nil
}

func targetCities(ctx context.Context, st store.Store) ([]model.City, error) {
	if collectCity != "" {
		city, err := st.GetCity(ctx, collectCity)
		if err != nil {
			return nil, err
		}
		if city == nil {
			return nil, eris.Errorf("unknown city %q (add it with: places-cli cities add)", collectCity)
		}
		return []model.City{*city}, nil
	}
	return st.ListCities(ctx)
}

func targetCategories() ([]string, error) {
	if collectCategory != "" {
		if !provider.ValidCategory(collectCategory) {
			return nil, eris.Errorf("unknown category %q (known: %v)", collectCategory, provider.Categories())
		}
		return []string{collectCategory}, nil
	}
	return provider.Categories(), nil
}

func init() {
	collectCmd.Flags().StringVar(&collectCity, "city", "", "restrict to one city slug (default all stored cities)")
	collectCmd.Flags().StringVar(&collectCategory, "category", "", "restrict to one category (default all)")
	collectCmd.Flags().StringVar(&collectSource, "source", "", "restrict to one source: yelp or google (default both)")
	collectCmd.Flags().IntVar(&collectMax, "max", 0, "max records per city and category (default from config)")
	rootCmd.AddCommand(collectCmd)
}
