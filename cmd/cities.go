package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calmcompass/places-cli/internal/geocode"
)

var citiesCmd = &cobra.Command{
	Use:   "cities",
	Short: "Manage the reference city list",
}

var citiesAddCmd = &cobra.Command{
	Use:   "add <query>",
	Short: "Geocode a city and add it to the store",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		gc := geocode.New(cfg.Geocoder.BaseURL, cfg.Geocoder.UserAgent)
		query := strings.Join(args, " ")

		city, err := gc.Lookup(ctx, query)
		if err != nil {
			return eris.Wrapf(err, "resolve %q", query)
		}
		if err := st.UpsertCity(ctx, city); err != nil {
			return err
		}

		zap.L().Info("city added",
			zap.String("slug", city.Slug),
			zap.String("name", city.Name),
			zap.Float64("lat", city.Lat),
			zap.Float64("lng", city.Lng),
		)
		fmt.Printf("%s\t%s, %s %s\t(%.4f, %.4f)\n",
			city.Slug, city.Name, city.State, city.Country, city.Lat, city.Lng)
		return nil
	},
}

var citiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cities in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		cities, err := st.ListCities(ctx)
		if err != nil {
			return err
		}
		for _, c := range cities {
			fmt.Printf("%s\t%s, %s %s\t(%.4f, %.4f)\n",
				c.Slug, c.Name, c.State, c.Country, c.Lat, c.Lng)
		}
		return nil
	},
}

func init() {
	citiesCmd.AddCommand(citiesAddCmd)
	citiesCmd.AddCommand(citiesListCmd)
	rootCmd.AddCommand(citiesCmd)
}
