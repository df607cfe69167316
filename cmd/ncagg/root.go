/*
Copyright © 2024 the ncagg authors.
This file is part of ncagg.

ncagg is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

ncagg is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with ncagg.  If not, see <http://www.gnu.org/licenses/>.
*/

package main

import (
	"context"
	"fmt"

	"github.com/ctessum/ncagg"
	"github.com/ctessum/ncagg/ncaggutil"
	"github.com/spf13/cobra"
)

const year = "2024"

var configFile string

// RootCmd is the main command, grounded on inmap/cmd/root.go's
// RootCmd/Startup/completedMessage banner pattern.
var RootCmd = &cobra.Command{
	Use:   "ncagg",
	Short: "A NetCDF granule aggregation engine.",
	Long: `ncagg aggregates a series of NetCDF granule files sharing a common
schema into a single file, indexing and gap-filling along one unlimited
dimension and reducing global attributes across the inputs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return labelErr(startup())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		completedMessage()
	},
}

func startup() error {
	fmt.Println("\n" +
		"------------------------------------------------\n" +
		"                    ncagg\n" +
		"        NetCDF granule aggregation engine\n" +
		"                Version " + ncagg.Version + "\n" +
		"               Copyright 2024-" + year + "\n" +
		"                the ncagg authors\n" +
		"------------------------------------------------")
	return nil
}

func completedMessage() {
	fmt.Println("\n" +
		"------------------------------------\n" +
		"           ncagg Completed!\n" +
		"------------------------------------")
}

func labelErr(err error) error {
	if err != nil {
		return fmt.Errorf("ERROR: %v", err)
	}
	return nil
}

func init() {
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(aggregateCmd)
}

var (
	outputPath string
	inputGlobs []string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Aggregate a set of input granules into a single output file.",
	Long: `aggregate reads the configuration file given by --config, expands the
granule paths given by --input (glob patterns are allowed and may be
repeated), and writes the aggregated result to --output.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return labelErr(runAggregate())
	},
}

func init() {
	aggregateCmd.PersistentFlags().StringVar(&configFile, "config", "./ncagg.json", "configuration file location")
	aggregateCmd.PersistentFlags().StringSliceVar(&inputGlobs, "input", nil, "input granule path or glob pattern (may be repeated)")
	aggregateCmd.PersistentFlags().StringVar(&outputPath, "output", "./ncagg_output.nc", "output file location")
}

func runAggregate() error {
	return ncaggutil.Run(context.Background(), ncaggutil.Options{
		ConfigPath:    configFile,
		InputPatterns: inputGlobs,
		OutputPath:    outputPath,
	})
}
