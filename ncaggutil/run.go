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

// Package ncaggutil is the CLI glue layer between cmd/ncagg and the ncagg
// engine: it loads and validates a configuration file, expands the input
// granule glob patterns and environment variables given on the command
// line, wires a caching/retrying netcdfio reader and writer, and calls
// ncagg.Aggregate. It plays the role inmaputil plays for the inmap command,
// grounded on inmaputil/config.go's environment-variable expansion helpers
// and inmaputil/inmap.go's Run entry point.
package ncaggutil

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/ctessum/ncagg"
	"github.com/ctessum/ncagg/config"
	"github.com/ctessum/ncagg/netcdfio"
	"github.com/sirupsen/logrus"
)

// handleCacheSize bounds the number of granule file handles ncaggutil keeps
// open at once (spec section 5's "bounded size" LRU).
const handleCacheSize = 32

// Options holds the resolved inputs to one aggregation run, after
// environment-variable expansion and glob resolution.
type Options struct {
	// ConfigPath is the path to the JSON configuration file (spec section
	// 6.3).
	ConfigPath string

	// InputPatterns are filesystem glob patterns (or literal paths)
	// naming the input granules, expanded and sorted by ExpandInputs.
	InputPatterns []string

	// OutputPath is the destination of the aggregated output file.
	OutputPath string

	// Logger receives progress messages; defaults to logrus.StandardLogger().
	Logger *logrus.Logger
}

func (o *Options) logger() *logrus.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

// LoadConfig reads and validates the configuration file at path.
func LoadConfig(path string) (*config.Config, error) {
	data, err := ioutil.ReadFile(os.ExpandEnv(path))
	if err != nil {
		return nil, fmt.Errorf("ncaggutil: reading config %s: %v", path, err)
	}
	cfg, err := config.Load(data)
	if err != nil {
		return nil, err
	}
	cfg.EngineVersion = ncagg.Version
	return cfg, nil
}

// ExpandInputs expands environment variables and glob patterns in patterns,
// returning the matched paths in sorted, de-duplicated order. A pattern
// that is a literal path with no matches is kept as-is, so a clear "file
// not found" surfaces from granule inspection rather than silently
// dropping it here.
func ExpandInputs(patterns []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, p := range patterns {
		p = os.ExpandEnv(p)
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("ncaggutil: invalid input pattern %q: %v", p, err)
		}
		if len(matches) == 0 {
			matches = []string{p}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// Run loads opts.ConfigPath, expands opts.InputPatterns, and aggregates the
// result to opts.OutputPath, logging progress the way cmd/inmap's run
// command does via inmaputil.Run.
func Run(ctx context.Context, opts Options) error {
	log := opts.logger()

	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	inputs, err := ExpandInputs(opts.InputPatterns)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"inputs": len(inputs),
		"output": opts.OutputPath,
	}).Info("ncagg: starting aggregation")

	reader := netcdfio.NewHandleCache(netcdfio.NewRetryReader(netcdfio.NewReader()), handleCacheSize)
	defer reader.Close()
	writer := netcdfio.NewWriter()

	if err := ncagg.Aggregate(ctx, inputs, opts.OutputPath, cfg, reader, writer); err != nil {
		return err
	}

	log.WithField("output", opts.OutputPath).Info("ncagg: aggregation complete")
	return nil
}
