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

// Package ncagg implements the plan-and-evaluate NetCDF aggregation
// engine: the planner (Node kinds, Planner), the evaluator, the attribute
// reduction strategies, and the Aggregate entry point that composes them
// with an external granule reader and writer.
package ncagg

import (
	"context"

	"github.com/ctessum/ncagg/config"
	"github.com/ctessum/ncagg/errs"
	"github.com/ctessum/ncagg/granule"
	"github.com/sirupsen/logrus"
)

// tempSuffix names the in-progress output file, atomically renamed to its
// final path only on success (spec section 5, section 6.2).
const tempSuffix = ".ncagg-tmp"

// Aggregate runs the engine end to end (spec section 6.4): it inspects
// every input granule, builds a plan per unlimited dimension, evaluates
// the plan into a freshly created output, and finalizes global
// attributes. On any failure it returns one of the errs package's tagged
// errors and leaves no file at outputPath; on success outputPath is the
// finished, renamed file.
//
// reader and writer are the external granule I/O collaborators (spec
// section 6.1, 6.2); a concrete implementation grounded on
// github.com/ctessum/cdf is provided by the sibling netcdfio package.
func Aggregate(ctx context.Context, inputPaths []string, outputPath string, cfg *config.Config, reader config.GranuleReader, writer config.GranuleWriter) (err error) {
	if len(inputPaths) == 0 {
		return &errs.NoInputsError{}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	descs, err := granule.InspectAll(reader, inputPaths, cfg)
	if err != nil {
		return err
	}

	plan, err := BuildPlan(cfg, descs)
	if err != nil {
		return err
	}

	tempPath := outputPath + tempSuffix
	if err := writer.Create(tempPath, cfg); err != nil {
		return &errs.IOError{Op: "create", Path: tempPath, Err: err}
	}
	defer func() {
		if err != nil {
			writer.Close()
		}
	}()

	eval := &Evaluator{Reader: reader, Writer: writer, Logger: logrus.StandardLogger()}
	if err = eval.Run(ctx, cfg, plan, descs); err != nil {
		return err
	}

	if err = writer.FinalizeAndRename(outputPath); err != nil {
		return &errs.IOError{Op: "finalize", Path: outputPath, Err: err}
	}
	return nil
}
