/*
 * report.go, part of gomol.
 *
 * Copyright 2026 The gomol developers
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

//Package report turns trajectory metadata into convergence plots: energy or
//largest force norm against the optimization step, as PNG files.
package report

import (
	"fmt"

	"github.com/gomolkit/gomol/traj"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

//series pulls one float column from every frame of a trajectory that has it.
func series(trajfile, key string) (plotter.XYs, error) {
	r, err := traj.New(trajfile)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	pts := make(plotter.XYs, 0, r.NFrames())
	for i := 0; i < r.NFrames(); i++ {
		fr, err := r.Frame(i)
		if err != nil {
			return nil, err
		}
		if !fr.Has(key) {
			continue
		}
		v, err := fr.Float(key)
		if err != nil {
			return nil, err
		}
		pts = append(pts, plotter.XY{X: float64(i), Y: v})
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("report: no %q values in %s", key, trajfile)
	}
	return pts, nil
}

func linePlot(title, ylabel string, pts plotter.XYs, outfile string) error {
	p := plot.New()
	p.Title.Text = title
	p.Title.Padding = 3 * vg.Millimeter
	p.X.Label.Text = "step"
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	l, s, err := plotter.NewLinePoints(pts)
	if err != nil {
		return err
	}
	p.Add(l, s)
	return p.Save(6*vg.Inch, 4*vg.Inch, outfile)
}

//Energy plots the potential energy of every frame of a trajectory against the
//step number, into a PNG (or whatever format outfile's extension names).
func Energy(trajfile, outfile string) error {
	pts, err := series(trajfile, "energy")
	if err != nil {
		return err
	}
	return linePlot("Energy convergence", "energy", pts, outfile)
}

//Fmax plots the largest per-atom force norm of every frame of a trajectory
//against the step number.
func Fmax(trajfile, outfile string) error {
	pts, err := series(trajfile, "fmax")
	if err != nil {
		return err
	}
	return linePlot("Force convergence", "fmax", pts, outfile)
}
