/*
 * doc.go, part of gomol.
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

/*
Package gomol provides atom and system structures for computational chemistry,
interfaces for energy/force calculators and for trajectory handles, and the
error interfaces shared by every gomol subpackage.

The heavy lifting lives in the subpackages: ulm (the binary archive format used
to persist simulation frames), traj (trajectories stored in ulm archives),
optimize (geometry optimizers), calc (simple force/energy providers),
spacegroup (symmetry-preserving glue over an external symmetry oracle),
db (an archive-backed results database) and report (convergence plots).
*/
package gomol
