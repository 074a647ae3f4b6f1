/*
 * format.go, part of gomol.
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

package main

import (
	"fmt"
	"sort"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/gomolkit/gomol/db"
)

//formatTable renders rows as an aligned text table: the fixed columns, then
//one column per key-value key seen in any of the rows, alphabetically.
func formatTable(rows []db.Row) string {
	if len(rows) == 0 {
		return "no rows\n"
	}
	keys := kvKeys(rows)
	header := append([]string{"id", "age", "user", "formula", "natoms", "energy", "fmax"}, keys...)
	cells := make([][]string, 0, len(rows)+1)
	cells = append(cells, header)
	for i := range rows {
		r := &rows[i]
		row := []string{
			fmt.Sprintf("%d", r.ID),
			humanize.Time(r.Mtime),
			r.User,
			r.Formula,
			fmt.Sprintf("%d", r.Natoms),
			fmt.Sprintf("%.3f", r.Energy),
			fmt.Sprintf("%.3f", r.Fmax),
		}
		for _, k := range keys {
			if v, ok := r.KeyVals[k]; ok {
				row = append(row, fmt.Sprintf("%v", v))
			} else {
				row = append(row, "")
			}
		}
		cells = append(cells, row)
	}
	widths := make([]int, len(header))
	for _, row := range cells {
		for c, s := range row {
			if len(s) > widths[c] {
				widths[c] = len(s)
			}
		}
	}
	var b strings.Builder
	for _, row := range cells {
		for c, s := range row {
			if c > 0 {
				b.WriteString("  ")
			}
			fmt.Fprintf(&b, "%-*s", widths[c], s)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func kvKeys(rows []db.Row) []string {
	seen := map[string]bool{}
	for i := range rows {
		for k := range rows[i].KeyVals {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
