/*
 * main.go, part of gomol.
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

//gomoldb queries gomol simulation databases from the command line:
//
//	gomoldb runs.db                          show the first rows
//	gomoldb runs.db 'energy<-5,relaxed=1'    filter rows
//	gomoldb runs.db --count 'formula=H2O'    just count them
//	gomoldb runs.db --json 'run=a'           dump matching rows as JSON
//	gomoldb runs.db 'relaxed=1' --insert-into good.db
package main

import (
	"fmt"
	"os"

	"github.com/gomolkit/gomol/db"
	kingpin "gopkg.in/alecthomas/kingpin.v2"
)

var (
	app       = kingpin.New("gomoldb", "Query gomol simulation databases.")
	dbFile    = app.Arg("database", "Database file.").Required().String()
	selection = app.Arg("selection", "Comma-separated key<op>value conditions (ops =, !=, <, >, <=, >=).").Default("").String()
	limit     = app.Flag("limit", "Show at most this many rows (0 for all).").Short('L').Default("20").Int()
	offset    = app.Flag("offset", "Skip this many matching rows.").Default("0").Int()
	count     = app.Flag("count", "Print the number of matching rows and nothing else.").Short('n').Bool()
	jsonOut   = app.Flag("json", "Write the matching rows to stdout as JSON.").Bool()
	insert    = app.Flag("insert-into", "Append the matching rows to another database.").PlaceHolder("DB-FILE").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))
	if err := run(); err != nil {
		app.Fatalf("%v", err)
	}
}

func run() error {
	d, err := db.Connect(*dbFile)
	if err != nil {
		return err
	}
	if *count {
		n, err := d.Count(*selection)
		if err != nil {
			return err
		}
		fmt.Println(n)
		return nil
	}
	if *jsonOut {
		return d.ExportJSON(os.Stdout, *selection)
	}
	if *insert != "" {
		return insertInto(d, *insert)
	}
	rows, err := d.Select(*selection, *limit, *offset)
	if err != nil {
		return err
	}
	fmt.Print(formatTable(rows))
	return nil
}

func insertInto(d *db.DB, target string) error {
	rows, err := d.Select(*selection, *limit, *offset)
	if err != nil {
		return err
	}
	dst, err := db.Connect(target)
	if err != nil {
		return err
	}
	for i := range rows {
		if _, err := dst.InsertRow(&rows[i]); err != nil {
			return err
		}
	}
	fmt.Printf("inserted %d rows into %s\n", len(rows), target)
	return nil
}
