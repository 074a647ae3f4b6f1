/*
 * db.go, part of gomol.
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
Package db stores simulation results in a small single-file database: a ulm
archive with one frame per row. A row carries the bookkeeping columns (id,
mtime, user, chemical formula, atom count, energy, fmax), the positions of the
structure, and free-form key-value pairs. Rows are selected with
comma-separated "key<op>value" conditions, and a whole table can be exported
as JSON or backed up into a zstd-compressed copy.
*/
package db

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	gomol "github.com/gomolkit/gomol"
	"github.com/gomolkit/gomol/ulm"
	v3 "github.com/gomolkit/gomol/v3"
)

//Row is one database row.
type Row struct {
	ID        int64                  `json:"id"`
	Mtime     time.Time              `json:"mtime"`
	User      string                 `json:"user"`
	Formula   string                 `json:"formula"`
	Natoms    int                    `json:"natoms"`
	Energy    float64                `json:"energy"`
	Fmax      float64                `json:"fmax"`
	KeyVals   map[string]interface{} `json:"key_value_pairs,omitempty"`
	Positions [][]float64            `json:"positions,omitempty"`
}

//DB is a handle to one database file. It holds no open file descriptor
//between operations: every write appends to the archive and every read opens
//a fresh snapshot, so a handle is cheap and there is nothing to close.
type DB struct {
	path string
}

//Connect opens the database at path, creating an empty one if the file does
//not exist.
func Connect(path string) (*DB, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		w, err := ulm.Create(path)
		if err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return &DB{path: path}, nil
}

//Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

//Write appends one row for the given system and results, and returns its id.
//Ids start at 1 and never change; kv may be nil.
func (d *DB) Write(sys *gomol.System, energy, fmax float64, kv map[string]interface{}) (int64, error) {
	w, err := ulm.Append(d.path)
	if err != nil {
		return 0, err
	}
	id := int64(w.NItems()) + 1
	row := ulm.NewDict()
	row.Set("id", ulm.Int(id))
	row.Set("mtime", ulm.Int(time.Now().Unix()))
	row.Set("user", ulm.Str(userName()))
	row.Set("formula", ulm.Str(sys.Formula()))
	row.Set("natoms", ulm.Int(int64(sys.Len())))
	row.Set("energy", ulm.Float(energy))
	row.Set("fmax", ulm.Float(fmax))
	if len(kv) > 0 {
		kvd := ulm.NewDict()
		for k, v := range kv {
			val, err := toValue(v)
			if err != nil {
				w.Close()
				return 0, fmt.Errorf("db: key %q: %w", k, err)
			}
			kvd.Set(k, val)
		}
		row.Set("keyvals", ulm.DictValue(kvd))
	}
	for _, k := range row.Keys() {
		v, _ := row.Get(k)
		if err := w.Write(k, v); err != nil {
			w.Close()
			return 0, err
		}
	}
	if sys.Coords != nil {
		if err := w.AddArray("positions", ulm.DtypeFloat64, sys.Len(), 3); err != nil {
			w.Close()
			return 0, err
		}
		if err := w.FillDense(v3.Matrix2Dense(sys.Coords)); err != nil {
			w.Close()
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return id, nil
}

//InsertRow appends an already-materialized row, e.g. one selected from
//another database. The row gets a fresh id in this database; everything else
//is kept as it is, mtime and user included.
func (d *DB) InsertRow(row *Row) (int64, error) {
	w, err := ulm.Append(d.path)
	if err != nil {
		return 0, err
	}
	id := int64(w.NItems()) + 1
	scalars := []struct {
		k string
		v ulm.Value
	}{
		{"id", ulm.Int(id)},
		{"mtime", ulm.Int(row.Mtime.Unix())},
		{"user", ulm.Str(row.User)},
		{"formula", ulm.Str(row.Formula)},
		{"natoms", ulm.Int(int64(row.Natoms))},
		{"energy", ulm.Float(row.Energy)},
		{"fmax", ulm.Float(row.Fmax)},
	}
	for _, s := range scalars {
		if err := w.Write(s.k, s.v); err != nil {
			w.Close()
			return 0, err
		}
	}
	if len(row.KeyVals) > 0 {
		kvd := ulm.NewDict()
		for k, v := range row.KeyVals {
			val, err := toValue(v)
			if err != nil {
				w.Close()
				return 0, fmt.Errorf("db: key %q: %w", k, err)
			}
			kvd.Set(k, val)
		}
		if err := w.Write("keyvals", ulm.DictValue(kvd)); err != nil {
			w.Close()
			return 0, err
		}
	}
	if len(row.Positions) > 0 {
		flat := make([]float64, 0, 3*len(row.Positions))
		for _, p := range row.Positions {
			flat = append(flat, p[0], p[1], p[2])
		}
		if err := w.WriteFloats("positions", flat, len(row.Positions), 3); err != nil {
			w.Close()
			return 0, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, err
	}
	return id, nil
}

func userName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func toValue(v interface{}) (ulm.Value, error) {
	switch x := v.(type) {
	case bool:
		return ulm.Bool(x), nil
	case int:
		return ulm.Int(int64(x)), nil
	case int64:
		return ulm.Int(x), nil
	case float64:
		return ulm.Float(x), nil
	case string:
		return ulm.Str(x), nil
	}
	return ulm.Value{}, fmt.Errorf("unsupported value type %T", v)
}

//Count returns the number of rows matching the selection ("" matches all).
func (d *DB) Count(selection string) (int, error) {
	rows, err := d.Select(selection, 0, 0)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

//Select returns the rows matching the selection: comma-separated
//"key<op>value" conditions (ops =, !=, <, >, <=, >=) on the named columns or
//on key-value pairs, all of which must hold. limit > 0 caps the row count,
//offset skips matching rows from the front. An empty selection matches
//everything.
func (d *DB) Select(selection string, limit, offset int) ([]Row, error) {
	conds, err := parseSelection(selection)
	if err != nil {
		return nil, err
	}
	r, err := ulm.Open(d.path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	var rows []Row
	skipped := 0
	for _, fr := range r.Frames() {
		row, err := readRow(fr)
		if err != nil {
			return nil, err
		}
		if !matches(row, conds) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		rows = append(rows, *row)
		if limit > 0 && len(rows) == limit {
			break
		}
	}
	return rows, nil
}

//Get returns the row with the given id.
func (d *DB) Get(id int64) (*Row, error) {
	rows, err := d.Select(fmt.Sprintf("id=%d", id), 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("db: no row with id %d in %s", id, d.path)
	}
	return &rows[0], nil
}

//ExportJSON writes the rows matching the selection to w, one JSON document
//with a "rows" array.
func (d *DB) ExportJSON(w io.Writer, selection string) error {
	rows, err := d.Select(selection, 0, 0)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []Row{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{"rows": rows})
}

func readRow(fr *ulm.Frame) (*Row, error) {
	row := new(Row)
	var err error
	if row.ID, err = fr.Int("id"); err != nil {
		return nil, err
	}
	sec, err := fr.Int("mtime")
	if err != nil {
		return nil, err
	}
	row.Mtime = time.Unix(sec, 0)
	if row.User, err = fr.Str("user"); err != nil {
		return nil, err
	}
	if row.Formula, err = fr.Str("formula"); err != nil {
		return nil, err
	}
	nat, err := fr.Int("natoms")
	if err != nil {
		return nil, err
	}
	row.Natoms = int(nat)
	if row.Energy, err = fr.Float("energy"); err != nil {
		return nil, err
	}
	if row.Fmax, err = fr.Float("fmax"); err != nil {
		return nil, err
	}
	if fr.Has("keyvals") {
		kvd, err := fr.Dict("keyvals")
		if err != nil {
			return nil, err
		}
		row.KeyVals = map[string]interface{}{}
		for _, k := range kvd.Keys() {
			v, _ := kvd.Get(k)
			row.KeyVals[k] = fromValue(v)
		}
	}
	if fr.Has("positions") {
		p, err := fr.Proxy("positions")
		if err != nil {
			return nil, err
		}
		flat, err := p.AllFloat64s()
		if err != nil {
			return nil, err
		}
		row.Positions = make([][]float64, p.Len())
		for i := range row.Positions {
			row.Positions[i] = flat[3*i : 3*i+3]
		}
	}
	return row, nil
}

func fromValue(v ulm.Value) interface{} {
	switch v.Kind() {
	case ulm.KindBool:
		b, _ := v.Bool()
		return b
	case ulm.KindInt:
		i, _ := v.Int()
		return i
	case ulm.KindFloat:
		f, _ := v.Float()
		return f
	case ulm.KindString:
		s, _ := v.Str()
		return s
	}
	return nil
}

//Selection conditions

type condition struct {
	key string
	op  string
	val string
}

//the two-character ops come first, so "<=" is not parsed as "<".
var ops = []string{"<=", ">=", "!=", "<", ">", "="}

func parseSelection(selection string) ([]condition, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" {
		return nil, nil
	}
	var conds []condition
	for _, part := range strings.Split(selection, ",") {
		part = strings.TrimSpace(part)
		found := false
		for _, op := range ops {
			if i := strings.Index(part, op); i > 0 {
				conds = append(conds, condition{
					key: strings.TrimSpace(part[:i]),
					op:  op,
					val: strings.TrimSpace(part[i+len(op):]),
				})
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("db: no operator in selection term %q", part)
		}
	}
	return conds, nil
}

func matches(row *Row, conds []condition) bool {
	for _, c := range conds {
		v, ok := columnValue(row, c.key)
		if !ok {
			return false
		}
		if !compare(v, c.op, c.val) {
			return false
		}
	}
	return true
}

func columnValue(row *Row, key string) (interface{}, bool) {
	switch key {
	case "id":
		return row.ID, true
	case "user":
		return row.User, true
	case "formula":
		return row.Formula, true
	case "natoms":
		return row.Natoms, true
	case "energy":
		return row.Energy, true
	case "fmax":
		return row.Fmax, true
	case "mtime":
		return row.Mtime.Unix(), true
	}
	if row.KeyVals != nil {
		if v, ok := row.KeyVals[key]; ok {
			return v, true
		}
	}
	return nil, false
}

//compare matches a column value against the condition's right-hand side:
//numerically when both sides are numbers, as strings otherwise.
func compare(v interface{}, op, rhs string) bool {
	if lhs, ok := asFloat(v); ok {
		if r, err := strconv.ParseFloat(rhs, 64); err == nil {
			switch op {
			case "=":
				return lhs == r
			case "!=":
				return lhs != r
			case "<":
				return lhs < r
			case ">":
				return lhs > r
			case "<=":
				return lhs <= r
			case ">=":
				return lhs >= r
			}
			return false
		}
	}
	s := fmt.Sprintf("%v", v)
	switch op {
	case "=":
		return s == rhs
	case "!=":
		return s != rhs
	case "<":
		return s < rhs
	case ">":
		return s > rhs
	case "<=":
		return s <= rhs
	case ">=":
		return s >= rhs
	}
	return false
}

func asFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
