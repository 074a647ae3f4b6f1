package db

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	gomol "github.com/gomolkit/gomol"
	v3 "github.com/gomolkit/gomol/v3"
)

func water(Te *testing.T) *gomol.System {
	atoms := []*gomol.Atom{
		{Symbol: "O", ID: 1},
		{Symbol: "H", ID: 2},
		{Symbol: "H", ID: 3},
	}
	coords := v3.Zeros(3)
	coords.Set(1, 0, 0.96)
	coords.Set(2, 0, -0.24)
	coords.Set(2, 1, 0.93)
	sys, err := gomol.NewSystem(atoms, coords)
	if err != nil {
		Te.Fatal(err)
	}
	return sys
}

func dimer(Te *testing.T, sym string) *gomol.System {
	atoms := []*gomol.Atom{{Symbol: sym}, {Symbol: sym}}
	coords := v3.Zeros(2)
	coords.Set(1, 2, 1.1)
	sys, err := gomol.NewSystem(atoms, coords)
	if err != nil {
		Te.Fatal(err)
	}
	return sys
}

func fill(Te *testing.T, d *DB) {
	if _, err := d.Write(water(Te), -14.2, 0.05, map[string]interface{}{"relaxed": true, "run": "a"}); err != nil {
		Te.Fatal(err)
	}
	if _, err := d.Write(dimer(Te, "N"), -5.8, 0.3, map[string]interface{}{"relaxed": false, "run": "a"}); err != nil {
		Te.Fatal(err)
	}
	if _, err := d.Write(dimer(Te, "O"), -9.9, 0.01, map[string]interface{}{"relaxed": true, "run": "b"}); err != nil {
		Te.Fatal(err)
	}
}

func TestWriteSelect(Te *testing.T) {
	fmt.Println("db write/select test!")
	d, err := Connect(filepath.Join(Te.TempDir(), "runs.db"))
	if err != nil {
		Te.Fatal(err)
	}
	fill(Te, d)
	n, err := d.Count("")
	if err != nil {
		Te.Fatal(err)
	}
	if n != 3 {
		Te.Fatalf("Count() = %d, want 3", n)
	}
	//numeric condition
	rows, err := d.Select("energy<-9", 0, 0)
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != 2 {
		Te.Fatalf("energy<-9 matched %d rows, want 2", len(rows))
	}
	//string condition on a column
	rows, err = d.Select("formula=H2O", 0, 0)
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Natoms != 3 {
		Te.Fatalf("formula=H2O gave %v", rows)
	}
	if rows[0].ID != 1 {
		Te.Errorf("first row has id %d", rows[0].ID)
	}
	if len(rows[0].Positions) != 3 || rows[0].Positions[1][0] != 0.96 {
		Te.Errorf("H2O positions came back wrong: %v", rows[0].Positions)
	}
	//conditions on key-value pairs, combined
	rows, err = d.Select("relaxed=1,run=a", 0, 0)
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Formula != "H2O" {
		Te.Fatalf("relaxed=1,run=a gave %d rows", len(rows))
	}
	//limit and offset
	rows, err = d.Select("", 2, 1)
	if err != nil {
		Te.Fatal(err)
	}
	if len(rows) != 2 || rows[0].ID != 2 || rows[1].ID != 3 {
		Te.Fatalf("limit/offset gave ids %v %v", rows[0].ID, rows[1].ID)
	}
	//a condition with no operator is an error
	if _, err := d.Select("energy", 0, 0); err == nil {
		Te.Error("operator-less selection accepted")
	}
	//an unknown key matches nothing
	n, err = d.Count("nope=1")
	if err != nil {
		Te.Fatal(err)
	}
	if n != 0 {
		Te.Errorf("unknown key matched %d rows", n)
	}
}

func TestGet(Te *testing.T) {
	d, err := Connect(filepath.Join(Te.TempDir(), "runs.db"))
	if err != nil {
		Te.Fatal(err)
	}
	fill(Te, d)
	row, err := d.Get(2)
	if err != nil {
		Te.Fatal(err)
	}
	if row.Formula != "N2" || row.Energy != -5.8 {
		Te.Errorf("row 2: %+v", row)
	}
	if _, err := d.Get(99); err == nil {
		Te.Error("Get(99) found a row")
	}
}

func TestExportJSON(Te *testing.T) {
	d, err := Connect(filepath.Join(Te.TempDir(), "runs.db"))
	if err != nil {
		Te.Fatal(err)
	}
	fill(Te, d)
	var buf bytes.Buffer
	if err := d.ExportJSON(&buf, "relaxed=1"); err != nil {
		Te.Fatal(err)
	}
	var doc struct {
		Rows []Row `json:"rows"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		Te.Fatal(err)
	}
	if len(doc.Rows) != 2 {
		Te.Fatalf("export has %d rows, want 2", len(doc.Rows))
	}
	if doc.Rows[0].Formula != "H2O" || doc.Rows[1].Formula != "O2" {
		Te.Errorf("exported formulas: %q %q", doc.Rows[0].Formula, doc.Rows[1].Formula)
	}
}

func TestBackupRestore(Te *testing.T) {
	fmt.Println("db backup/restore test!")
	dir := Te.TempDir()
	d, err := Connect(filepath.Join(dir, "runs.db"))
	if err != nil {
		Te.Fatal(err)
	}
	fill(Te, d)
	bak := filepath.Join(dir, "runs.db.zst")
	if err := d.Backup(bak); err != nil {
		Te.Fatal(err)
	}
	r, err := Restore(bak, filepath.Join(dir, "restored.db"))
	if err != nil {
		Te.Fatal(err)
	}
	n, err := r.Count("")
	if err != nil {
		Te.Fatal(err)
	}
	if n != 3 {
		Te.Fatalf("restored database has %d rows", n)
	}
	row, err := r.Get(3)
	if err != nil {
		Te.Fatal(err)
	}
	if row.Formula != "O2" || row.Fmax != 0.01 {
		Te.Errorf("restored row 3: %+v", row)
	}
	//restoring onto an existing file must refuse
	if _, err := Restore(bak, filepath.Join(dir, "runs.db")); err == nil {
		Te.Error("Restore overwrote an existing database")
	}
}

func TestInsertRow(Te *testing.T) {
	dir := Te.TempDir()
	src, err := Connect(filepath.Join(dir, "src.db"))
	if err != nil {
		Te.Fatal(err)
	}
	fill(Te, src)
	dst, err := Connect(filepath.Join(dir, "dst.db"))
	if err != nil {
		Te.Fatal(err)
	}
	rows, err := src.Select("relaxed=1", 0, 0)
	if err != nil {
		Te.Fatal(err)
	}
	for i := range rows {
		if _, err := dst.InsertRow(&rows[i]); err != nil {
			Te.Fatal(err)
		}
	}
	n, err := dst.Count("")
	if err != nil {
		Te.Fatal(err)
	}
	if n != 2 {
		Te.Fatalf("destination has %d rows, want 2", n)
	}
	//ids are renumbered, the rest survives
	row, err := dst.Get(2)
	if err != nil {
		Te.Fatal(err)
	}
	if row.Formula != "O2" || row.Energy != -9.9 || row.KeyVals["run"] != "b" {
		Te.Errorf("transferred row: %+v", row)
	}
	if len(row.Positions) != 2 || row.Positions[1][2] != 1.1 {
		Te.Errorf("transferred positions: %v", row.Positions)
	}
}

func TestConnectExisting(Te *testing.T) {
	path := filepath.Join(Te.TempDir(), "runs.db")
	d, err := Connect(path)
	if err != nil {
		Te.Fatal(err)
	}
	if _, err := d.Write(water(Te), -1, 0.1, nil); err != nil {
		Te.Fatal(err)
	}
	//a second Connect sees the same data
	d2, err := Connect(path)
	if err != nil {
		Te.Fatal(err)
	}
	n, err := d2.Count("")
	if err != nil {
		Te.Fatal(err)
	}
	if n != 1 {
		Te.Errorf("reconnected database has %d rows", n)
	}
}
