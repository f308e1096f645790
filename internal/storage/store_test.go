package storage

import (
	"encoding/json"
	"reflect"
	"testing"
)

func sampleRows() []Row {
	return []Row{
		NewLoadingRow("a", "10131", "ABC123", "October"),
		NewLoadingRow("b", "10131", "XYZ9", "March"),
	}
}

func TestUpsertByKeyMissReturnsInput(t *testing.T) {
	rows := sampleRows()
	got := UpsertByKey(rows, "nope", RowUpdate{IsLoading: Ptr(false)})

	if !reflect.DeepEqual(got, rows) {
		t.Fatalf("UpsertByKey miss changed list: %+v", got)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
}

func TestUpsertByKeyMergesOnlyMatchingRow(t *testing.T) {
	rows := sampleRows()
	iai := NumberCell(8)
	got := UpsertByKey(rows, "b", RowUpdate{
		IAIPrediction: &iai,
		IsLoading:     Ptr(false),
		Status:        Ptr(StatusResolved),
	})

	if got[1].IsLoading {
		t.Error("row b should no longer be loading")
	}
	if v, ok := got[1].IAIPrediction.Value(); !ok || v != 8 {
		t.Errorf("row b iai = %v, want 8", got[1].IAIPrediction)
	}
	if got[1].PartNumber != "XYZ9" {
		t.Errorf("untouched field changed: %q", got[1].PartNumber)
	}
	if !reflect.DeepEqual(got[0], rows[0]) {
		t.Error("row a should be unchanged")
	}
	// the input slice must not be mutated
	if !rows[1].IsLoading {
		t.Error("input row was mutated")
	}
}

func TestCellJSON(t *testing.T) {
	tests := []struct {
		name string
		cell Cell
		want string
	}{
		{"number", NumberCell(12), `12`},
		{"fraction", NumberCell(7.5), `7.5`},
		{"pending", PendingCell(), `"-"`},
		{"failed", FailedCell(), `"FAIL"`},
		{"zero value", Cell{}, `"-"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.cell)
			if err != nil {
				t.Fatalf("Marshal error: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("Marshal = %s, want %s", b, tt.want)
			}

			var back Cell
			if err := json.Unmarshal(b, &back); err != nil {
				t.Fatalf("Unmarshal error: %v", err)
			}
			if back.String() != tt.cell.String() {
				t.Errorf("round trip = %q, want %q", back.String(), tt.cell.String())
			}
		})
	}
}

func TestMemoryStoreBoundEvictsOldest(t *testing.T) {
	s := NewMemoryStore(3)
	for _, k := range []string{"1", "2", "3", "4", "5"} {
		if err := s.Insert(NewLoadingRow(k, "10131", "P"+k, "May")); err != nil {
			t.Fatalf("Insert error: %v", err)
		}
	}

	rows, _ := s.List()
	if len(rows) != 3 {
		t.Fatalf("len = %d, want 3", len(rows))
	}
	if rows[0].Key != "3" || rows[2].Key != "5" {
		t.Errorf("keys = %s..%s, want 3..5", rows[0].Key, rows[2].Key)
	}
	if rows[0].Seq >= rows[1].Seq {
		t.Error("Seq should increase with insertion order")
	}

	got, _ := s.GetByKey("1")
	if got != nil {
		t.Error("evicted row should be gone")
	}
}

func TestMemoryStoreUpdateMissingKeyIsNoop(t *testing.T) {
	s := NewMemoryStore(10)
	s.Insert(NewLoadingRow("a", "10131", "ABC", "May"))

	ok, err := s.Update("gone", RowUpdate{IsLoading: Ptr(false)})
	if err != nil || ok {
		t.Fatalf("Update(gone) = %v, %v; want false, nil", ok, err)
	}

	ok, err = s.Update("a", RowUpdate{IAIPrediction: Ptr(FailedCell()), IsLoading: Ptr(false)})
	if err != nil || !ok {
		t.Fatalf("Update(a) = %v, %v; want true, nil", ok, err)
	}
	row, _ := s.GetByKey("a")
	if row.IAIPrediction.String() != "FAIL" || row.IsLoading {
		t.Errorf("row = %+v", row)
	}
}

func TestMemoryStoreListIsSnapshot(t *testing.T) {
	s := NewMemoryStore(10)
	s.Insert(NewLoadingRow("a", "10131", "ABC", "May"))

	before, _ := s.List()
	s.Update("a", RowUpdate{IsLoading: Ptr(false)})

	if !before[0].IsLoading {
		t.Error("earlier List result changed after Update")
	}
}

func TestMemoryStoreClear(t *testing.T) {
	s := NewMemoryStore(10)
	s.Insert(NewLoadingRow("a", "10131", "ABC", "May"))
	s.Insert(NewLoadingRow("b", "10131", "DEF", "May"))

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	n, _ := s.Count()
	if n != 0 {
		t.Errorf("Count = %d after Clear", n)
	}
}
