package paging

import (
	"net/http/httptest"
	"testing"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestParseParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/entries?after=abc&before=", nil)
	p := ParseParams(r)
	if p.After != "abc" || p.Before != "" {
		t.Errorf("ParseParams() = %+v", p)
	}
}

func TestTrimPage(t *testing.T) {
	tests := []struct {
		name    string
		rows    int
		params  Params
		wantLen int
		want    Result
	}{
		{"first page, short", 3, Params{}, 3, Result{}},
		{"first page, has next", PageSize + 1, Params{}, PageSize, Result{HasNext: true}},
		{"forward, has next", PageSize + 1, Params{After: "c"}, PageSize, Result{HasPrev: true, HasNext: true}},
		{"forward, last page", 3, Params{After: "c"}, 3, Result{HasPrev: true}},
		{"backward, has prev", PageSize + 1, Params{Before: "c"}, PageSize, Result{HasPrev: true, HasNext: true}},
		{"backward, first page", 3, Params{Before: "c"}, 3, Result{HasNext: true}},
		{"empty", 0, Params{}, 0, Result{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([]int, tt.rows)
			got := TrimPage(&rows, tt.params)
			if len(rows) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(rows), tt.wantLen)
			}
			if got != tt.want {
				t.Errorf("TrimPage() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTrimPage_BackwardDropsFirst(t *testing.T) {
	rows := make([]int, PageSize+1)
	for i := range rows {
		rows[i] = i
	}
	TrimPage(&rows, Params{Before: "c"})
	if rows[0] != 1 || rows[len(rows)-1] != PageSize {
		t.Errorf("kept %d..%d, want 1..%d", rows[0], rows[len(rows)-1], PageSize)
	}
}

func TestConfigureKeyset(t *testing.T) {
	valid := wafflemongo.EncodeCursor("m", primitive.NewObjectID())
	tests := []struct {
		name       string
		params     Params
		wantDir    Direction
		wantOrder  int
		wantCursor bool
	}{
		{"first page", Params{}, Forward, 1, false},
		{"after", Params{After: valid}, Forward, 1, true},
		{"before", Params{Before: valid}, Backward, -1, true},
		{"before wins", Params{Before: valid, After: "x"}, Backward, -1, true},
		{"garbage cursor", Params{After: "%%%"}, Forward, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConfigureKeyset(tt.params)
			if got.Direction != tt.wantDir || got.SortOrder != tt.wantOrder {
				t.Errorf("ConfigureKeyset() = %+v", got)
			}
			if (got.Cursor != nil) != tt.wantCursor {
				t.Errorf("cursor present = %v, want %v", got.Cursor != nil, tt.wantCursor)
			}
			if (got.KeysetWindow("slug") != nil) != tt.wantCursor {
				t.Error("KeysetWindow should be set exactly when a cursor is")
			}
		})
	}
}

func TestReverse(t *testing.T) {
	tests := []struct {
		input []int
		want  []int
	}{
		{[]int{}, []int{}},
		{[]int{1}, []int{1}},
		{[]int{1, 2}, []int{2, 1}},
		{[]int{1, 2, 3}, []int{3, 2, 1}},
	}
	for _, tt := range tests {
		rows := append([]int(nil), tt.input...)
		Reverse(rows)
		for i := range rows {
			if rows[i] != tt.want[i] {
				t.Errorf("Reverse(%v) = %v, want %v", tt.input, rows, tt.want)
				break
			}
		}
	}
}

type item struct {
	Key string
	ID  primitive.ObjectID
}

func key(i item) string            { return i.Key }
func id(i item) primitive.ObjectID { return i.ID }

func TestBuildCursors(t *testing.T) {
	if prev, next := BuildCursors([]item{}, key, id); prev != "" || next != "" {
		t.Errorf("empty rows gave (%q, %q)", prev, next)
	}

	one := []item{{"a", primitive.NewObjectID()}}
	prev, next := BuildCursors(one, key, id)
	if prev == "" || prev != next {
		t.Errorf("single row gave (%q, %q)", prev, next)
	}

	two := []item{{"a", primitive.NewObjectID()}, {"b", primitive.NewObjectID()}}
	prev, next = BuildCursors(two, key, id)
	if prev == next {
		t.Error("first and last cursors should differ")
	}
}

func TestFinish(t *testing.T) {
	rows := make([]item, PageSize+1)
	for i := range rows {
		rows[i] = item{Key: string(rune('a' + i%26)), ID: primitive.NewObjectID()}
	}

	p := Params{}
	page := append([]item(nil), rows...)
	prev, next := Finish(&page, ConfigureKeyset(p), p, key, id)
	if len(page) != PageSize || prev != "" || next == "" {
		t.Errorf("first page: len=%d prev=%q next=%q", len(page), prev, next)
	}

	// Backward fetches arrive newest-first and come out in display order.
	p = Params{Before: next}
	back := []item{rows[2], rows[1], rows[0]}
	prev, next = Finish(&back, ConfigureKeyset(p), p, key, id)
	if back[0].ID != rows[0].ID || back[2].ID != rows[2].ID {
		t.Error("backward page not restored to display order")
	}
	if prev != "" || next == "" {
		t.Errorf("backward first page: prev=%q next=%q", prev, next)
	}
}
