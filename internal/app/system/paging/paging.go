// internal/app/system/paging/paging.go
package paging

import (
	"net/http"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PageSize is the number of rows returned per page of a keyset-paged list.
const PageSize = 50

// LimitPlusOne returns PageSize+1 as int64 for look-ahead pagination
// (fetch one extra document to detect another page).
func LimitPlusOne() int64 { return int64(PageSize + 1) }

// Params are the cursor query parameters of a paged request.
// Before wins when both are set.
type Params struct {
	Before string
	After  string
}

// ParseParams reads ?before= and ?after= from the request.
func ParseParams(r *http.Request) Params {
	return Params{
		Before: query.Get(r, "before"),
		After:  query.Get(r, "after"),
	}
}

// Result holds the output of TrimPage.
type Result struct {
	HasPrev bool
	HasNext bool
}

// TrimPage trims a slice fetched with LimitPlusOne, already in display order.
//
// Going backwards, the extra row is the first one and a next page always
// exists. Going forwards, the extra row is the last one and a previous page
// exists only when an after cursor was given.
func TrimPage[T any](rows *[]T, p Params) Result {
	var res Result
	if p.Before != "" {
		if len(*rows) > PageSize {
			*rows = (*rows)[1:]
			res.HasPrev = true
		}
		res.HasNext = true
		return res
	}
	if len(*rows) > PageSize {
		*rows = (*rows)[:PageSize]
		res.HasNext = true
	}
	res.HasPrev = p.After != ""
	return res
}

// Direction indicates the pagination direction.
type Direction int

const (
	Forward  Direction = iota // sort ascending, "gt" cursor
	Backward                  // sort descending, "lt" cursor
)

// KeysetConfig holds the direction and decoded cursor of one request.
type KeysetConfig struct {
	Direction Direction
	SortOrder int // 1 ascending, -1 descending
	Cursor    *wafflemongo.Cursor
}

// ConfigureKeyset determines the direction and decodes the cursor.
// An undecodable cursor is treated as absent.
func ConfigureKeyset(p Params) KeysetConfig {
	cfg := KeysetConfig{Direction: Forward, SortOrder: 1}
	raw := p.After
	if p.Before != "" {
		cfg.Direction = Backward
		cfg.SortOrder = -1
		raw = p.Before
	}
	if raw != "" {
		if c, ok := wafflemongo.DecodeCursor(raw); ok {
			cfg.Cursor = &c
		}
	}
	return cfg
}

// ApplyToFind sets sort (sortField then _id) and the look-ahead limit.
func (cfg KeysetConfig) ApplyToFind(find *options.FindOptions, sortField string) {
	find.SetSort(bson.D{
		{Key: sortField, Value: cfg.SortOrder},
		{Key: "_id", Value: cfg.SortOrder},
	}).SetLimit(LimitPlusOne())
}

// KeysetWindow returns the cursor condition for the filter, or nil.
func (cfg KeysetConfig) KeysetWindow(sortField string) bson.M {
	if cfg.Cursor == nil {
		return nil
	}
	dir := "gt"
	if cfg.Direction == Backward {
		dir = "lt"
	}
	return wafflemongo.KeysetWindow(sortField, dir, cfg.Cursor.CI, cfg.Cursor.ID)
}

// Reverse reverses a slice in place.
func Reverse[T any](rows []T) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// BuildCursors encodes cursors for the first and last rows.
func BuildCursors[T any](rows []T, keyFn func(T) string, idFn func(T) primitive.ObjectID) (prev, next string) {
	if len(rows) == 0 {
		return "", ""
	}
	first := rows[0]
	last := rows[len(rows)-1]
	prev = wafflemongo.EncodeCursor(keyFn(first), idFn(first))
	next = wafflemongo.EncodeCursor(keyFn(last), idFn(last))
	return prev, next
}

// Finish turns fetched rows into a page: it restores display order, trims
// the look-ahead row and returns cursors only for pages that exist.
func Finish[T any](rows *[]T, cfg KeysetConfig, p Params, keyFn func(T) string, idFn func(T) primitive.ObjectID) (prev, next string) {
	if cfg.Direction == Backward {
		Reverse(*rows)
	}
	res := TrimPage(rows, p)
	prev, next = BuildCursors(*rows, keyFn, idFn)
	if !res.HasPrev {
		prev = ""
	}
	if !res.HasNext {
		next = ""
	}
	return prev, next
}
