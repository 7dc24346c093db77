package domain

import (
	"fmt"
	"strconv"
)

// IDField is the source-provided identity key present on every well-formed
// listing record.
const IDField = "LIST_ID"

// Record is one listing exactly as the endpoint returned it. The enumeration
// core only ever reads the identity field; column interpretation belongs to
// the persistence layer.
type Record map[string]any

// ID returns the listing identity as a string, or "" when the source omitted
// it. The wire value may arrive as a JSON number or a string.
func (r Record) ID() string {
	v, ok := r[IDField]
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case int:
		return strconv.Itoa(id)
	default:
		return fmt.Sprintf("%v", id)
	}
}

// Str returns the named field as a string, or "" when absent.
func (r Record) Str(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// JSON numbers; dates and ids must not render in e-notation.
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", s)
	}
}

// Num returns the named field as a float64 and whether it was present and
// numeric. String-encoded numbers are accepted; the endpoint is inconsistent
// about them.
func (r Record) Num(field string) (float64, bool) {
	v, ok := r[field]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// SearchResult is the decoded outcome of a single search call.
type SearchResult struct {
	TotalFound int
	Records    []Record
	Tiles      []Tile
}

// Empty reports whether the call yielded neither a count nor records.
func (s SearchResult) Empty() bool {
	return s.TotalFound == 0 && len(s.Records) == 0
}

// PartitionResult is the aggregated outcome of fully resolving one window:
// the unique records found, the first-observed total, and whether the two
// matched.
type PartitionResult struct {
	TotalFound int
	Records    []Record
	Complete   bool
}
