package listing

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/yycdata/mlxsweep/internal/domain"
)

func sampleRecord() domain.Record {
	return domain.Record{
		"LIST_ID":        float64(17186820219),
		"MLS_NUM":        "A2015397",
		"STREET_NUMBER":  "101",
		"STREET_NAME":    "Arbour Crest",
		"STREET_DIR":     "NW",
		"STREET_TYPE":    "ROAD",
		"CITY":           "Calgary",
		"POSTAL_CODE":    "T3G 4L4",
		"PRICE_RAW":      float64(699900),
		"SOLD_PRICE_RAW": float64(712000),
		"LISTED_DATE":    float64(20221214),
		"SOLD_DATE":      float64(20221216),
		"AREA_SQ_FEET":   float64(2003),
		"TOTAL_BEDROOMS": "5",
		"TOTAL_BATHS":    "4",
		"LATITUDE":       51.13571976,
		"LONGITUDE":      -114.20541145,
		"AGENT_NAME":     "Test Agent",
		"OFFICE_NAME":    "Test Office",
		"LIST_SUBAREA":   "Arbour Lake",
	}
}

func TestFromRecord(t *testing.T) {
	l := FromRecord("C-443", 1998, sampleRecord())

	if l.ListID != "17186820219" {
		t.Errorf("ListID = %q", l.ListID)
	}
	if l.AreaCode != "C-443" || l.BuiltYear != 1998 {
		t.Errorf("area=%q year=%d", l.AreaCode, l.BuiltYear)
	}
	if l.ListDate != "20221214" || l.SoldDate != "20221216" {
		t.Errorf("dates = %q, %q", l.ListDate, l.SoldDate)
	}
	if l.Bedrooms != 5 || l.Bathrooms != 4 {
		t.Errorf("beds=%d baths=%d", l.Bedrooms, l.Bathrooms)
	}
	if l.PriceDiff != 12100 {
		t.Errorf("PriceDiff = %v, want 12100", l.PriceDiff)
	}
	if l.PercentDiff != 1.73 {
		t.Errorf("PercentDiff = %v, want 1.73", l.PercentDiff)
	}
	if l.AvgFtPrice != 349.43 {
		t.Errorf("AvgFtPrice = %v, want 349.43", l.AvgFtPrice)
	}
}

func TestFromRecord_ExplicitBuiltYearWins(t *testing.T) {
	rec := sampleRecord()
	rec["YEAR_BUILT"] = float64(1987)

	if l := FromRecord("C-443", 1998, rec); l.BuiltYear != 1987 {
		t.Errorf("BuiltYear = %d, want payload value 1987", l.BuiltYear)
	}
}

func TestFromRecord_ZeroListPrice(t *testing.T) {
	rec := sampleRecord()
	rec["PRICE_RAW"] = float64(0)

	l := FromRecord("C-443", 1998, rec)
	if l.PriceDiff != 0 || l.PercentDiff != 0 {
		t.Errorf("diffs = %v, %v; want zero when list price is missing", l.PriceDiff, l.PercentDiff)
	}
}

func TestCSVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "properties.csv")

	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	if err := sink.Save(context.Background(), "C-443", 1998, []domain.Record{sampleRecord()}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want header + 1", len(rows))
	}
	if rows[0][0] != "list_id" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "17186820219" || rows[1][1] != "A2015397" {
		t.Errorf("row = %v", rows[1])
	}
}

type recordingSink struct {
	areas []string
	err   error
}

func (r *recordingSink) Save(_ context.Context, area string, _ int, _ []domain.Record) error {
	if r.err != nil {
		return r.err
	}
	r.areas = append(r.areas, area)
	return nil
}

func TestFanOut(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	f := NewFanOut(a, b)

	if err := f.Save(context.Background(), "C-443", 1998, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(a.areas) != 1 || len(b.areas) != 1 {
		t.Errorf("saves = %d, %d; want 1 each", len(a.areas), len(b.areas))
	}

	boom := errors.New("disk full")
	f = NewFanOut(&recordingSink{err: boom}, b)
	if err := f.Save(context.Background(), "C-443", 1998, nil); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want the first sink's failure", err)
	}
	if len(b.areas) != 1 {
		t.Error("later sink ran after an earlier failure")
	}
}

type fakeBuiltYears struct {
	year int
	err  error
	urls []string
}

func (f *fakeBuiltYears) BuiltYear(_ context.Context, url string) (int, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return 0, f.err
	}
	return f.year, nil
}

func TestEnrichedSink_FillsMissingBuiltYear(t *testing.T) {
	inner := &recordingSink{}
	years := &fakeBuiltYears{year: 1997}
	s := NewEnrichedSink(inner, years, zap.NewNop())

	missing := domain.Record{"LIST_ID": "1", "DETAIL_URL": "https://example.com/l/1"}
	present := domain.Record{"LIST_ID": "2", "YEAR_BUILT": float64(1988), "DETAIL_URL": "https://example.com/l/2"}
	noURL := domain.Record{"LIST_ID": "3"}

	err := s.Save(context.Background(), "C-443", 2001, []domain.Record{missing, present, noURL})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Only the record missing a year and carrying a detail page is fetched.
	if len(years.urls) != 1 || years.urls[0] != "https://example.com/l/1" {
		t.Errorf("fetched urls = %v, want just the first record's", years.urls)
	}
	if y, ok := missing.Num("YEAR_BUILT"); !ok || y != 1997 {
		t.Errorf("YEAR_BUILT = %v (%v), want 1997", y, ok)
	}
	if y, _ := present.Num("YEAR_BUILT"); y != 1988 {
		t.Errorf("explicit YEAR_BUILT overwritten: %v", y)
	}
	if len(inner.areas) != 1 {
		t.Errorf("inner saves = %d, want 1", len(inner.areas))
	}

	// The mapper now prefers the fetched year over the slice year.
	if got := FromRecord("C-443", 2001, missing).BuiltYear; got != 1997 {
		t.Errorf("mapped BuiltYear = %d, want 1997", got)
	}
}

func TestEnrichedSink_FetchFailureStillSaves(t *testing.T) {
	inner := &recordingSink{}
	years := &fakeBuiltYears{err: errors.New("detail page timeout")}
	s := NewEnrichedSink(inner, years, zap.NewNop())

	rec := domain.Record{"LIST_ID": "1", "DETAIL_URL": "https://example.com/l/1"}
	if err := s.Save(context.Background(), "C-443", 2001, []domain.Record{rec}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, ok := rec.Num("YEAR_BUILT"); ok {
		t.Error("failed lookup still set YEAR_BUILT")
	}
	if len(inner.areas) != 1 {
		t.Error("failed lookup blocked the save")
	}
}

func TestEnrichedSink_Cancellation(t *testing.T) {
	inner := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	years := &fakeBuiltYears{err: ctx.Err()}
	s := NewEnrichedSink(inner, years, zap.NewNop())

	rec := domain.Record{"LIST_ID": "1", "DETAIL_URL": "https://example.com/l/1"}
	err := s.Save(ctx, "C-443", 2001, []domain.Record{rec})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(inner.areas) != 0 {
		t.Error("save proceeded after cancellation")
	}
}
