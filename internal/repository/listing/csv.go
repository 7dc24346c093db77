package listing

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/yycdata/mlxsweep/internal/domain"
)

var csvHeader = []string{
	"list_id", "mls_number", "area_code", "built_year",
	"street_number", "street_name", "street_direction", "street_type",
	"city", "postal_code", "latitude", "longitude",
	"square_feet", "avg_ft_price", "list_price", "sold_price",
	"price_difference", "percent_difference", "list_date", "sold_date",
	"bedrooms", "bathrooms", "agent", "office", "neighborhood", "detail_url",
}

// CSVSink mirrors saved listings into a CSV file. It is safe for
// concurrent use.
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created
// automatically.
func NewCSVSink(path string) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVSink{file: f, writer: w}, nil
}

// Save appends the slice's records as CSV rows.
func (c *CSVSink) Save(_ context.Context, area string, year int, records []domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range records {
		l := FromRecord(area, year, rec)
		row := []string{
			l.ListID, l.MLSNumber, l.AreaCode, strconv.Itoa(l.BuiltYear),
			l.StreetNumber, l.StreetName, l.StreetDir, l.StreetType,
			l.City, l.PostalCode, coord(l.Latitude), coord(l.Longitude),
			money(l.SquareFeet), money(l.AvgFtPrice), money(l.ListPrice), money(l.SoldPrice),
			money(l.PriceDiff), money(l.PercentDiff), l.ListDate, l.SoldDate,
			strconv.Itoa(l.Bedrooms), strconv.Itoa(l.Bathrooms),
			l.Agent, l.Office, l.Neighborhood, l.DetailURL,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		_ = c.file.Close()
		return err
	}
	return c.file.Close()
}

func coord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func money(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
