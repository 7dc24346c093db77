package mlx

import (
	"encoding/json"
	"fmt"

	"github.com/yycdata/mlxsweep/internal/domain"
)

type wireTile struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Count     int     `json:"count"`
	ID        int64   `json:"id"`
	PixelSize int     `json:"pixelSize"`
}

// wireSearch covers both response shapes the endpoint emits: narrow
// queries key listings by id, broad ones carry a results array.
type wireSearch struct {
	TotalFound int                      `json:"totalFound"`
	Tiles      []wireTile               `json:"tiles"`
	Listings   map[string]domain.Record `json:"listings"`
	Results    []domain.Record          `json:"results"`
}

func parseSearch(body []byte) (domain.SearchResult, error) {
	var wire wireSearch
	if err := json.Unmarshal(body, &wire); err != nil {
		return domain.SearchResult{}, fmt.Errorf("decode: %w", err)
	}

	res := domain.SearchResult{TotalFound: wire.TotalFound}

	for _, t := range wire.Tiles {
		res.Tiles = append(res.Tiles, domain.Tile{
			Lat:       t.Lat,
			Lon:       t.Lon,
			Count:     t.Count,
			ID:        t.ID,
			PixelSize: t.PixelSize,
		})
	}

	switch {
	case wire.Listings != nil:
		for _, rec := range wire.Listings {
			res.Records = append(res.Records, rec)
		}
	case wire.Results != nil:
		res.Records = wire.Results
	}

	return res, nil
}
