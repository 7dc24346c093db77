package domain

// Tile is a geographic cluster hint returned alongside capped search results.
// Identity is the ID field alone: the endpoint re-issues the same tile with a
// drifting count across calls, so Count is advisory and never compared.
type Tile struct {
	Lat       float64
	Lon       float64
	Count     int
	ID        int64
	PixelSize int
}

// Sentinel reports whether this is the zero tile, meaning "query the whole
// window with no spatial narrowing".
func (t Tile) Sentinel() bool { return t.ID == 0 }

// Bound derives the square bounding box of radius degrees around the tile
// center.
func (t Tile) Bound(radius float64) BoundingBox {
	return NewBoundingBox(t.Lat, t.Lon, radius)
}

// BoundingBox is a spatial query constraint derived from a tile center and a
// radius. It is computed on demand and never stored.
type BoundingBox struct {
	SWLat     float64
	SWLng     float64
	NELat     float64
	NELng     float64
	CenterLat float64
	CenterLng float64
}

// NewBoundingBox builds the box of radius degrees around a center point.
func NewBoundingBox(lat, lon, radius float64) BoundingBox {
	return BoundingBox{
		SWLat:     lat - radius,
		SWLng:     lon - radius,
		NELat:     lat + radius,
		NELng:     lon + radius,
		CenterLat: lat,
		CenterLng: lon,
	}
}

// Point is a geographic coordinate, used for area centroids.
type Point struct {
	Lat float64
	Lon float64
}
