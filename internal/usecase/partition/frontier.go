package partition

import "github.com/yycdata/mlxsweep/internal/domain"

// centroidTileID marks the synthetic seed tile placed on the area centroid.
// The endpoint only issues positive tile ids.
const centroidTileID = -1

// Frontier tracks which tiles still need to be queried for one window and
// which ids have already been seen, so a tile the endpoint keeps re-returning
// is queried at most once.
//
// Pop order is newest-first: tiles discovered by the latest response are
// denser hints than the speculative centroid seed, so they are drained before
// it. The algorithm is correct under any order because completeness is
// checked after every query.
type Frontier struct {
	stack []domain.Tile
	seen  map[int64]struct{}
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{seen: make(map[int64]struct{})}
}

// Seed initializes the frontier for a window: the sentinel tile (whole-window
// query, no bounding box) on top, and a tile on the area centroid below it as
// a fallback when the sentinel response carries no tiles. A zero centroid
// (geocoding failed) seeds only the sentinel.
func (f *Frontier) Seed(centroid domain.Point) {
	if centroid != (domain.Point{}) {
		f.push(domain.Tile{Lat: centroid.Lat, Lon: centroid.Lon, ID: centroidTileID})
	}
	f.push(domain.Tile{})
}

// EnqueueIfNew adds the tile unless a tile with the same id was already
// queued or visited. Reports whether it was added; callers only log this.
func (f *Frontier) EnqueueIfNew(t domain.Tile) bool {
	if _, ok := f.seen[t.ID]; ok {
		return false
	}
	f.push(t)
	return true
}

// Pop removes and returns the next tile, marking it visited.
// Must not be called on an empty frontier.
func (f *Frontier) Pop() domain.Tile {
	t := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return t
}

// Empty reports whether no unvisited tiles remain.
func (f *Frontier) Empty() bool { return len(f.stack) == 0 }

func (f *Frontier) push(t domain.Tile) {
	f.seen[t.ID] = struct{}{}
	f.stack = append(f.stack, t)
}
