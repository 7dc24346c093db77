package partition

import (
	"testing"

	"github.com/yycdata/mlxsweep/internal/domain"
)

func TestFrontier_SeedOrder(t *testing.T) {
	f := NewFrontier()
	f.Seed(domain.Point{Lat: 51.05, Lon: -114.05})

	first := f.Pop()
	if !first.Sentinel() {
		t.Fatalf("first pop should be the sentinel, got id %d", first.ID)
	}

	second := f.Pop()
	if second.ID != centroidTileID {
		t.Fatalf("second pop should be the centroid seed, got id %d", second.ID)
	}
	if second.Lat != 51.05 || second.Lon != -114.05 {
		t.Errorf("centroid seed at %v,%v", second.Lat, second.Lon)
	}
	if !f.Empty() {
		t.Error("frontier should be empty after draining seeds")
	}
}

func TestFrontier_SeedWithoutCentroid(t *testing.T) {
	f := NewFrontier()
	f.Seed(domain.Point{})

	if !f.Pop().Sentinel() {
		t.Fatal("expected sentinel")
	}
	if !f.Empty() {
		t.Error("zero centroid should seed only the sentinel")
	}
}

func TestFrontier_DiscoveredBeforeSeed(t *testing.T) {
	f := NewFrontier()
	f.Seed(domain.Point{Lat: 51, Lon: -114})
	f.Pop() // sentinel

	f.EnqueueIfNew(domain.Tile{ID: 7})
	if got := f.Pop(); got.ID != 7 {
		t.Errorf("discovered tile should pop before the centroid seed, got id %d", got.ID)
	}
	if got := f.Pop(); got.ID != centroidTileID {
		t.Errorf("expected centroid seed last, got id %d", got.ID)
	}
}

func TestFrontier_EnqueueIfNew(t *testing.T) {
	f := NewFrontier()
	f.Seed(domain.Point{Lat: 51, Lon: -114})

	if !f.EnqueueIfNew(domain.Tile{ID: 7, Count: 3}) {
		t.Error("fresh tile should be added")
	}
	if f.EnqueueIfNew(domain.Tile{ID: 7, Count: 99}) {
		t.Error("same id with drifted count is the same tile")
	}

	// Drain, then re-offer a visited id.
	for !f.Empty() {
		f.Pop()
	}
	if f.EnqueueIfNew(domain.Tile{ID: 7}) {
		t.Error("visited tile must never be re-queued")
	}
	if f.EnqueueIfNew(domain.Tile{ID: 0}) {
		t.Error("the sentinel id is seeded and must not be re-queued")
	}
}
