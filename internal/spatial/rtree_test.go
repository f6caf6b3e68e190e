package spatial

import "testing"

func TestSearch(t *testing.T) {
	ix := NewIndex()
	ix.Insert(1, 0, 0, 1, 1)
	ix.Insert(2, 2, 2, 3, 3)
	ix.Insert(3, 0.5, 0.5, 2.5, 2.5)

	tests := []struct {
		name                           string
		minLon, minLat, maxLon, maxLat float64
		want                           map[int64]bool
	}{
		{name: "hits first box", minLon: 0.1, minLat: 0.1, maxLon: 0.4, maxLat: 0.4, want: map[int64]bool{1: true}},
		{name: "overlap region", minLon: 0.6, minLat: 0.6, maxLon: 0.9, maxLat: 0.9, want: map[int64]bool{1: true, 3: true}},
		{name: "hits all", minLon: 0, minLat: 0, maxLon: 3, maxLat: 3, want: map[int64]bool{1: true, 2: true, 3: true}},
		{name: "empty region", minLon: 10, minLat: 10, maxLon: 11, maxLat: 11, want: map[int64]bool{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ix.Search(tt.minLon, tt.minLat, tt.maxLon, tt.maxLat)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want ids %v", got, tt.want)
			}
			for _, id := range got {
				if !tt.want[id] {
					t.Errorf("unexpected id %d in %v", id, got)
				}
			}
		})
	}

	if ix.Len() != 3 {
		t.Errorf("Len() = %d, want 3", ix.Len())
	}
}

func TestSearchNearPoint(t *testing.T) {
	ix := NewIndex()
	// A degenerate box at the origin and another ~111m east
	ix.Insert(1, 0, 0, 0, 0)
	ix.Insert(2, 0.001, 0, 0.001, 0)

	near := ix.SearchNearPoint(0, 0, 50)
	if len(near) != 1 || near[0] != 1 {
		t.Errorf("50m search = %v, want [1]", near)
	}

	wide := ix.SearchNearPoint(0, 0, 200)
	if len(wide) != 2 {
		t.Errorf("200m search = %v, want both boxes", wide)
	}
}
