package cache

import (
	"testing"

	"github.com/ipharvest/trademark-harvester/pkg/daterange"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "single day page one",
			key:  Key{From: "2020-01-01", To: "2020-01-01", Page: 1},
			want: "ipos:trademarks:2020-01-01:2020-01-01:p1",
		},
		{
			name: "multi day later page",
			key:  Key{From: "2020-01-01", To: "2020-01-07", Page: 3},
			want: "ipos:trademarks:2020-01-01:2020-01-07:p3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := Key{From: "2020-01-01", To: "2020-01-02", Page: 1}
	b := Key{From: "2020-01-01", To: "2020-01-02", Page: 1}
	if a.String() != b.String() {
		t.Error("identical keys produced different strings")
	}

	c := Key{From: "2020-01-01", To: "2020-01-02", Page: 2}
	if a.String() == c.String() {
		t.Error("different pages produced the same key")
	}
}

func TestChunkKey(t *testing.T) {
	r, err := daterange.Parse("2020-03-01", "2020-03-07")
	if err != nil {
		t.Fatalf("parse range: %v", err)
	}

	key := ChunkKey(r, 2)
	want := "ipos:trademarks:2020-03-01:2020-03-07:p2"
	if got := key.String(); got != want {
		t.Errorf("ChunkKey = %q, want %q", got, want)
	}
}
