package core

import "testing"

func TestClassifyChunk(t *testing.T) {
	tests := []struct {
		name  string
		chunk []byte
		want  ChunkKind
	}{
		{"init segment", []byte{0, 0, 0, 24, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}, ChunkInit},
		{"media segment", []byte{0, 0, 1, 0, 'm', 'o', 'o', 'f', 0, 0}, ChunkMedia},
		{"unknown tag", []byte{0, 0, 0, 8, 'm', 'd', 'a', 't'}, ChunkUnknown},
		{"too short", []byte{0, 0, 0, 8, 'f', 't', 'y'}, ChunkUnknown},
		{"empty", nil, ChunkUnknown},
		{"tag not at offset 4", []byte{'f', 't', 'y', 'p', 0, 0, 0, 0}, ChunkUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyChunk(tt.chunk); got != tt.want {
				t.Fatalf("ClassifyChunk() = %v, want %v", got, tt.want)
			}
		})
	}
}
