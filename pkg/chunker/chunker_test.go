package chunker

import (
	"strings"
	"testing"
)

func TestChunk_SizeAndOverlap(t *testing.T) {
	text := strings.Repeat("a", 2500)
	opts := Options{ChunkSize: 1000, ChunkOverlap: 200}

	chunks := Chunk(text, opts)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}

	for i, ch := range chunks {
		if got := len([]rune(ch.Content)); got > opts.ChunkSize {
			t.Errorf("chunk %d has %d runes, want <= %d", i, got, opts.ChunkSize)
		}
		if ch.Index != i {
			t.Errorf("chunk %d Index=%d", i, ch.Index)
		}
	}

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Content)
		cur := []rune(chunks[i].Content)
		overlap := opts.ChunkOverlap
		if len(cur) < overlap {
			overlap = len(cur)
		}
		if string(cur[:overlap]) != string(prev[len(prev)-overlap:]) {
			t.Errorf("chunks %d/%d do not share %d overlapping runes", i-1, i, overlap)
		}
	}
}

func TestChunk_Reconstruction(t *testing.T) {
	text := "The quick brown fox jumps over the lazy dog. " + strings.Repeat("Lorem ipsum dolor sit amet. ", 60)
	opts := Options{ChunkSize: 100, ChunkOverlap: 25}

	chunks := Chunk(text, opts)

	var sb strings.Builder
	for i, ch := range chunks {
		runes := []rune(ch.Content)
		if i == 0 {
			sb.WriteString(ch.Content)
			continue
		}
		overlap := opts.ChunkOverlap
		if len(runes) < overlap {
			overlap = len(runes)
		}
		sb.WriteString(string(runes[overlap:]))
	}

	if sb.String() != text {
		t.Error("concatenating chunks minus overlaps did not reconstruct the input")
	}
}

func TestChunk_ExactCountForKnownInput(t *testing.T) {
	// 3000 runes with size 1000 / overlap 200 steps by 800:
	// starts at 0, 800, 1600, 2400.
	text := strings.Repeat("x", 3000)
	chunks := Chunk(text, Options{ChunkSize: 1000, ChunkOverlap: 200})
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	if chunks[3].End != 3000 {
		t.Errorf("last chunk End=%d, want 3000", chunks[3].End)
	}
}

func TestChunk_ShortInput(t *testing.T) {
	chunks := Chunk("hello", Options{ChunkSize: 1000, ChunkOverlap: 200})
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Content != "hello" {
		t.Errorf("chunk content %q", chunks[0].Content)
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	if got := Chunk("  \n\t ", DefaultOptions()); got != nil {
		t.Errorf("whitespace input should return nil, got %v", got)
	}
}

func TestChunk_OverlapAtLeastSize(t *testing.T) {
	// Overlap >= size would never advance; the step falls back to the
	// chunk size so the walk still terminates.
	text := strings.Repeat("y", 50)
	chunks := Chunk(text, Options{ChunkSize: 10, ChunkOverlap: 10})
	if len(chunks) != 5 {
		t.Fatalf("got %d chunks, want 5", len(chunks))
	}
}

func TestChunk_MultibyteRunes(t *testing.T) {
	text := strings.Repeat("\u3042\u3044\u3046\u3048\u304a", 100) // 500 runes
	chunks := Chunk(text, Options{ChunkSize: 200, ChunkOverlap: 50})
	for i, ch := range chunks {
		if got := len([]rune(ch.Content)); got > 200 {
			t.Errorf("chunk %d has %d runes", i, got)
		}
	}
}
