package chunker

import "strings"

// Options controls how text is split. ChunkSize bounds each chunk in
// runes; ChunkOverlap is the exact number of trailing runes a chunk
// shares with its successor.
type Options struct {
	ChunkSize    int
	ChunkOverlap int
}

// TextChunk is one bounded window of the source text. Index preserves
// source order; Start and End are rune offsets.
type TextChunk struct {
	Content string
	Index   int
	Start   int
	End     int
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// Chunk splits text into overlapping fixed-size windows. Every chunk is
// at most ChunkSize runes and consecutive chunks share exactly
// ChunkOverlap runes, except possibly the final chunk, which may be
// shorter. Dropping the first ChunkOverlap runes of every chunk after
// the first and concatenating reconstructs the input. Whitespace-only
// input yields nil.
func Chunk(text string, opts Options) []TextChunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}

	if strings.TrimSpace(text) == "" {
		return nil
	}

	step := opts.ChunkSize - opts.ChunkOverlap
	if step <= 0 {
		step = opts.ChunkSize
	}

	runes := []rune(text)
	var chunks []TextChunk

	for start, idx := 0, 0; start < len(runes); start, idx = start+step, idx+1 {
		end := start + opts.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, TextChunk{
			Content: string(runes[start:end]),
			Index:   idx,
			Start:   start,
			End:     end,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks
}
