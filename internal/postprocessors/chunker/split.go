package chunker

import "strings"

// separators lists cut points from coarsest to finest. A cut is placed
// just after the separator, so it stays with the preceding chunk.
var separators = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? "},
	{" "},
}

// Split divides text into chunks of at most size runes, where each chunk
// starts overlap runes before the end of the previous one. Within each
// window the cut is made after the coarsest separator available,
// preferring the latest such position; when no separator fits the cut
// falls at exactly size runes.
//
// Empty or whitespace-only text yields nil. overlap >= size is reduced
// to size/4.
func Split(text string, size, overlap int) []string {
	if strings.TrimSpace(text) == "" || size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []string
	start := 0
	for {
		if n-start <= size {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}

		end := cutPoint(runes, start, start+overlap, start+size)
		chunks = append(chunks, string(runes[start:end]))
		start = end - overlap
	}
}

// cutPoint returns the largest c in (lo, hi] that directly follows a
// separator of the coarsest level present, or hi if none does. c > lo
// guarantees the next start moves forward.
func cutPoint(runes []rune, start, lo, hi int) int {
	for _, level := range separators {
		for c := hi; c > lo; c-- {
			for _, sep := range level {
				if endsWith(runes, start, c, sep) {
					return c
				}
			}
		}
	}
	return hi
}

// endsWith reports whether runes[start:c] ends with sep.
func endsWith(runes []rune, start, c int, sep string) bool {
	i := c
	for j := len(sep) - 1; j >= 0; j-- {
		i--
		if i < start || runes[i] != rune(sep[j]) {
			return false
		}
	}
	return true
}
