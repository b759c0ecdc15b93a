package pdf

import (
	"strings"
	"unicode/utf8"
)

const DefaultChunkSize = 4000

// Chunker cuts text into pieces the server can turn into flashcards in one go.
// Paragraphs are kept whole when they fit; longer ones break between words.
type Chunker struct {
	size int
}

func NewChunker(size int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return &Chunker{size: size}
}

func (c *Chunker) Size() int { return c.size }

// Split never returns an empty chunk and no chunk is longer than Size runes.
func (c *Chunker) Split(text string) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, para := range paragraphs(text) {
		n := utf8.RuneCountInString(para)
		if n > c.size {
			flush()
			chunks = append(chunks, c.splitLong(para)...)
			continue
		}
		if curLen > 0 && curLen+2+n > c.size {
			flush()
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(para)
		curLen += n
	}
	flush()
	return chunks
}

func (c *Chunker) splitLong(para string) []string {
	var out []string
	var cur strings.Builder
	curLen := 0

	for _, word := range strings.Fields(para) {
		n := utf8.RuneCountInString(word)
		for n > c.size {
			if curLen > 0 {
				out = append(out, cur.String())
				cur.Reset()
				curLen = 0
			}
			runes := []rune(word)
			out = append(out, string(runes[:c.size]))
			word = string(runes[c.size:])
			n = len(runes) - c.size
		}
		if n == 0 {
			continue
		}
		if curLen > 0 && curLen+1+n > c.size {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(word)
		curLen += n
	}
	if curLen > 0 {
		out = append(out, cur.String())
	}
	return out
}

// paragraphs splits on blank lines and trims each piece.
func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	var cur []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			if len(cur) > 0 {
				out = append(out, strings.TrimSpace(strings.Join(cur, "\n")))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, line)
	}
	if len(cur) > 0 {
		out = append(out, strings.TrimSpace(strings.Join(cur, "\n")))
	}
	return out
}
