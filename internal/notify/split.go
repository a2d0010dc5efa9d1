package notify

import (
	"fmt"
	"strings"
)

// Split renders a message into send-ready bodies no longer than limit.
// Whole blocks move between parts; a block is never cut mid-entry. A
// multi-part result carries "[i/N] " prefixes so out-of-order delivery
// still reads sensibly.
func Split(m Message, limit int) []string {
	full := render(m.Header, m.Blocks, m.Footer)
	if len(full) <= limit {
		return []string{full}
	}

	pieces := make([]string, 0, len(m.Blocks)+2)
	if m.Header != "" {
		pieces = append(pieces, m.Header)
	}
	pieces = append(pieces, m.Blocks...)
	if m.Footer != "" {
		pieces = append(pieces, m.Footer)
	}

	// The tag width depends on the part count, which depends on the tag
	// width. Start at two digits and re-pack until the reserve fits the
	// count it produced.
	reserve := tagWidth(99)
	parts := pack(pieces, limit-reserve)
	for tagWidth(len(parts)) > reserve {
		reserve = tagWidth(len(parts))
		parts = pack(pieces, limit-reserve)
	}

	if len(parts) == 1 {
		return parts
	}
	for i := range parts {
		parts[i] = fmt.Sprintf("[%d/%d] %s", i+1, len(parts), parts[i])
	}
	return parts
}

// pack greedily fills parts up to budget, moving whole pieces only. An
// oversized single piece still goes out as its own part rather than
// being dropped.
func pack(pieces []string, budget int) []string {
	var parts []string
	var cur []string
	curLen := 0

	flush := func() {
		if len(cur) > 0 {
			parts = append(parts, strings.Join(cur, "\n\n"))
			cur = nil
			curLen = 0
		}
	}

	for _, piece := range pieces {
		need := len(piece)
		if curLen > 0 {
			need += 2 // joining blank line
		}
		if curLen > 0 && curLen+need > budget {
			flush()
			need = len(piece)
		}
		cur = append(cur, piece)
		curLen += need
	}
	flush()
	return parts
}

func tagWidth(n int) int {
	return len(fmt.Sprintf("[%d/%d] ", n, n))
}

func render(header string, blocks []string, footer string) string {
	pieces := make([]string, 0, len(blocks)+2)
	if header != "" {
		pieces = append(pieces, header)
	}
	pieces = append(pieces, blocks...)
	if footer != "" {
		pieces = append(pieces, footer)
	}
	return strings.Join(pieces, "\n\n")
}
