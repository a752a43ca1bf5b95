package slots

import "strings"

// SegmentType identifies the type of a template segment.
type SegmentType int

// SegmentType constants.
const (
	SegmentText   SegmentType = iota // literal text
	SegmentMarker                    // <name>
)

// Segment is a piece of a template: either literal text or a marker.
// For markers, Value holds the bare name and Raw the original "<name>".
type Segment struct {
	Type  SegmentType
	Value string
	Raw   string
}

// Scan splits a template into literal text and <name> markers. Anything that
// looks like '<' but is not followed by a word identifier and '>' is kept as
// text. Adjacent text is merged into one segment.
func Scan(template string) []Segment {
	var (
		segs []Segment
		text strings.Builder
	)

	flush := func() {
		if text.Len() > 0 {
			segs = append(segs, Segment{Type: SegmentText, Value: text.String(), Raw: text.String()})
			text.Reset()
		}
	}

	for i := 0; i < len(template); {
		if template[i] == '<' {
			if n := markerLen(template[i:]); n > 0 {
				flush()
				raw := template[i : i+n]
				segs = append(segs, Segment{Type: SegmentMarker, Value: raw[1 : n-1], Raw: raw})
				i += n
				continue
			}
		}
		text.WriteByte(template[i])
		i++
	}
	flush()

	return segs
}

// markerLen returns the length of a marker at the start of s, or 0.
func markerLen(s string) int {
	i := 1
	for i < len(s) && isWordByte(s[i]) {
		i++
	}
	if i == 1 || i >= len(s) || s[i] != '>' {
		return 0
	}
	return i + 1
}

func isWordByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}
