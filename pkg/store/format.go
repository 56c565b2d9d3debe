package store

import "strings"

// Entry is a single KEY:VALUE line.
type Entry struct {
	Key   string
	Value string

	noDivider bool
}

// Valid reports whether the line carried a KEY:VALUE divider.
func (e Entry) Valid() bool {
	return !e.noDivider
}

// Line renders the entry as a newline-terminated line.
func (e Entry) Line() string {
	if e.noDivider {
		return e.Key + "\n"
	}
	return e.Key + ":" + e.Value + "\n"
}

// Parse splits data into entries. Parsing stops at the first empty or
// unterminated line. A line without a colon is kept verbatim so a rewrite
// reproduces it, but it never matches a key.
func Parse(data []byte) []Entry {
	text := string(data)
	var entries []Entry
	for {
		nl := strings.IndexByte(text, '\n')
		if nl <= 0 {
			// nl == 0: empty line; nl < 0: unterminated tail
			return entries
		}
		line := text[:nl]
		text = text[nl+1:]

		key, value, ok := strings.Cut(line, ":")
		entries = append(entries, Entry{Key: key, Value: value, noDivider: !ok})
	}
}

// Format renders entries back into file content.
func Format(entries []Entry) []byte {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Line())
	}
	return []byte(b.String())
}
