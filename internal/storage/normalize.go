package storage

import "regexp"

// camelKey matches a lowercase-to-uppercase transition, e.g. "helpfulCount".
var camelKey = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// normalizeKeysToSnake rewrites bare YAML mapping keys written in camelCase
// (as the JSON tags in internal/types would produce) into the snake_case
// form the yaml tags expect, so a playbook hand-edited or produced by an
// older camelCase writer still round-trips. Only keys (text immediately
// before a colon at the start of a line, ignoring indentation) are touched;
// string values are left alone.
func normalizeKeysToSnake(data []byte) []byte {
	lines := splitLines(data)
	for i, line := range lines {
		indent, rest := splitIndent(line)
		key, sep, value, ok := splitMappingKey(rest)
		if !ok {
			continue
		}
		lines[i] = indent + toSnakeCase(key) + sep + value
	}
	return joinLines(lines)
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	lines = append(lines, data[start:])
	return lines
}

func joinLines(lines [][]byte) []byte {
	out := make([]byte, 0, len(lines)*16)
	for i, l := range lines {
		out = append(out, l...)
		if i != len(lines)-1 {
			out = append(out, '\n')
		}
	}
	return out
}

func splitIndent(line []byte) (indent, rest []byte) {
	i := 0
	for i < len(line) && (line[i] == ' ' || line[i] == '-') {
		i++
	}
	return line[:i], line[i:]
}

// splitMappingKey splits "key: value" (or "key:") out of rest. It refuses to
// touch lines that look like list items, comments, or quoted keys, since
// those are never bullet/playbook field names.
func splitMappingKey(rest []byte) (key string, sep string, value []byte, ok bool) {
	if len(rest) == 0 || rest[0] == '#' || rest[0] == '"' || rest[0] == '\'' {
		return "", "", nil, false
	}
	colon := -1
	for i, b := range rest {
		if b == ':' {
			colon = i
			break
		}
		if b == ' ' {
			return "", "", nil, false
		}
	}
	if colon < 0 {
		return "", "", nil, false
	}
	return string(rest[:colon]), ":", rest[colon+1:], true
}

func toSnakeCase(key string) string {
	snake := camelKey.ReplaceAll([]byte(key), []byte("${1}_${2}"))
	out := make([]byte, len(snake))
	for i, b := range snake {
		if b >= 'A' && b <= 'Z' {
			out[i] = byte(b) + ('a' - 'A')
		} else {
			out[i] = byte(b)
		}
	}
	return string(out)
}
