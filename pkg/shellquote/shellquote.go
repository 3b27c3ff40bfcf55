// Package shellquote renders command lines that can be pasted into bash or zsh.
package shellquote

import (
	"slices"
	"strings"
)

// Mask replaces the values of redacted flags.
const Mask = "***"

const safeChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_@%+=:,./-"

// Quote returns s unchanged when it only holds safe characters,
// otherwise double-quoted with \ " $ ` escaped.
func Quote(s string) string {
	if s == "" {
		return `""`
	}

	if strings.Trim(s, safeChars) == "" {
		return s
	}

	var b strings.Builder

	b.WriteByte('"')

	for _, r := range s {
		switch r {
		case '\\', '"', '$', '`':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}

	b.WriteByte('"')

	return b.String()
}

// Join constructs a shell-pasteable command line from bin and args.
// The argument following any flag listed in redact is replaced by Mask.
func Join(bin string, args []string, redact ...string) string {
	var line strings.Builder

	line.WriteString(Quote(bin))

	for i, arg := range args {
		line.WriteByte(' ')

		if i > 0 && slices.Contains(redact, args[i-1]) {
			line.WriteString(Mask)

			continue
		}

		line.WriteString(Quote(arg))
	}

	return line.String()
}
