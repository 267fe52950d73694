package command

import (
	"fmt"
	"strings"
)

// SplitArgs splits an installer argument string into argv tokens.
//
// Whitespace separates tokens except inside double quotes. Quotes that wrap
// a whole token are removed ("C:\Program Files\x" becomes one bare token);
// quotes that appear inside a token are kept, so /v"/qn" stays intact.
func SplitArgs(s string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		inQuote bool
		started bool
	)

	flush := func() {
		if !started {
			return
		}
		tokens = append(tokens, unwrapQuotes(current.String()))
		current.Reset()
		started = false
	}

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			current.WriteRune(r)
			started = true
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush()
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if inQuote {
		return nil, fmt.Errorf("unterminated quote in arguments: %q", s)
	}
	flush()

	return tokens, nil
}

func unwrapQuotes(tok string) string {
	if len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"' && !strings.Contains(tok[1:len(tok)-1], `"`) {
		return tok[1 : len(tok)-1]
	}
	return tok
}
