package query

import (
	"fmt"
	"strings"

	"github.com/armash/log-ingestor/internal/types"
)

// Filters selects which records are forwarded to the sink. Empty fields
// match everything.
type Filters struct {
	Level   string
	Service string
	Search  string
}

// IsZero reports whether f matches every record.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// Matches reports whether rec passes every filter. Level and service compare
// case-insensitively; Search is a case-insensitive substring of the message.
func (f Filters) Matches(rec types.Record) bool {
	if f.Level != "" && !strings.EqualFold(rec.Level, f.Level) {
		return false
	}
	if f.Service != "" && !strings.EqualFold(rec.Service, f.Service) {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(rec.Message), strings.ToLower(f.Search)) {
		return false
	}
	return true
}

// Merge combines two filter sets. A field set in both must agree.
func Merge(a, b Filters) (Filters, error) {
	out := a
	for _, f := range []struct {
		name string
		dst  *string
		val  string
	}{
		{"level", &out.Level, b.Level},
		{"service", &out.Service, b.Service},
		{"message", &out.Search, b.Search},
	} {
		switch {
		case f.val == "":
		case *f.dst == "":
			*f.dst = f.val
		case !strings.EqualFold(*f.dst, f.val):
			return Filters{}, fmt.Errorf("conflicting %s filters: %q and %q", f.name, *f.dst, f.val)
		}
	}
	return out, nil
}

// Parse parses a simple AND-only filter DSL.
// Supported forms:
// level=ERROR
// service=auth
// message~"timed out"
// search~timeout
func Parse(input string) (Filters, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return Filters{}, err
	}

	var f Filters
	for _, t := range tokens {
		key, op, val, err := splitToken(t)
		if err != nil {
			return Filters{}, err
		}

		switch strings.ToLower(key) {
		case "level":
			if op != "=" {
				return Filters{}, fmt.Errorf("level supports only '='")
			}
			f.Level = val
		case "service":
			if op != "=" {
				return Filters{}, fmt.Errorf("service supports only '='")
			}
			f.Service = val
		case "message", "search":
			f.Search = val
		default:
			return Filters{}, fmt.Errorf("unknown filter: %s", key)
		}
	}
	return f, nil
}

func splitToken(token string) (key, op, val string, err error) {
	idx := strings.IndexAny(token, "~=")
	if idx < 0 {
		return "", "", "", fmt.Errorf("expected key=value or key~value")
	}

	key = strings.TrimSpace(token[:idx])
	op = token[idx : idx+1]
	val = strings.TrimSpace(token[idx+1:])
	if key == "" || val == "" {
		return "", "", "", fmt.Errorf("invalid token: %s", token)
	}
	return key, op, val, nil
}

// tokenize splits input on spaces and tabs. Quotes group words and are removed.
func tokenize(input string) ([]string, error) {
	var (
		tokens  []string
		b       strings.Builder
		inQuote byte
	)

	for i := 0; i < len(input); i++ {
		ch := input[i]
		switch {
		case inQuote != 0:
			if ch == inQuote {
				inQuote = 0
			} else {
				b.WriteByte(ch)
			}
		case ch == '"' || ch == '\'':
			inQuote = ch
		case ch == ' ' || ch == '\t':
			if b.Len() > 0 {
				tokens = append(tokens, b.String())
				b.Reset()
			}
		default:
			b.WriteByte(ch)
		}
	}

	if inQuote != 0 {
		return nil, fmt.Errorf("unterminated quote")
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens, nil
}
