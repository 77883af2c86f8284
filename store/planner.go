package store

import (
	"fmt"
	"strings"

	"nostrelay.dev/nostr"
)

// plannedQuery is an executable query: a parameterized SQL string plus its
// positional bind arguments. No user-supplied string is ever interpolated
// into the SQL text; hex values become parameter placeholders bound as
// []byte, and integers (kinds, timestamps) are bound as placeholders too.
type plannedQuery struct {
	sql  string
	args []any
}

// plan translates a subscription into a plannedQuery. Each filter becomes
// one parenthesized AND-conjunction of the clauses it has predicates for;
// filters combine with OR. A filter with no clauses (because it was empty,
// or because every value in it failed the hex check) degenerates to
// "hidden != 1" rather than to an unsatisfiable or unconstrained clause —
// so an all-invalid filter still returns only visible events instead of
// either nothing or everything.
func plan(sub *nostr.Subscription) plannedQuery {
	var sb strings.Builder
	sb.WriteString("SELECT DISTINCT e.content FROM event e " +
		"LEFT JOIN event_ref er ON e.id = er.event_id " +
		"LEFT JOIN pubkey_ref pr ON e.id = pr.event_id")

	var args []any
	var filterClauses []string

	for _, f := range sub.Filters {
		var components []string

		if clause, a := hexInClause("er.referenced_event", f.Events); clause != "" {
			components = append(components, clause)
			args = append(args, a...)
		}
		if clause, a := hexInClause("pr.referenced_pubkey", f.Pubkeys); clause != "" {
			components = append(components, clause)
			args = append(args, a...)
		}
		if clause, a := hexInClause("e.event_hash", f.IDs); clause != "" {
			components = append(components, clause)
			args = append(args, a...)
		}
		if clause, a := hexInClause("e.author", f.Authors); clause != "" {
			components = append(components, clause)
			args = append(args, a...)
		}
		if len(f.Kinds) > 0 {
			placeholders := make([]string, len(f.Kinds))
			for i, k := range f.Kinds {
				placeholders[i] = "?"
				args = append(args, k)
			}
			components = append(components, fmt.Sprintf("e.kind IN (%s)", strings.Join(placeholders, ", ")))
		}
		if f.Since != nil {
			components = append(components, "e.created_at > ?")
			args = append(args, *f.Since)
		}
		if f.Until != nil {
			components = append(components, "e.created_at < ?")
			args = append(args, *f.Until)
		}

		if len(components) > 0 {
			filterClauses = append(filterClauses, "( "+strings.Join(components, " AND ")+" )")
		} else {
			filterClauses = append(filterClauses, "e.hidden != 1")
		}
	}

	if len(filterClauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(filterClauses, " OR "))
	}
	sb.WriteString(" ORDER BY e.created_at ASC")

	return plannedQuery{sql: sb.String(), args: args}
}

// hexInClause builds a "column IN (?, ?, …)" clause from a set of
// hex-encoded values, dropping any value that fails the hex check rather
// than failing the whole query. Decoded bytes are returned as bind
// arguments, never as interpolated text — this is what makes the planner
// injection-safe regardless of what a client sends. An empty result
// (clause == "") means the caller should omit this predicate entirely.
func hexInClause(column string, values []string) (clause string, args []any) {
	if len(values) == 0 {
		return "", nil
	}
	placeholders := make([]string, 0, len(values))
	for _, v := range values {
		b, err := decodeHex(v)
		if err != nil {
			continue
		}
		placeholders = append(placeholders, "?")
		args = append(args, b)
	}
	if len(placeholders) == 0 {
		return "", nil
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), args
}

// decodeHex decodes a hex string into raw bytes, rejecting empty and
// odd-length input (a value has to be an even number of hex digits to
// decode into the whole bytes that are bound as a blob argument).
func decodeHex(s string) ([]byte, error) {
	if len(s) == 0 || len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length or empty hex value %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		hi, err := hexNibble(s[i*2])
		if err != nil {
			return nil, err
		}
		lo, err := hexNibble(s[i*2+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexNibble(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex character %q", c)
	}
}
