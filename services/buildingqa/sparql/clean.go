// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sparql

import "strings"

// CleanResponse normalizes a model-generated SPARQL reply.
//
// Description:
//
//	Strips the first fenced code block if present (models tend to wrap
//	queries in ```sparql fences) and prepends the Brick prefixes when the
//	reply lacks them. Returns the query trimmed.
func CleanResponse(reply string) string {
	q := strings.TrimSpace(reply)

	for _, marker := range []string{"```sparql", "```sql", "```"} {
		if idx := strings.Index(q, marker); idx >= 0 {
			rest := q[idx+len(marker):]
			if end := strings.Index(rest, "```"); end >= 0 {
				q = strings.TrimSpace(rest[:end])
			} else {
				q = strings.TrimSpace(rest)
			}
			break
		}
	}

	if !strings.Contains(q, "PREFIX brick:") {
		q = allPrefixes + "\n\n" + q
	}
	return q
}

// BasicSyntaxCheck is the minimal pre-execution gate: balanced brackets and,
// when prefixed names appear, at least one PREFIX declaration. It rejects
// the obvious garbage a model can emit; the endpoint remains the real
// parser, and its failures are handled fail-closed by the executor.
func BasicSyntaxCheck(q string) bool {
	if strings.TrimSpace(q) == "" {
		return false
	}

	pairs := map[byte]byte{'(': ')', '{': '}', '[': ']'}
	closers := map[byte]bool{')': true, '}': true, ']': true}
	var stack []byte
	for i := 0; i < len(q); i++ {
		ch := q[i]
		if _, ok := pairs[ch]; ok {
			stack = append(stack, ch)
			continue
		}
		if closers[ch] {
			if len(stack) == 0 {
				return false
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if pairs[open] != ch {
				return false
			}
		}
	}
	if len(stack) != 0 {
		return false
	}

	upper := strings.ToUpper(q)
	usesPrefix := false
	for _, tok := range strings.Fields(strings.ReplaceAll(q, "\n", " ")) {
		bare := strings.TrimPrefix(tok, "<")
		if strings.Contains(tok, ":") &&
			!strings.HasPrefix(bare, "http") &&
			!strings.HasPrefix(bare, "urn:") &&
			!strings.HasPrefix(strings.ToUpper(tok), "PREFIX") {
			usesPrefix = true
			break
		}
	}
	if usesPrefix && !strings.Contains(upper, "PREFIX") {
		return false
	}
	return true
}
