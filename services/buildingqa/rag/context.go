// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rag

import (
	"fmt"
	"strings"
)

// contextHeader introduces the numbered snippet block handed to the query
// generators. Kept as a constant so tests and prompts stay in sync.
const contextHeader = "Relevant building knowledge:"

// BuildContext formats ranked chunks into the text block the query
// generators and the escalation policy consume.
//
// Description:
//
//	Produces a numbered list with scores, e.g.
//
//	  Relevant building knowledge:
//	  [1] Room 1205 has three temperature sensors. (score=0.953)
//	  [2] Illuminance sensors measure light intensity. (score=0.901)
//
//	Empty input yields "". The pipeline treats an absent context as
//	meaningful, so no placeholder text is ever fabricated.
//
// Inputs:
//
//	chunks - Ranked chunks, most relevant first.
//
// Outputs:
//
//	string - The context block, or "" when chunks is empty.
func BuildContext(chunks []Chunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(contextHeader)
	for i, c := range chunks {
		fmt.Fprintf(&b, "\n[%d] %s (score=%.3f)", i+1, c.Text, c.Score)
	}
	return b.String()
}
