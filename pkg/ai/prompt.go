package ai

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a mock data generator for API testing. You generate realistic, contextually appropriate JSON test data.

Rules:
1. Return ONLY JSON, with no explanations and no markdown formatting
2. The JSON must validate against the JSON schema you are given
3. Make values realistic for the field names, formats and descriptions
4. Use common real-world patterns for emails, phone numbers, addresses and dates
5. Never use placeholder text like "string", "example" or "test"`

// buildPrompt renders the user prompt for req.
func buildPrompt(req EnhanceRequest) string {
	var b strings.Builder
	if req.Count > 1 {
		fmt.Fprintf(&b, "Generate a JSON array of exactly %d items. Each item must match this JSON schema:\n", req.Count)
	} else {
		b.WriteString("Generate one JSON value matching this JSON schema:\n")
	}
	b.Write(req.Schema)
	b.WriteString("\n")
	if hint := strings.TrimSpace(req.Hint); hint != "" {
		fmt.Fprintf(&b, "\nContext: %s\n", hint)
	}
	return b.String()
}

// stripCodeBlocks removes a surrounding ``` fence.
func stripCodeBlocks(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return strings.Trim(s, "`")
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
