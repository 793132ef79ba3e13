package llm

import "strings"

// CleanJSON strips markdown code fences and any prose around the outermost
// JSON object or array in a model response.
func CleanJSON(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	obj := strings.Index(content, "{")
	arr := strings.Index(content, "[")

	open, closer := obj, "}"
	if arr >= 0 && (obj < 0 || arr < obj) {
		open, closer = arr, "]"
	}
	if open < 0 {
		return content
	}

	end := strings.LastIndex(content, closer)
	if end > open {
		content = content[open : end+1]
	}
	return content
}
