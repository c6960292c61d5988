package service

import "strings"

// extractJSONObject recorta el primer objeto JSON embebido en la salida del
// LLM (los modelos suelen envolverlo en markdown o texto extra).
func extractJSONObject(input string) string {
	start := strings.IndexByte(input, '{')
	end := strings.LastIndexByte(input, '}')
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return input[start : end+1]
}
