package toolexec

import (
	"encoding/json"
	"strings"
)

// ParseArguments decodes a tool call's raw function.arguments string into a
// map, trying strict JSON first. Many models emit near-JSON with single
// quotes or Python literals (True/False/None) instead of proper JSON; a
// lenient second pass normalises those before retrying. If both passes
// fail, the raw string is preserved under "__raw_arguments__" rather than
// aborting the turn — the same fallback shape ToAnthropicMessages uses for
// invalid tool-call argument strings (spec §4.F.4), reused here for the
// general parsing path spec §4.G calls an "AST/literal fallback".
func ParseArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out
	}
	if lenient := tryLenientJSON(raw); lenient != nil {
		return lenient
	}
	return map[string]any{"__raw_arguments__": raw}
}

// tryLenientJSON normalises common Python-literal-isms (single-quoted
// strings, True/False/None) into JSON and retries the decode.
func tryLenientJSON(raw string) map[string]any {
	s := raw
	replacer := strings.NewReplacer(
		"True", "true",
		"False", "false",
		"None", "null",
	)
	s = replacer.Replace(s)
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		s = strings.ReplaceAll(s, "'", `"`)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err == nil {
		return out
	}
	return nil
}
