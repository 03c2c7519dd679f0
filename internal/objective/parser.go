// Package objective extracts structured per-objective progress from raw model
// output. The model is instructed to append a fenced JSON fragment to its
// prose; everything here is defensive against it not doing so.
package objective

import (
	"encoding/json"
	"strings"

	"echoform.app/echoform/internal/model"
)

// fragment is the wire shape the model emits inside the fenced block.
type fragment struct {
	Objectives map[string]model.ObjectiveState `json:"objectives"`
}

// Parse extracts an objective progress fragment from raw assistant output and
// merges it over prev. It is a pure function with fall-back-to-previous
// semantics: if no fragment is found, or it fails to parse, prev is returned
// unchanged. A single malformed turn never nulls out established progress.
//
// Merge rules:
//   - keys not in known are dropped (model hallucination)
//   - keys in prev but absent from the fragment carry forward unchanged,
//     except that a carried-forward current is demoted to tbc when the
//     fragment moves current to a different objective (at most one objective
//     is current at any time)
//   - done is sticky: a regression from done to tbc/current is parser noise
//     and is ignored
func Parse(raw string, prev model.ObjectiveProgress, known []string) model.ObjectiveProgress {
	frag, ok := extract(raw)
	if !ok {
		return prev
	}

	knownSet := make(map[string]struct{}, len(known))
	for _, k := range known {
		knownSet[k] = struct{}{}
	}

	merged := prev.Clone()
	if merged == nil {
		merged = make(model.ObjectiveProgress, len(frag.Objectives))
	}

	taken := make(map[string]struct{}, len(frag.Objectives))
	fragmentHasCurrent := false
	for key, incoming := range frag.Objectives {
		if _, ok := knownSet[key]; !ok {
			continue
		}
		if !validStatus(incoming.Status) {
			continue
		}
		existing, had := merged[key]
		if had && existing.Status == model.ObjectiveStatusDone && incoming.Status != model.ObjectiveStatusDone {
			// Regression. Keep done, but still take the higher count.
			if incoming.Count > existing.Count {
				existing.Count = incoming.Count
				merged[key] = existing
			}
			continue
		}
		if had && incoming.Count < existing.Count {
			incoming.Count = existing.Count
		}
		merged[key] = incoming
		taken[key] = struct{}{}
		if incoming.Status == model.ObjectiveStatusCurrent {
			fragmentHasCurrent = true
		}
	}

	// The fragment moving current to another objective supersedes a carried
	// forward current; only one objective is current at a time.
	if fragmentHasCurrent {
		for key, state := range merged {
			if _, fromFragment := taken[key]; fromFragment {
				continue
			}
			if state.Status == model.ObjectiveStatusCurrent {
				state.Status = model.ObjectiveStatusTBC
				merged[key] = state
			}
		}
	}

	return merged
}

// extract applies the extraction grammar: the last fenced ```json code block,
// or failing that a trailing top-level JSON object carrying an "objectives"
// key. No regex scanning of prose.
func extract(raw string) (fragment, bool) {
	if body, ok := lastFencedJSON(raw); ok {
		if frag, ok := decode(body); ok {
			return frag, true
		}
	}
	if body, ok := trailingObject(raw); ok {
		return decode(body)
	}
	return fragment{}, false
}

func decode(body string) (fragment, bool) {
	var frag fragment
	if err := json.Unmarshal([]byte(body), &frag); err != nil {
		return fragment{}, false
	}
	if frag.Objectives == nil {
		return fragment{}, false
	}
	return frag, true
}

func lastFencedJSON(raw string) (string, bool) {
	const open = "```json"
	start := strings.LastIndex(raw, open)
	if start == -1 {
		return "", false
	}
	rest := raw[start+len(open):]
	end := strings.Index(rest, "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// trailingObject returns a JSON object that terminates the output, found by
// scanning back from the final closing brace to its balanced opener.
func trailingObject(raw string) (string, bool) {
	trimmed := strings.TrimRight(raw, " \t\r\n")
	if !strings.HasSuffix(trimmed, "}") {
		return "", false
	}
	depth := 0
	inString := false
	for i := len(trimmed) - 1; i >= 0; i-- {
		c := trimmed[i]
		if inString {
			if c == '"' && (i == 0 || trimmed[i-1] != '\\') {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '}':
			depth++
		case '{':
			depth--
			if depth == 0 {
				return trimmed[i:], true
			}
		}
	}
	return "", false
}

func validStatus(s model.ObjectiveStatus) bool {
	switch s {
	case model.ObjectiveStatusTBC, model.ObjectiveStatusCurrent, model.ObjectiveStatusDone:
		return true
	}
	return false
}

// StripFragments removes objective fragments from assistant text, leaving the
// human-readable prose. Used when building the clean transcript.
func StripFragments(raw string) string {
	out := raw
	for {
		start := strings.Index(out, "```json")
		if start == -1 {
			break
		}
		rest := out[start+len("```json"):]
		end := strings.Index(rest, "```")
		if end == -1 {
			out = out[:start]
			break
		}
		out = out[:start] + rest[end+len("```"):]
	}
	if body, ok := trailingObject(out); ok {
		// Only strip when it looks like a progress fragment, not quoted JSON
		// the respondent may have pasted.
		if _, isFrag := decode(body); isFrag {
			out = strings.TrimSuffix(strings.TrimRight(out, " \t\r\n"), body)
		}
	}
	return strings.TrimSpace(out)
}
