package agentstream

import (
	"encoding/json"
	"strconv"
	"strings"

	"maestro-console/internal/domain"
)

// Classify maps a Record to exactly one AgentEvent. It never fails: fields
// that are missing or carry the wrong JSON type are treated as absent, and an
// unrecognized (or missing) type yields an UnknownEvent.
func Classify(rec Record) domain.AgentEvent {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(rec.Payload, &fields); err != nil {
		// Valid JSON that is not an object (array, string, number).
		return domain.UnknownEvent{Raw: rec.Payload}
	}

	f := recordFields(fields)
	typ := f.str("type")

	switch domain.EventKind(typ) {
	case domain.KindStep:
		return domain.StepEvent{
			Thought: f.str("thought"),
			Goal:    f.str("goal"),
			Memory:  f.str("memory"),
			URL:     f.str("url"),
			Elapsed: f.num("elapsed"),
			Step:    f.integer("step"),
		}
	case domain.KindInfo:
		return domain.InfoEvent{
			Message: f.str("message"),
			Elapsed: f.num("elapsed"),
		}
	case domain.KindDone:
		return domain.DoneEvent{
			Message:   f.str("message"),
			Summary:   f.str("summary"),
			FinalURL:  f.str("final_url"),
			TotalTime: f.num("total_time"),
		}
	case domain.KindError:
		return domain.ErrorEvent{Message: f.str("message")}
	default:
		return domain.UnknownEvent{Type: typ, Raw: rec.Payload}
	}
}

type recordFields map[string]json.RawMessage

func (f recordFields) str(key string) string {
	raw, ok := f[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	// Numbers and booleans are rendered as their literal text; objects,
	// arrays and null are treated as absent.
	switch trimmed := strings.TrimSpace(string(raw)); {
	case trimmed == "null", strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		return ""
	default:
		return trimmed
	}
}

func (f recordFields) num(key string) *float64 {
	raw, ok := f[key]
	if !ok {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return &v
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return &v
		}
	}
	return nil
}

func (f recordFields) integer(key string) *int {
	v := f.num(key)
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
