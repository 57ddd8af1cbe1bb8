package dify

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	verdictForbidden = "违禁"
	verdictNormal    = "正常"
)

// DefaultDifficulty is used when topic expansion gives none
const DefaultDifficulty = "medium"

// DefaultOptions are offered when the options service fails
var DefaultOptions = []string{
	"explore basic concepts",
	"dig into applications",
	"connect to real cases",
}

// TopicProfile is the expansion of a topic word
type TopicProfile struct {
	Angles     []string `json:"angles"`
	Styles     []string `json:"styles"`
	Difficulty string   `json:"difficulty"`
	// Raw is the unparsed service output
	Raw string `json:"-"`
}

// ParseTopicProfile reads the JSON object returned by the expansion app. On any
// error it still returns a usable profile with empty pools and the default difficulty.
func ParseTopicProfile(raw string) (TopicProfile, error) {
	profile := TopicProfile{Difficulty: DefaultDifficulty, Raw: raw}

	var parsed struct {
		Angles     any    `json:"angles"`
		Styles     any    `json:"styles"`
		Difficulty string `json:"difficulty"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return profile, fmt.Errorf("parse topic profile: %w", err)
	}

	profile.Angles = stringList(parsed.Angles)
	profile.Styles = stringList(parsed.Styles)
	if d := strings.TrimSpace(parsed.Difficulty); d != "" {
		profile.Difficulty = d
	}
	return profile, nil
}

// ParseOptions accepts a JSON array of strings, or one option per line
func ParseOptions(raw string) []string {
	cleaned := stripFences(raw)

	var list []string
	if err := json.Unmarshal([]byte(cleaned), &list); err == nil {
		return nonEmpty(list)
	}

	var wrapped struct {
		Options []string `json:"options"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil && len(wrapped.Options) > 0 {
		return nonEmpty(wrapped.Options)
	}

	var out []string
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.、) ")
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// stringList keeps only the string items of a decoded JSON array
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// stripFences removes markdown code blocks around a model response
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
