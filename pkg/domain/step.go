package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Resolution describes how a step's target region was obtained.
type Resolution string

const (
	ResolutionDOM   Resolution = "dom"   // Found by exact text match in the live DOM
	ResolutionImage Resolution = "image" // Detected on a screenshot by the region service
	ResolutionNone  Resolution = "none"  // No region, the callout is centered
)

// StepLabel is the human facing step number ("1", "2", ...).
// Step extraction services emit it either as a string or as a number.
type StepLabel string

// UnmarshalJSON accepts both `"1"` and `1`.
func (l *StepLabel) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*l = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = StepLabel(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*l = StepLabel(n.String())
	return nil
}

// Step is one unit of tutorial guidance.
// Instruction and Target are immutable once the session is created; Region and
// Resolution are filled per display attempt and never persisted.
type Step struct {
	Index       int        `json:"index"`
	Label       StepLabel  `json:"step_count,omitempty"`
	Instruction string     `json:"step"`
	Action      string     `json:"action,omitempty"`
	Target      string     `json:"web_element"`
	Region      *Region    `json:"region,omitempty"`
	Resolution  Resolution `json:"resolution,omitempty"`
}

// Unresolved returns a copy of the step with the per-attempt fields cleared.
func (s Step) Unresolved() Step {
	s.Region = nil
	s.Resolution = ""
	return s
}

// Resolved returns a copy of the step anchored to region (nil means unanchored).
func (s Step) Resolved(region *Region, method Resolution) Step {
	if region == nil {
		method = ResolutionNone
	} else {
		r := *region
		region = &r
	}
	s.Region = region
	s.Resolution = method
	return s
}

// HasTarget reports whether the step points at an on-page element at all.
// Purely narrative steps carry an empty descriptor.
func (s Step) HasTarget() bool {
	return strings.TrimSpace(s.Target) != ""
}

// DisplayLabel returns the label shown to humans, falling back to the 1-based index.
func (s Step) DisplayLabel() string {
	if s.Label != "" {
		return string(s.Label)
	}
	return strconv.Itoa(s.Index + 1)
}

// Tutorial is a titled, ordered list of steps as produced by a step source
// (the extraction service or the local catalog).
type Tutorial struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"tutorial_title,omitempty"`
	Software string `json:"software,omitempty"`
	Action   string `json:"action,omitempty"`
	Steps    []Step `json:"steps"`

	// Description is free Markdown shown when browsing authored tutorials.
	Description string `json:"description,omitempty"`
}
