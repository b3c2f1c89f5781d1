// internal/models/classification.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// YesNo is a flag the classifier writes as "yes"/"no". Booleans are accepted
// too since models do not always follow the template.
type YesNo string

const (
	Yes YesNo = "yes"
	No  YesNo = "no"
)

func (y *YesNo) UnmarshalJSON(raw []byte) error {
	if string(raw) == "null" {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			*y = Yes
		} else {
			*y = No
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("yes/no flag: %w", err)
	}
	*y = YesNo(strings.ToLower(strings.TrimSpace(s)))
	return nil
}

// Is reports whether the flag is set, using def when the classifier left it out.
func (y YesNo) Is(def bool) bool {
	switch y {
	case Yes:
		return true
	case No:
		return false
	}
	return def
}

type TimeScope struct {
	Mentioned        YesNo    `json:"mentioned,omitempty"`
	SpecificPeriods  []string `json:"specific_periods,omitempty"`
	ComparisonNeeded YesNo    `json:"comparison_needed,omitempty"`
}

type Entities struct {
	Divisions []string `json:"divisions,omitempty"`
	Products  []string `json:"products,omitempty"`
	Branches  []string `json:"branches,omitempty"`
	Metrics   []string `json:"metrics,omitempty"`
}

// Classification is the query classifier's record for one question. Error is
// set when the model output could not be decoded; the other fields are then
// empty and the question is handled conversationally.
type Classification struct {
	IsGreeting          YesNo        `json:"is_greeting,omitempty"`
	IsDataQuery         YesNo        `json:"is_data_query,omitempty"`
	Intent              string       `json:"intent,omitempty"`
	QuestionType        QuestionType `json:"question_type,omitempty"`
	TimeScope           *TimeScope   `json:"time_scope,omitempty"`
	Entities            *Entities    `json:"entities,omitempty"`
	Complexity          string       `json:"complexity,omitempty"`
	RequiresComparison  YesNo        `json:"requires_comparison,omitempty"`
	RequiresCalculation YesNo        `json:"requires_calculation,omitempty"`
	RequiresForecasting YesNo        `json:"requires_forecasting,omitempty"`
	RequiresDataAccess  YesNo        `json:"requires_data_access,omitempty"`
	ContextNeeded       []string     `json:"context_needed,omitempty"`
	DataRequirements    string       `json:"data_requirements,omitempty"`
	SuggestedApproach   string       `json:"suggested_approach,omitempty"`

	Error       string `json:"error,omitempty"`
	RawResponse string `json:"raw_response,omitempty"`
}

// Failed reports whether the record carries a decode failure.
func (c *Classification) Failed() bool {
	return c == nil || c.Error != ""
}

// IsConversational reports whether the question should skip retrieval and
// analysis: a greeting, a non-data question, one needing no data access, or
// an unreadable classification.
func (c *Classification) IsConversational() bool {
	if c.Failed() {
		return true
	}
	return c.IsGreeting.Is(false) || !c.IsDataQuery.Is(true) || !c.RequiresDataAccess.Is(true)
}

// Type is the question type with unknown values folded to descriptive.
func (c *Classification) Type() QuestionType {
	if c == nil {
		return QuestionTypeDescriptive
	}
	return c.QuestionType.Normalized()
}
