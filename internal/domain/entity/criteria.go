package entity

import (
	"strings"
	"time"
)

// ConditionType identifies which item attribute a condition is matched against.
type ConditionType string

// Supported condition types.
const (
	ConditionSeries    ConditionType = "series"
	ConditionCharacter ConditionType = "character"
	ConditionTag       ConditionType = "tag"
	ConditionArtist    ConditionType = "artist"
	ConditionGroup     ConditionType = "group"
	ConditionLanguage  ConditionType = "language"
	ConditionUploader  ConditionType = "uploader"
)

// ConditionTypes lists all supported condition types in a stable order.
var ConditionTypes = []ConditionType{
	ConditionSeries,
	ConditionCharacter,
	ConditionTag,
	ConditionArtist,
	ConditionGroup,
	ConditionLanguage,
	ConditionUploader,
}

// Valid reports whether t is one of the supported condition types.
func (t ConditionType) Valid() bool {
	switch t {
	case ConditionSeries, ConditionCharacter, ConditionTag,
		ConditionArtist, ConditionGroup, ConditionLanguage, ConditionUploader:
		return true
	}
	return false
}

// Condition is one (type, value) requirement within a Criteria.
// Value must be normalized (see NormalizeValue) before storage and comparison.
type Condition struct {
	Type  ConditionType
	Value string
}

// Criteria is a named, AND-combined set of conditions owned by a user.
// A criteria matches an item only when every condition is satisfied;
// a criteria with zero conditions never matches.
type Criteria struct {
	ID            int64
	UserID        int64
	Name          string
	Active        bool
	Conditions    []Condition
	MatchCount    int64
	LastMatchedAt *time.Time
}

// Validate checks that the criteria is well-formed enough to store.
func (c *Criteria) Validate() error {
	if c.UserID <= 0 {
		return &ValidationError{Field: "user_id", Message: "user id is required"}
	}
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	for _, cond := range c.Conditions {
		if !cond.Type.Valid() {
			return &ValidationError{Field: "conditions", Message: "unknown condition type: " + string(cond.Type)}
		}
		if NormalizeValue(cond.Value) == "" {
			return &ValidationError{Field: "conditions", Message: "condition value is required"}
		}
	}
	return nil
}

// NormalizeValue canonicalizes an attribute or condition value: surrounding
// whitespace is trimmed, the value is lowercased, and interior whitespace runs
// collapse to a single underscore. Both stored conditions and item attributes
// pass through this before comparison.
func NormalizeValue(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return ""
	}
	return strings.Join(strings.Fields(v), "_")
}
