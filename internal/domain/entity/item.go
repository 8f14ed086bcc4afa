// Package entity defines the core domain entities for the notification pipeline.
// It contains the fundamental business objects such as Item, Criteria, and
// NotificationRecord, along with their validation rules and domain-specific errors.
package entity

// Item represents one catalog entry discovered by the upstream item source.
// Attribute lists arrive already merged across providers; values are normalized
// before matching (see NormalizeValue).
type Item struct {
	ID         int64
	Title      string
	Thumbnail  string
	Artists    []string
	Characters []string
	Tags       []string
	Series     []string
	Groups     []string
	Languages  []string
	Uploader   string
}

// AttributeValues returns the item's attribute values for the given condition
// type. Uploader is modeled as a single value but exposed as a list so the
// matcher can treat all condition types uniformly.
func (i *Item) AttributeValues(t ConditionType) []string {
	switch t {
	case ConditionArtist:
		return i.Artists
	case ConditionCharacter:
		return i.Characters
	case ConditionTag:
		return i.Tags
	case ConditionSeries:
		return i.Series
	case ConditionGroup:
		return i.Groups
	case ConditionLanguage:
		return i.Languages
	case ConditionUploader:
		if i.Uploader == "" {
			return nil
		}
		return []string{i.Uploader}
	default:
		return nil
	}
}
