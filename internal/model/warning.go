package model

import "fmt"

// WarningCategory classifies a data-quality warning.
type WarningCategory string

const (
	WarnMissingUUID            WarningCategory = "missing-uuid"
	WarnMissingRAM             WarningCategory = "missing-ram"
	WarnUnsetupHostname        WarningCategory = "unsetup-hostname"
	WarnUnexpectedHostname     WarningCategory = "unexpected-hostname"
	WarnMultipleConfigurations WarningCategory = "multiple-configurations"
	WarnCrossSourceMismatch    WarningCategory = "cross-source-mismatch"
	WarnSourceIncomplete       WarningCategory = "source-incomplete"
)

// WarningCategories returns all warning categories.
func WarningCategories() []WarningCategory {
	return []WarningCategory{
		WarnMissingUUID,
		WarnMissingRAM,
		WarnUnsetupHostname,
		WarnUnexpectedHostname,
		WarnMultipleConfigurations,
		WarnCrossSourceMismatch,
		WarnSourceIncomplete,
	}
}

// Warning is a non fatal issue found while reconciling inventory.
type Warning struct {
	Category WarningCategory `json:"category"`
	// Serial is set when the warning concerns a single server.
	Serial  string `json:"serial,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Serial == "" {
		return fmt.Sprintf("[%s] %s", w.Category, w.Message)
	}

	return fmt.Sprintf("[%s] serial %s: %s", w.Category, w.Serial, w.Message)
}

// Warnings is a list of Warning.
type Warnings []Warning

// ByCategory returns the warnings in the given category.
func (ws Warnings) ByCategory(c WarningCategory) Warnings {
	found := Warnings{}

	for _, w := range ws {
		if w.Category == c {
			found = append(found, w)
		}
	}

	return found
}

// CountByCategory returns the number of warnings in each category.
func (ws Warnings) CountByCategory() map[WarningCategory]int {
	counts := map[WarningCategory]int{}
	for _, w := range ws {
		counts[w.Category]++
	}

	return counts
}
