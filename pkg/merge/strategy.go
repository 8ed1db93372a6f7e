package merge

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/recon/pkg/errors"
)

// Strategy selects how two matched records are combined.
type Strategy string

const (
	// LatestWins overlays the second record's non-empty fields onto the first.
	LatestWins Strategy = "latest_wins"
	// FirstWins keeps the first record and only fills its gaps from the second.
	FirstWins Strategy = "first_wins"
	// Concatenate joins differing non-empty values with Separator.
	Concatenate Strategy = "concatenate"
)

// Separator joins values under the concatenate strategy.
const Separator = " | "

// Strategies lists every supported strategy.
func Strategies() []Strategy {
	return []Strategy{LatestWins, FirstWins, Concatenate}
}

// String returns the string representation of a strategy.
func (s Strategy) String() string {
	return string(s)
}

// Name returns the title-cased display name, e.g. "Latest Wins".
func (s Strategy) Name() string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

// Description returns a one-line explanation of the strategy.
func (s Strategy) Description() string {
	switch s {
	case LatestWins:
		return "Second record's non-empty values replace the first's"
	case FirstWins:
		return "First record's values are kept; gaps are filled from the second"
	case Concatenate:
		return "Differing non-empty values are joined with \" | \""
	default:
		return "Unknown strategy"
	}
}

// Valid reports whether s is a supported strategy.
func (s Strategy) Valid() bool {
	switch s {
	case LatestWins, FirstWins, Concatenate:
		return true
	}
	return false
}

// ParseStrategy converts a name into a Strategy. Matching ignores case and
// surrounding whitespace; unknown or empty names are rejected.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", errors.NewValidationError("merge_strategy", name,
			"must be one of latest_wins, first_wins, concatenate")
	}
	return s, nil
}
