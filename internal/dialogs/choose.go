// Package dialogs finds confirmation dialogs in the live widget tree and
// answers them.
package dialogs

import (
	"strings"

	"github.com/binjactl/uiengine/internal/domain"
	"github.com/binjactl/uiengine/internal/text"
)

var decisionLabels = map[domain.Decision][]string{
	domain.DecisionSave:     {"save", "save changes", "save all", "yes"},
	domain.DecisionDontSave: {"don't save", "dont save", "close without saving", "close without save", "discard changes", "discard", "no"},
	domain.DecisionCancel:   {"cancel"},
}

// Substring matches for "save" must not land on a reject button.
var partialExclusions = map[domain.Decision][]string{
	domain.DecisionSave: {"don't", "dont", "without", "discard"},
}

// Priorities returns the normalized labels accepted for decision, most
// preferred first. auto has none.
func Priorities(decision domain.Decision) []string {
	return decisionLabels[decision]
}

// ChooseButton returns the index of the button to press for decision.
// Exact label matches across the whole priority list win over substring
// matches. Disabled buttons are still chosen; the caller decides whether
// to press them.
func ChooseButton(buttons []domain.DialogButton, decision domain.Decision) (int, bool) {
	labels := make([]string, len(buttons))
	for i, b := range buttons {
		labels[i] = b.NormalizedLabel
		if labels[i] == "" {
			labels[i] = text.NormalizeLabel(b.Label)
		}
	}
	return chooseNormalized(labels, decision)
}

// ChooseLabel is ChooseButton over raw labels.
func ChooseLabel(labels []string, decision domain.Decision) (string, bool) {
	norm := make([]string, len(labels))
	for i, l := range labels {
		norm[i] = text.NormalizeLabel(l)
	}
	i, ok := chooseNormalized(norm, decision)
	if !ok {
		return "", false
	}
	return labels[i], true
}

func chooseNormalized(labels []string, decision domain.Decision) (int, bool) {
	priorities := Priorities(decision)
	for _, wanted := range priorities {
		for i, l := range labels {
			if l != "" && l == wanted {
				return i, true
			}
		}
	}
	for _, wanted := range priorities {
		for i, l := range labels {
			if l != "" && strings.Contains(l, wanted) && !excluded(l, decision) {
				return i, true
			}
		}
	}
	return -1, false
}

func excluded(label string, decision domain.Decision) bool {
	for _, x := range partialExclusions[decision] {
		if strings.Contains(label, x) {
			return true
		}
	}
	return false
}
