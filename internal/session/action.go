package session

import (
	"fmt"
	"strings"
)

// ActionKind is the user's intent for a capture cycle.
type ActionKind int

// ActionNone marks a session with no action in progress.
const ActionNone ActionKind = -1

const (
	ActionCapture ActionKind = iota
	ActionMatch
	ActionSingleEnroll
	ActionMultiEnroll
)

var (
	actionImages       = [...]int{1, 1, 3, 6}
	actionNames        = [...]string{"capture", "match", "single-enroll", "multi-enroll"}
	actionDescriptions = [...]string{"capture", "match", "single enrollment", "multiple enrollment"}
)

// ActionKinds lists every action kind.
func ActionKinds() []ActionKind {
	return []ActionKind{ActionCapture, ActionMatch, ActionSingleEnroll, ActionMultiEnroll}
}

func (k ActionKind) valid() bool {
	return k >= 0 && int(k) < len(actionNames)
}

// ImagesRequired is the number of captures the action needs.
func (k ActionKind) ImagesRequired() int {
	if k.valid() {
		return actionImages[k]
	}
	return 0
}

func (k ActionKind) String() string {
	if k.valid() {
		return actionNames[k]
	}
	if k == ActionNone {
		return "none"
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// Description is the phrase used in "performed <description>".
func (k ActionKind) Description() string {
	if k.valid() {
		return actionDescriptions[k]
	}
	return k.String()
}

// ParseActionKind accepts the names printed by String, with '_' or '-'.
func ParseActionKind(name string) (ActionKind, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-")
	for i, n := range actionNames {
		if n == key {
			return ActionKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q (want capture, match, single-enroll or multi-enroll)", name)
}
