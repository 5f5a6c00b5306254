package access

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the capability level a user holds on a path. Levels form a
// total order; a higher action implies every action below it.
type Action uint8

const (
	ActionDeny Action = iota
	ActionRead
	ActionModify
	ActionAdmin
)

var actionNames = [...]string{"deny", "read", "modify", "admin"}

// ParseAction converts a stored or user-supplied name into an Action.
// Anything outside the four known variants fails with ErrValidation.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(s) {
	case "deny":
		return ActionDeny, nil
	case "read":
		return ActionRead, nil
	case "modify":
		return ActionModify, nil
	case "admin":
		return ActionAdmin, nil
	default:
		return ActionDeny, fmt.Errorf("%w: unknown action %q", ErrValidation, s)
	}
}

// Valid reports whether a is one of the four known variants.
func (a Action) Valid() bool {
	return a <= ActionAdmin
}

func (a Action) String() string {
	if !a.Valid() {
		return fmt.Sprintf("action(%d)", uint8(a))
	}
	return actionNames[a]
}

// Implies reports whether a grants at least the capability of b.
func (a Action) Implies(b Action) bool {
	return a >= b
}

// MaxAction returns the more permissive of two actions.
func MaxAction(a, b Action) Action {
	if a >= b {
		return a
	}
	return b
}

// CompareAction returns -1, 0 or 1 as a is below, equal to or above b.
func CompareAction(a, b Action) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (a Action) MarshalJSON() ([]byte, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: action out of range: %d", ErrValidation, uint8(a))
	}
	return json.Marshal(a.String())
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: action must be a string", ErrValidation)
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Value stores the action under its lowercase name.
func (a Action) Value() (driver.Value, error) {
	if !a.Valid() {
		return nil, fmt.Errorf("%w: action out of range: %d", ErrValidation, uint8(a))
	}
	return a.String(), nil
}

func (a *Action) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("%w: cannot scan action from %T", ErrValidation, src)
	}
	parsed, err := ParseAction(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
