package model

import (
	"fmt"
	"sort"
	"strings"
)

// Operation identifies a structural edit that owners of attributes may undergo.
type Operation uint8

const (
	OpCopy Operation = iota
	OpMerge
	OpSplit
	OpTransform
	OpReplace
	OpTolerant
	OpGeometryChange
	numOperations
)

var operationNames = [numOperations]string{
	OpCopy:           "copy",
	OpMerge:          "merge",
	OpSplit:          "split",
	OpTransform:      "transform",
	OpReplace:        "replace",
	OpTolerant:       "tolerant",
	OpGeometryChange: "geometry_change",
}

func (o Operation) String() string {
	if o < numOperations {
		return operationNames[o]
	}
	return fmt.Sprintf("operation(%d)", o)
}

// Operations lists every operation in declaration order.
func Operations() []Operation {
	out := make([]Operation, numOperations)
	for i := range out {
		out[i] = Operation(i)
	}
	return out
}

// ParseOperation maps a name produced by Operation.String back to the operation.
func ParseOperation(s string) (Operation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range operationNames {
		if name == s {
			return Operation(i), nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", s)
}

// Action is the migration strategy an attribute declares for one operation.
type Action uint8

const (
	// ActionUnset defers to the next level of the resolution chain.
	ActionUnset Action = iota
	ActionLose
	ActionKeep
	ActionDuplicate
	ActionCustom
	numActions
)

var actionNames = [numActions]string{
	ActionUnset:     "unset",
	ActionLose:      "lose",
	ActionKeep:      "keep",
	ActionDuplicate: "duplicate",
	ActionCustom:    "custom",
}

func (a Action) String() string {
	if a < numActions {
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", a)
}

// ParseAction maps a name produced by Action.String back to the action.
func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range actionNames {
		if name == s {
			return Action(i), nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// Behavior holds one action per operation. The zero value leaves every
// operation unset.
type Behavior struct {
	actions [numOperations]Action
}

// builtinDefaults applies when neither instance, policy nor kind decide.
var builtinDefaults = Behavior{}.
	With(OpCopy, ActionDuplicate).
	With(OpMerge, ActionKeep).
	With(OpSplit, ActionKeep).
	With(OpTransform, ActionKeep).
	With(OpReplace, ActionKeep).
	With(OpTolerant, ActionKeep).
	With(OpGeometryChange, ActionKeep)

// BuiltinDefaults returns the fallback behavior used at the end of resolution.
func BuiltinDefaults() Behavior { return builtinDefaults }

// Get returns the action for op; out of range operations are unset.
func (b Behavior) Get(op Operation) Action {
	if op >= numOperations {
		return ActionUnset
	}
	return b.actions[op]
}

// With returns a copy of b with op set to a.
func (b Behavior) With(op Operation, a Action) Behavior {
	if op < numOperations {
		b.actions[op] = a
	}
	return b
}

// Fill returns b with its unset actions taken from fallback.
func (b Behavior) Fill(fallback Behavior) Behavior {
	for i, a := range b.actions {
		if a == ActionUnset {
			b.actions[i] = fallback.actions[i]
		}
	}
	return b
}

// IsZero reports whether every action is unset.
func (b Behavior) IsZero() bool {
	return b == Behavior{}
}

// Map renders the set actions keyed by operation name.
func (b Behavior) Map() map[string]string {
	out := make(map[string]string)
	for i, a := range b.actions {
		if a != ActionUnset {
			out[Operation(i).String()] = a.String()
		}
	}
	return out
}

// BehaviorFromMap parses the form produced by Map.
func BehaviorFromMap(m map[string]string) (Behavior, error) {
	var b Behavior
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		op, err := ParseOperation(k)
		if err != nil {
			return Behavior{}, err
		}
		act, err := ParseAction(m[k])
		if err != nil {
			return Behavior{}, fmt.Errorf("%s: %w", k, err)
		}
		b.actions[op] = act
	}
	return b, nil
}

func (b Behavior) String() string {
	parts := make([]string, 0, numOperations)
	for i, a := range b.actions {
		if a != ActionUnset {
			parts = append(parts, Operation(i).String()+"="+a.String())
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}
