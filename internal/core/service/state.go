package service

import (
	"fmt"
	"strings"
)

// State is the attachment state of a node.
type State int

const (
	StateDetached State = iota
	StateAttaching
	StateImportPending
	StateJoinPending
	StateAttached
	StateFailed
)

var stateNames = [...]string{
	StateDetached:      "detached",
	StateAttaching:     "attaching",
	StateImportPending: "import_pending",
	StateJoinPending:   "join_pending",
	StateAttached:      "attached",
	StateFailed:        "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// startsCycle reports whether a new attach cycle may begin from s.
func (s State) startsCycle() bool {
	return s == StateDetached || s == StateFailed
}

// RecoveryPolicy selects the branch taken after a rejected attach.
type RecoveryPolicy int

const (
	// RecoveryImport creates the node locally with ImportLocalNode.
	RecoveryImport RecoveryPolicy = iota

	// RecoveryJoin provisions the node through Join and waits for the
	// daemon callback.
	RecoveryJoin
)

func (p RecoveryPolicy) String() string {
	switch p {
	case RecoveryImport:
		return "import"
	case RecoveryJoin:
		return "join"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// pendingState is the state entered when attach is rejected under p.
func (p RecoveryPolicy) pendingState() State {
	if p == RecoveryJoin {
		return StateJoinPending
	}
	return StateImportPending
}

// ParseRecoveryPolicy parses "import" or "join" (case-insensitive).
func ParseRecoveryPolicy(s string) (RecoveryPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "import":
		return RecoveryImport, nil
	case "join":
		return RecoveryJoin, nil
	default:
		return 0, fmt.Errorf("unknown recovery policy %q (want import or join)", s)
	}
}
