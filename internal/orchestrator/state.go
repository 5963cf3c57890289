// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import "fmt"

// State is the scoring state of one threat within a run.
type State string

const (
	StatePending             State = "pending"
	StateAIAttempted         State = "ai_attempted"
	StateAIOK                State = "ai_ok"
	StateAIFailed            State = "ai_failed"
	StateAlgorithmicFallback State = "algorithmic_fallback"
	StateScored              State = "scored"
	StateSkipped             State = "skipped"
)

var transitions = map[State][]State{
	StatePending:             {StateAIAttempted, StateAlgorithmicFallback, StateSkipped},
	StateAIAttempted:         {StateAIOK, StateAIFailed},
	StateAIOK:                {StateScored},
	StateAIFailed:            {StateAlgorithmicFallback},
	StateAlgorithmicFallback: {StateScored},
}

// tracker follows one threat through the state machine.
type tracker struct {
	threatID string
	history  []State
}

func newTracker(threatID string) *tracker {
	return &tracker{threatID: threatID, history: []State{StatePending}}
}

func (t *tracker) state() State { return t.history[len(t.history)-1] }

// to advances the state. An illegal transition is a programming error.
func (t *tracker) to(next State) {
	for _, allowed := range transitions[t.state()] {
		if allowed == next {
			t.history = append(t.history, next)
			return
		}
	}
	panic(fmt.Sprintf("threat %s: illegal transition %s -> %s", t.threatID, t.state(), next))
}
