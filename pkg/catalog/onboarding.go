package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// onboardingVersion is the schema version written by SaveOnboardingState.
const onboardingVersion = 1

// OnboardingState is written atomically under a dotted state directory and
// consumed only by the external onboarding collaborator; this package just
// owns the atomic write/read.
type OnboardingState struct {
	Version               int        `json:"version"`
	BootstrapSeededAt     *time.Time `json:"bootstrapSeededAt,omitempty"`
	OnboardingCompletedAt *time.Time `json:"onboardingCompletedAt,omitempty"`
}

// LoadOnboardingState reads the state file at path, returning a fresh
// {version:1} state if the file does not exist yet.
func LoadOnboardingState(path string) (*OnboardingState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &OnboardingState{Version: onboardingVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read onboarding state: %w", err)
	}

	var state OnboardingState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse onboarding state: %w", err)
	}
	return &state, nil
}

// SaveOnboardingState writes state to path atomically.
func SaveOnboardingState(path string, state *OnboardingState) error {
	if state.Version == 0 {
		state.Version = onboardingVersion
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal onboarding state: %w", err)
	}
	return atomicWriteFile(path, data)
}
