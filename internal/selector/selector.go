// Package selector resolves which backing model an agent use case
// should call. Resolution works against an immutable snapshot passed in
// per call, so concurrent runs never race on shared configuration.
package selector

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dealmate/internal/model"
)

// ErrNoDefaultConfigured is returned when neither a specific selection
// nor a use-case default exists.
var ErrNoDefaultConfigured = eris.New("selector: no default model configured for use case")

// Snapshot is an immutable view of the model configuration at
// resolution time.
type Snapshot struct {
	profiles   map[string]model.ModelProfile
	selections []model.ModelSelection
}

// NewSnapshot builds a snapshot from profiles and selection rows.
func NewSnapshot(profiles []model.ModelProfile, selections []model.ModelSelection) *Snapshot {
	byID := make(map[string]model.ModelProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	return &Snapshot{profiles: byID, selections: selections}
}

// Profiles returns all profiles in the snapshot.
func (s *Snapshot) Profiles() []model.ModelProfile {
	out := make([]model.ModelProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out
}

// Resolve returns the ModelProfile for a (use case, user, deal) tuple.
// The most specific active selection wins: user+deal, then user-only,
// then deal-only, then the use case's default-flagged row. Returns
// ErrNoDefaultConfigured when nothing matches.
func (s *Snapshot) Resolve(useCase model.UseCase, userID, dealID string) (model.ModelProfile, error) {
	if sel, ok := s.match(useCase, userID, dealID); ok {
		return s.profile(sel)
	}
	if userID != "" {
		if sel, ok := s.match(useCase, userID, ""); ok {
			return s.profile(sel)
		}
	}
	if dealID != "" {
		if sel, ok := s.match(useCase, "", dealID); ok {
			return s.profile(sel)
		}
	}
	for _, sel := range s.selections {
		if sel.UseCase == useCase && sel.Default {
			return s.profile(sel)
		}
	}
	return model.ModelProfile{}, eris.Wrapf(ErrNoDefaultConfigured, "use case %s", useCase)
}

func (s *Snapshot) match(useCase model.UseCase, userID, dealID string) (model.ModelSelection, bool) {
	for _, sel := range s.selections {
		if sel.UseCase == useCase && sel.UserID == userID && sel.DealID == dealID && !sel.Default {
			return sel, true
		}
	}
	return model.ModelSelection{}, false
}

func (s *Snapshot) profile(sel model.ModelSelection) (model.ModelProfile, error) {
	p, ok := s.profiles[sel.ProfileID]
	if !ok {
		return model.ModelProfile{}, eris.Errorf("selector: selection %s references unknown profile %s", sel.ID, sel.ProfileID)
	}
	if !p.Active {
		return model.ModelProfile{}, eris.Errorf("selector: profile %s is inactive", p.ID)
	}
	return p, nil
}

// Seed is the on-disk shape of the model configuration file.
type Seed struct {
	Profiles   []model.ModelProfile   `yaml:"profiles"`
	Selections []model.ModelSelection `yaml:"selections"`
}

// LoadSeed reads a YAML model configuration file, used both to seed the
// store and to build snapshots for local runs.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "selector: read seed %s", path)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, eris.Wrapf(err, "selector: parse seed %s", path)
	}
	return &seed, nil
}

// DefaultSeed returns the built-in model configuration used when no
// seed file is provided.
func DefaultSeed() *Seed {
	return &Seed{
		Profiles: []model.ModelProfile{
			{
				ID: "claude-sonnet", Provider: "anthropic",
				Model:      "claude-sonnet-4-5-20250929",
				InputPer1K: 0.003, OutputPer1K: 0.015,
				ContextWindow: 200000, Vision: true, FunctionCalling: true, Active: true,
			},
			{
				ID: "claude-haiku", Provider: "anthropic",
				Model:      "claude-haiku-4-5-20251001",
				InputPer1K: 0.0008, OutputPer1K: 0.004,
				ContextWindow: 200000, Vision: true, FunctionCalling: true, Active: true,
			},
		},
		Selections: []model.ModelSelection{
			{ID: "default-cim", UseCase: model.UseCaseCIMAnalysis, ProfileID: "claude-sonnet", Default: true},
			{ID: "default-risk", UseCase: model.UseCaseRiskAnalysis, ProfileID: "claude-sonnet", Default: true},
		},
	}
}
