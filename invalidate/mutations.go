package invalidate

import "github.com/heyxyz/heycache/keys"

// FeatureToggled: a staff member assigned or removed a feature for a profile.
type FeatureToggled struct {
	ProfileID string
	FeatureID string
	Enabled   bool
}

func (FeatureToggled) Kind() Kind { return "feature_toggled" }

type AllowedTokenCreated struct {
	ID      string
	Address string
}

func (AllowedTokenCreated) Kind() Kind { return "allowed_token_created" }

type AllowedTokenDeleted struct {
	ID string
}

func (AllowedTokenDeleted) Kind() Kind { return "allowed_token_deleted" }

// PollResponded: a profile voted on a poll, changing its results.
type PollResponded struct {
	PollID    string
	ProfileID string
	OptionID  string
}

func (PollResponded) Kind() Kind { return "poll_responded" }

// FeatureIDs identifies the features whose membership is cached as a
// process-wide list.
type FeatureIDs struct {
	Verified  string
	StaffPick string
}

// DefaultRegistry maps the API's writes to the keys package.
func DefaultRegistry(f FeatureIDs) *Registry {
	r := NewRegistry()

	Register(r, func(m FeatureToggled) []string {
		ks := []string{keys.Preference(m.ProfileID), keys.Profile(m.ProfileID)}
		if f.Verified != "" && m.FeatureID == f.Verified {
			ks = append(ks, keys.Verified)
		}
		if f.StaffPick != "" && m.FeatureID == f.StaffPick {
			ks = append(ks, keys.StaffPicks)
		}
		return ks
	})

	tokens := func(Mutation) []string { return []string{keys.AllowedTokens} }
	Register(r, func(m AllowedTokenCreated) []string { return tokens(m) })
	Register(r, func(m AllowedTokenDeleted) []string { return tokens(m) })

	Register(r, func(m PollResponded) []string {
		return []string{keys.Poll(m.PollID)}
	})

	return r
}
