// Package store declares the sources of truth the cache shields. The API
// only needs these outcomes; implementations live in subpackages.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("store: not found")

type PollOption struct {
	ID        string `json:"id" db:"id"`
	Option    string `json:"option" db:"option"`
	Index     int    `json:"-" db:"index"`
	Responses int64  `json:"responses" db:"responses"`
}

type Poll struct {
	ID      string       `json:"id"`
	EndsAt  time.Time    `json:"endsAt"`
	Options []PollOption `json:"options"`
}

type AllowedToken struct {
	ID              string    `json:"id" db:"id"`
	ContractAddress string    `json:"contractAddress" db:"contractAddress"`
	Decimals        int       `json:"decimals" db:"decimals"`
	Name            string    `json:"name" db:"name"`
	Symbol          string    `json:"symbol" db:"symbol"`
	CreatedAt       time.Time `json:"createdAt" db:"createdAt"`
}

type Impression struct {
	PublicationID string
	ViewerID      string
	IP            string
	CreatedAt     time.Time
}

// Relational is the primary database.
type Relational interface {
	Poll(ctx context.Context, id string) (Poll, error)
	RespondPoll(ctx context.Context, pollID, optionID, profileID string) error

	// FeatureProfiles lists profiles with featureID enabled.
	FeatureProfiles(ctx context.Context, featureID string) ([]string, error)
	SetProfileFeature(ctx context.Context, profileID, featureID string, enabled bool) error

	AllowedTokens(ctx context.Context) ([]AllowedToken, error)
	CreateAllowedToken(ctx context.Context, t AllowedToken) (AllowedToken, error)
	DeleteAllowedToken(ctx context.Context, id string) error
}

// Analytics is the event store.
type Analytics interface {
	// InsertImpressions writes rows in one batch and returns its query id.
	InsertImpressions(ctx context.Context, rows []Impression) (string, error)
}
