package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praisehq/praise/internal/rating"
)

// Contributor is a tracked GitHub account whose pull requests get rated.
type Contributor struct {
	ID             string    `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	Name           string    `json:"name,omitempty" db:"name"`
	AvatarURL      string    `json:"avatar_url,omitempty" db:"avatar_url"`
	OrganizationID string    `json:"organization_id,omitempty" db:"organization_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// Organization groups contributors for aggregate statistics.
type Organization struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PRRating is a stored rating record. The computed rating and its
// input snapshot are serialized as a JSON column; the scalar columns
// exist for querying and ranking without decoding.
type PRRating struct {
	ID             string    `json:"id" db:"id"`
	PRID           string    `json:"pr_id" db:"pr_id"`
	ContributorID  string    `json:"contributor_id" db:"contributor_id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	TotalScore     int       `json:"total_score" db:"total_score"`
	Level          string    `json:"rating_level" db:"rating_level"`
	RatingJSON     string    `json:"-" db:"rating_json"`
	PRURL          string    `json:"pr_url,omitempty" db:"pr_url"`
	PRNumber       int       `json:"pr_number,omitempty" db:"pr_number"`
	Repository     string    `json:"repository,omitempty" db:"repository"`
	PRCreatedAt    time.Time `json:"pr_created_at" db:"pr_created_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// NewPRRating builds a storable record from a computed rating.
func NewPRRating(prID, contributorID, organizationID string, r rating.Rating) (*PRRating, error) {
	encoded, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rating: %w", err)
	}

	return &PRRating{
		ID:             uuid.New().String(),
		PRID:           prID,
		ContributorID:  contributorID,
		OrganizationID: organizationID,
		TotalScore:     r.TotalScore,
		Level:          string(r.Level),
		RatingJSON:     string(encoded),
		Repository:     r.Metadata.Repository,
		PRCreatedAt:    r.Metadata.CreatedAt,
		CreatedAt:      time.Now(),
	}, nil
}

// Rating decodes the stored rating payload.
func (p *PRRating) Rating() (rating.Rating, error) {
	var r rating.Rating
	if err := json.Unmarshal([]byte(p.RatingJSON), &r); err != nil {
		return rating.Rating{}, fmt.Errorf("failed to decode rating %s: %w", p.ID, err)
	}
	return r, nil
}

// NewContributor creates a contributor with a fresh record timestamp.
func NewContributor(id, username, name, avatarURL, organizationID string) *Contributor {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now()
	return &Contributor{
		ID:             id,
		Username:       username,
		Name:           name,
		AvatarURL:      avatarURL,
		OrganizationID: organizationID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewOrganization creates an organization record.
func NewOrganization(id, name string) *Organization {
	if id == "" {
		id = uuid.New().String()
	}
	return &Organization{
		ID:        id,
		Name:      name,
		CreatedAt: time.Now(),
	}
}
