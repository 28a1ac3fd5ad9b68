package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/praisehq/praise/internal/rating"
)

// Repository handles database operations for contributors,
// organizations and their rating history.
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveRating persists a rating record. Saving the same PR again
// replaces the earlier rating.
func (r *Repository) SaveRating(rec *PRRating) error {
	stmt, err := r.db.GetPreparedStatement("insert_rating")
	if err != nil {
		return err
	}

	_, err = stmt.Exec(
		rec.ID, rec.PRID, rec.ContributorID, rec.OrganizationID,
		rec.TotalScore, rec.Level, rec.RatingJSON,
		rec.PRURL, rec.PRNumber, rec.Repository,
		rec.PRCreatedAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save rating: %w", err)
	}
	return nil
}

// RatingsFor returns a contributor's decoded rating history, newest
// first. Records whose payload no longer decodes are skipped.
func (r *Repository) RatingsFor(contributorID string) ([]rating.Rating, error) {
	records, err := r.RatingRecordsFor(contributorID)
	if err != nil {
		return nil, err
	}

	ratings := make([]rating.Rating, 0, len(records))
	for _, rec := range records {
		decoded, err := rec.Rating()
		if err != nil {
			continue
		}
		ratings = append(ratings, decoded)
	}
	return ratings, nil
}

// RatingRecordsFor returns a contributor's stored rating records,
// newest first.
func (r *Repository) RatingRecordsFor(contributorID string) ([]*PRRating, error) {
	stmt, err := r.db.GetPreparedStatement("get_ratings_by_contributor")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(contributorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	return scanRatings(rows)
}

// RatingRecordsForOrganization returns every stored rating in an
// organization, newest first.
func (r *Repository) RatingRecordsForOrganization(organizationID string) ([]*PRRating, error) {
	stmt, err := r.db.GetPreparedStatement("get_ratings_by_org")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query organization ratings: %w", err)
	}
	defer rows.Close()

	return scanRatings(rows)
}

func scanRatings(rows *sql.Rows) ([]*PRRating, error) {
	var records []*PRRating
	for rows.Next() {
		var rec PRRating
		if err := rows.Scan(
			&rec.ID, &rec.PRID, &rec.ContributorID, &rec.OrganizationID,
			&rec.TotalScore, &rec.Level, &rec.RatingJSON,
			&rec.PRURL, &rec.PRNumber, &rec.Repository,
			&rec.PRCreatedAt, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rating: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// GetContributor looks up a contributor by id.
func (r *Repository) GetContributor(id string) (*Contributor, error) {
	stmt, err := r.db.GetPreparedStatement("get_contributor")
	if err != nil {
		return nil, err
	}
	return scanContributor(stmt.QueryRow(id))
}

// FindContributorByUsername looks up a contributor by GitHub login.
func (r *Repository) FindContributorByUsername(username string) (*Contributor, error) {
	stmt, err := r.db.GetPreparedStatement("get_contributor_by_username")
	if err != nil {
		return nil, err
	}
	return scanContributor(stmt.QueryRow(username))
}

func scanContributor(row *sql.Row) (*Contributor, error) {
	var c Contributor
	err := row.Scan(&c.ID, &c.Username, &c.Name, &c.AvatarURL,
		&c.OrganizationID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan contributor: %w", err)
	}
	return &c, nil
}

// GetOrCreateContributor returns the contributor with the given id,
// creating the record on first sight and refreshing mutable fields on
// later sightings.
func (r *Repository) GetOrCreateContributor(id, username, name, avatarURL, organizationID string) (*Contributor, error) {
	existing, err := r.GetContributor(id)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		_, err = r.db.Exec(`
			UPDATE contributors SET username = ?, name = ?, avatar_url = ?, organization_id = ?, updated_at = ?
			WHERE id = ?
		`, username, name, avatarURL, organizationID, time.Now(), id)
		if err != nil {
			return nil, fmt.Errorf("failed to update contributor: %w", err)
		}
		existing.Username = username
		existing.Name = name
		existing.AvatarURL = avatarURL
		existing.OrganizationID = organizationID
		return existing, nil
	}

	c := NewContributor(id, username, name, avatarURL, organizationID)
	_, err = r.db.Exec(`
		INSERT INTO contributors (id, username, name, avatar_url, organization_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.Username, c.Name, c.AvatarURL, c.OrganizationID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create contributor: %w", err)
	}
	return c, nil
}

// GetOrganization looks up an organization by id. A nil result with a
// nil error means the organization does not exist.
func (r *Repository) GetOrganization(id string) (*Organization, error) {
	var org Organization
	err := r.db.QueryRow(`
		SELECT id, name, created_at FROM organizations WHERE id = ?
	`, id).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query organization: %w", err)
	}
	return &org, nil
}

// GetOrCreateOrganization returns the organization with the given id,
// creating it if needed.
func (r *Repository) GetOrCreateOrganization(id, name string) (*Organization, error) {
	var org Organization
	err := r.db.QueryRow(`
		SELECT id, name, created_at FROM organizations WHERE id = ?
	`, id).Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err == nil {
		return &org, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query organization: %w", err)
	}

	created := NewOrganization(id, name)
	_, err = r.db.Exec(`
		INSERT INTO organizations (id, name, created_at) VALUES (?, ?, ?)
	`, created.ID, created.Name, created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return created, nil
}

// ContributorsForOrganization lists an organization's contributors.
func (r *Repository) ContributorsForOrganization(organizationID string) ([]*Contributor, error) {
	stmt, err := r.db.GetPreparedStatement("get_contributors_by_org")
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributors: %w", err)
	}
	defer rows.Close()

	var contributors []*Contributor
	for rows.Next() {
		var c Contributor
		if err := rows.Scan(&c.ID, &c.Username, &c.Name, &c.AvatarURL,
			&c.OrganizationID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contributor: %w", err)
		}
		contributors = append(contributors, &c)
	}
	return contributors, rows.Err()
}
