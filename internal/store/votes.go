package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/jeromeabel/lapreuveduconcept/internal/models"
)

// ErrDuplicateVote is returned when the unique (comic_id, visitor_id) index
// rejects an insert, typically because two toggles for the same pair raced.
var ErrDuplicateVote = errors.New("duplicate vote")

const uniqueViolation = "23505"

type ToggleResult struct {
	Voted bool
	Count int64
}

type VoteStore struct {
	db *gorm.DB
}

func NewVoteStore(db *gorm.DB) *VoteStore {
	return &VoteStore{db: db}
}

// Counts returns the number of votes per comic. Comics without votes are
// absent from the map.
func (s *VoteStore) Counts(ctx context.Context, comicIDs []string) (map[string]int64, error) {
	var rows []struct {
		ComicID string
		Total   int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.Vote{}).
		Select("comic_id, COUNT(*) AS total").
		Where("comic_id IN ?", comicIDs).
		Group("comic_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("counting votes: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ComicID] = r.Total
	}
	return counts, nil
}

// VotedComics returns the subset of comicIDs the visitor has voted for.
func (s *VoteStore) VotedComics(ctx context.Context, comicIDs []string, visitorID string) (map[string]bool, error) {
	var voted []string
	err := s.db.WithContext(ctx).
		Model(&models.Vote{}).
		Where("comic_id IN ? AND visitor_id = ?", comicIDs, visitorID).
		Pluck("comic_id", &voted).Error
	if err != nil {
		return nil, fmt.Errorf("loading visitor votes: %w", err)
	}

	set := make(map[string]bool, len(voted))
	for _, id := range voted {
		set[id] = true
	}
	return set, nil
}

// Toggle deletes the visitor's vote for the comic if present, inserts it
// otherwise, and returns the recounted total. It runs in one transaction.
func (s *VoteStore) Toggle(ctx context.Context, comicID, visitorID string) (ToggleResult, error) {
	var res ToggleResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Vote
		found := tx.Where("comic_id = ? AND visitor_id = ?", comicID, visitorID).
			Limit(1).
			Find(&existing)
		if found.Error != nil {
			return fmt.Errorf("looking up vote: %w", found.Error)
		}

		if found.RowsAffected > 0 {
			if err := tx.Delete(&models.Vote{}, existing.ID).Error; err != nil {
				return fmt.Errorf("deleting vote: %w", err)
			}
		} else {
			if err := tx.Create(&models.Vote{ComicID: comicID, VisitorID: visitorID}).Error; err != nil {
				return fmt.Errorf("inserting vote: %w", classify(err))
			}
			res.Voted = true
		}

		if err := tx.Model(&models.Vote{}).Where("comic_id = ?", comicID).Count(&res.Count).Error; err != nil {
			return fmt.Errorf("recounting votes: %w", err)
		}
		return nil
	})
	if err != nil {
		return ToggleResult{}, err
	}
	return res, nil
}

// Insert adds a vote row without checking for an existing one.
func (s *VoteStore) Insert(ctx context.Context, comicID, visitorID string) error {
	if err := s.db.WithContext(ctx).Create(&models.Vote{ComicID: comicID, VisitorID: visitorID}).Error; err != nil {
		return fmt.Errorf("inserting vote: %w", classify(err))
	}
	return nil
}

func classify(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateVote, err)
	}
	return err
}

// isUniqueViolation covers gorm's translated error as well as the raw
// pgx and lib/pq errors; gorm only translates pgx errors.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}
