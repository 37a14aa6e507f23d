package votes

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jeromeabel/lapreuveduconcept/internal/models"
	"github.com/jeromeabel/lapreuveduconcept/internal/store"
)

// MaxComicsPerQuery bounds the batched GetVotes lookup.
const MaxComicsPerQuery = 100

// Store is the persistence the service needs. *store.VoteStore implements it.
type Store interface {
	Counts(ctx context.Context, comicIDs []string) (map[string]int64, error)
	VotedComics(ctx context.Context, comicIDs []string, visitorID string) (map[string]bool, error)
	Toggle(ctx context.Context, comicID, visitorID string) (store.ToggleResult, error)
}

type Service struct {
	store Store
	log   logrus.FieldLogger
}

func NewService(s Store, log logrus.FieldLogger) *Service {
	return &Service{store: s, log: log}
}

// GetVotes returns one tally per distinct comic id, in request order.
func (s *Service) GetVotes(ctx context.Context, comicIDs []string, visitorID string) ([]models.VoteTally, error) {
	ids := normalizeIDs(comicIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: missing comic ids", ErrBadRequest)
	}
	if len(ids) > MaxComicsPerQuery {
		return nil, fmt.Errorf("%w: at most %d comic ids per request", ErrBadRequest, MaxComicsPerQuery)
	}
	for _, id := range ids {
		if len(id) > models.MaxComicIDLen {
			return nil, fmt.Errorf("%w: comic id longer than %d characters", ErrBadRequest, models.MaxComicIDLen)
		}
	}
	if err := checkVisitor(visitorID); err != nil {
		return nil, err
	}

	counts, err := s.store.Counts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	voted, err := s.store.VotedComics(ctx, ids, visitorID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	tallies := make([]models.VoteTally, 0, len(ids))
	for _, id := range ids {
		tallies = append(tallies, models.VoteTally{
			ComicID:   id,
			Votes:     counts[id],
			UserVoted: voted[id],
		})
	}
	return tallies, nil
}

// ToggleVote flips the visitor's vote on a comic and returns the new total.
func (s *Service) ToggleVote(ctx context.Context, comicID, visitorID string) (models.ToggleVoteResponse, error) {
	comicID = strings.TrimSpace(comicID)
	if comicID == "" {
		return models.ToggleVoteResponse{}, fmt.Errorf("%w: missing comic id", ErrBadRequest)
	}
	if len(comicID) > models.MaxComicIDLen {
		return models.ToggleVoteResponse{}, fmt.Errorf("%w: comic id longer than %d characters", ErrBadRequest, models.MaxComicIDLen)
	}
	if err := checkVisitor(visitorID); err != nil {
		return models.ToggleVoteResponse{}, err
	}

	res, err := s.store.Toggle(ctx, comicID, visitorID)
	if err != nil {
		return models.ToggleVoteResponse{}, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.log.WithFields(logrus.Fields{
		"comic_id": comicID,
		"voted":    res.Voted,
		"count":    res.Count,
	}).Debug("vote toggled")

	return models.ToggleVoteResponse{
		ComicID: comicID,
		Count:   res.Count,
		Voted:   res.Voted,
	}, nil
}

// checkVisitor guards against handlers that forgot the visitor middleware.
func checkVisitor(visitorID string) error {
	if visitorID == "" {
		return fmt.Errorf("%w: missing visitor id", ErrInternal)
	}
	if len(visitorID) > models.MaxVisitorIDLen {
		return fmt.Errorf("%w: visitor id longer than %d characters", ErrBadRequest, models.MaxVisitorIDLen)
	}
	return nil
}

func normalizeIDs(comicIDs []string) []string {
	seen := make(map[string]bool, len(comicIDs))
	ids := make([]string, 0, len(comicIDs))
	for _, id := range comicIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
