package handlers

import (
	"github.com/sirupsen/logrus"

	"github.com/jeromeabel/lapreuveduconcept/internal/database"
)

// Handler combines all handler types
type Handler struct {
	Vote   *VoteHandler
	Health *HealthHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(votes VoteService, db database.Service, log logrus.FieldLogger) *Handler {
	return &Handler{
		Vote:   NewVoteHandler(votes, log),
		Health: NewHealthHandler(db),
	}
}
