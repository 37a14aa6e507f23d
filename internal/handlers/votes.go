package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/jeromeabel/lapreuveduconcept/internal/middleware"
	"github.com/jeromeabel/lapreuveduconcept/internal/models"
	"github.com/jeromeabel/lapreuveduconcept/internal/votes"
)

// VoteService is implemented by *votes.Service.
type VoteService interface {
	GetVotes(ctx context.Context, comicIDs []string, visitorID string) ([]models.VoteTally, error)
	ToggleVote(ctx context.Context, comicID, visitorID string) (models.ToggleVoteResponse, error)
}

type VoteHandler struct {
	votes VoteService
	log   logrus.FieldLogger
}

func NewVoteHandler(votes VoteService, log logrus.FieldLogger) *VoteHandler {
	return &VoteHandler{votes: votes, log: log}
}

// GetVotes handles GET /api/vote?comic=<id1>,<id2>,...
func (h *VoteHandler) GetVotes(c *gin.Context) {
	comicParam := c.Query("comic")
	if strings.TrimSpace(comicParam) == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing 'comic' query parameter"})
		return
	}

	tallies, err := h.votes.GetVotes(c.Request.Context(), strings.Split(comicParam, ","), middleware.VisitorID(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, models.GetVotesResponse{Result: tallies})
}

// ToggleVote handles POST /api/vote with body {"comicId": "..."}
func (h *VoteHandler) ToggleVote(c *gin.Context) {
	input, err := bindToggleRequest(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: bindErrorMessage(err)})
		return
	}

	res, err := h.votes.ToggleVote(c.Request.Context(), input.ComicID, middleware.VisitorID(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *VoteHandler) fail(c *gin.Context, err error) {
	if errors.Is(err, votes.ErrBadRequest) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	_ = c.Error(err)
	h.log.WithError(err).WithField("path", c.Request.URL.Path).Error("vote request failed")
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
}

const comicIDKey = "comicId"

var (
	errTrailingData  = errors.New("unexpected data after JSON body")
	errComicIDString = errors.New("comicId is not a string")
)

type unknownFieldError struct{ name string }

func (e unknownFieldError) Error() string { return fmt.Sprintf("unknown field %q", e.name) }

// bindToggleRequest decodes exactly one JSON object whose only key is
// "comicId", spelled exactly so, then applies the binding tags.
// encoding/json matches struct fields case-insensitively, so the keys are
// checked on a raw map first.
func bindToggleRequest(body io.Reader) (models.ToggleVoteRequest, error) {
	var input models.ToggleVoteRequest

	dec := json.NewDecoder(body)
	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return input, err
	}
	if dec.More() {
		return input, errTrailingData
	}
	for key := range raw {
		if key != comicIDKey {
			return input, unknownFieldError{name: key}
		}
	}
	if value, ok := raw[comicIDKey]; ok {
		if err := json.Unmarshal(value, &input.ComicID); err != nil {
			return input, errComicIDString
		}
	}
	return input, binding.Validator.ValidateStruct(&input)
}

func bindErrorMessage(err error) string {
	var unknown unknownFieldError
	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, errComicIDString):
		return "'comicId' must be a string"
	case errors.As(err, &unknown):
		return fmt.Sprintf("Unknown field in request body: %q", unknown.name)
	case errors.As(err, &validationErrs):
		fe := validationErrs[0]
		if fe.Tag() == "max" {
			return "'comicId' must be at most " + fe.Param() + " characters"
		}
		return "Missing 'comicId' in request body"
	default:
		return "Invalid JSON body"
	}
}
