package models

import "time"

// Vote records that one visitor voted for one comic. A row exists or it
// doesn't; toggling deletes it rather than updating it.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ComicID   string    `gorm:"size:64;not null;uniqueIndex:idx_votes_comic_visitor,priority:1" json:"comicId"`
	VisitorID string    `gorm:"size:128;not null;uniqueIndex:idx_votes_comic_visitor,priority:2" json:"-"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"createdAt"`
}

const (
	MaxComicIDLen   = 64
	MaxVisitorIDLen = 128
)

// VoteTally is the aggregate state of one comic as seen by one visitor.
type VoteTally struct {
	ComicID   string `json:"comicId"`
	Votes     int64  `json:"votes"`
	UserVoted bool   `json:"userVoted"`
}

type GetVotesResponse struct {
	Result []VoteTally `json:"result"`
}

type ToggleVoteRequest struct {
	ComicID string `json:"comicId" binding:"required,max=64"`
}

type ToggleVoteResponse struct {
	ComicID string `json:"comicId"`
	Count   int64  `json:"count"`
	Voted   bool   `json:"voted"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
