package voteclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jeromeabel/lapreuveduconcept/internal/models"
)

// ErrDisabled is returned by Click while the control awaits a response or
// before its initial state is known.
var ErrDisabled = errors.New("vote control is disabled")

// ErrInvalidComicID is returned by NewControl for ids the server could
// never answer for: blank ones, and ones holding the query separator.
var ErrInvalidComicID = errors.New("invalid comic id")

// API is the part of *Client the controller uses.
type API interface {
	FetchVotes(ctx context.Context, comicIDs []string) ([]models.VoteTally, error)
	Toggle(ctx context.Context, comicID string) (models.ToggleVoteResponse, error)
}

// State is what a control displays.
type State struct {
	Count    int64
	Voted    bool
	Disabled bool
}

// Renderer is called with every new state of a control. It must not call
// back into the control.
type Renderer func(comicID string, s State)

// Control is one vote button bound to a comic.
type Control struct {
	ComicID string

	mu     sync.Mutex
	state  State
	render Renderer
}

// NewControl returns a disabled control; Controller.Init enables it once
// the server state is known. The id is trimmed the way the server trims it.
func NewControl(comicID string, render Renderer) (*Control, error) {
	id := strings.TrimSpace(comicID)
	if id == "" || strings.Contains(id, ",") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidComicID, comicID)
	}
	if len(id) > models.MaxComicIDLen {
		return nil, fmt.Errorf("%w: longer than %d characters", ErrInvalidComicID, models.MaxComicIDLen)
	}
	return &Control{
		ComicID: id,
		state:   State{Disabled: true},
		render:  render,
	}, nil
}

func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Control) set(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.render != nil {
		c.render(c.ComicID, s)
	}
}

func (c *Control) enable() {
	c.mu.Lock()
	c.state.Disabled = false
	s := c.state
	c.mu.Unlock()
	if c.render != nil {
		c.render(c.ComicID, s)
	}
}

// begin disables an enabled control and shows the optimistic opposite
// state. It returns the state to roll back to.
func (c *Control) begin() (State, bool) {
	c.mu.Lock()
	prev := c.state
	if prev.Disabled {
		c.mu.Unlock()
		return prev, false
	}
	next := State{Count: prev.Count + 1, Voted: !prev.Voted, Disabled: true}
	if prev.Voted {
		next.Count = prev.Count - 1
		if next.Count < 0 {
			next.Count = 0
		}
	}
	c.state = next
	c.mu.Unlock()

	if c.render != nil {
		c.render(c.ComicID, next)
	}
	return prev, true
}

type Controller struct {
	api      API
	controls []*Control
	log      logrus.FieldLogger
}

func NewController(api API, log logrus.FieldLogger, controls ...*Control) *Controller {
	return &Controller{api: api, controls: controls, log: log}
}

// Init fetches the state of every control's comic in one request and
// enables the controls it got an answer for. On failure every control
// stays disabled.
func (c *Controller) Init(ctx context.Context) error {
	var ids []string
	seen := make(map[string]bool)
	for _, ctl := range c.controls {
		if seen[ctl.ComicID] {
			continue
		}
		seen[ctl.ComicID] = true
		ids = append(ids, ctl.ComicID)
	}
	if len(ids) == 0 {
		return nil
	}

	tallies, err := c.api.FetchVotes(ctx, ids)
	if err != nil {
		c.log.WithError(err).Error("failed to fetch vote data")
		return err
	}

	for _, t := range tallies {
		for _, ctl := range c.controls {
			if ctl.ComicID == t.ComicID {
				ctl.set(State{Count: t.Votes, Voted: t.UserVoted})
			}
		}
	}
	return nil
}

// Click runs the optimistic toggle: render the guess, ask the server,
// then show the server's answer or roll back. The control is re-enabled
// on every exit path. A panic rolls back too and is then re-raised.
func (c *Controller) Click(ctx context.Context, ctl *Control) error {
	prev, ok := ctl.begin()
	if !ok {
		return ErrDisabled
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("comic_id", ctl.ComicID).Errorf("vote panicked: %v", r)
			ctl.set(State{Count: prev.Count, Voted: prev.Voted, Disabled: true})
			ctl.enable()
			panic(r)
		}
		ctl.enable()
	}()

	res, err := c.api.Toggle(ctx, ctl.ComicID)
	if err != nil {
		c.log.WithError(err).WithField("comic_id", ctl.ComicID).Error("vote failed")
		ctl.set(State{Count: prev.Count, Voted: prev.Voted, Disabled: true})
		return err
	}

	ctl.set(State{Count: res.Count, Voted: res.Voted, Disabled: true})
	return nil
}
