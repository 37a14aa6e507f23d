package voteclient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeromeabel/lapreuveduconcept/internal/models"
	"github.com/jeromeabel/lapreuveduconcept/internal/testutil"
)

type fakeAPI struct {
	tallies   []models.VoteTally
	fetchErr  error
	fetchIDs  [][]string
	toggle    func(comicID string) (models.ToggleVoteResponse, error)
	toggleHit int
}

func (f *fakeAPI) FetchVotes(_ context.Context, ids []string) ([]models.VoteTally, error) {
	f.fetchIDs = append(f.fetchIDs, ids)
	return f.tallies, f.fetchErr
}

func (f *fakeAPI) Toggle(_ context.Context, comicID string) (models.ToggleVoteResponse, error) {
	f.toggleHit++
	return f.toggle(comicID)
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) render(_ string, s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func mustControl(t *testing.T, comicID string, render Renderer) *Control {
	t.Helper()
	ctl, err := NewControl(comicID, render)
	require.NoError(t, err)
	return ctl
}

func readyControl(t *testing.T, api *fakeAPI, rec *recorder, count int64, voted bool) (*Controller, *Control) {
	t.Helper()
	api.tallies = []models.VoteTally{{ComicID: "001", Votes: count, UserVoted: voted}}
	ctl := mustControl(t, "001", rec.render)
	c := NewController(api, testutil.DiscardLogger(), ctl)
	require.NoError(t, c.Init(context.Background()))
	rec.states = nil
	return c, ctl
}

func TestControlsStartDisabled(t *testing.T) {
	ctl := mustControl(t, "001", nil)
	assert.True(t, ctl.State().Disabled)

	api := &fakeAPI{}
	err := NewController(api, testutil.DiscardLogger()).Click(context.Background(), ctl)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Zero(t, api.toggleHit)
}

func TestInitBatchesAndEnables(t *testing.T) {
	api := &fakeAPI{tallies: []models.VoteTally{
		{ComicID: "001", Votes: 2, UserVoted: true},
		{ComicID: "002", Votes: 1},
	}}
	a := mustControl(t, "001", nil)
	b := mustControl(t, "002", nil)
	aAgain := mustControl(t, " 001 ", nil)
	orphan := mustControl(t, "003", nil)

	c := NewController(api, testutil.DiscardLogger(), a, b, aAgain, orphan)
	require.NoError(t, c.Init(context.Background()))

	require.Len(t, api.fetchIDs, 1)
	assert.Equal(t, []string{"001", "002", "003"}, api.fetchIDs[0])
	assert.Equal(t, State{Count: 2, Voted: true}, a.State())
	assert.Equal(t, State{Count: 2, Voted: true}, aAgain.State())
	assert.Equal(t, State{Count: 1}, b.State())
	assert.True(t, orphan.State().Disabled, "controls without server state stay disabled")
}

func TestInitFailureLeavesControlsDisabled(t *testing.T) {
	api := &fakeAPI{fetchErr: errors.New("offline")}
	ctl := mustControl(t, "001", nil)

	err := NewController(api, testutil.DiscardLogger(), ctl).Init(context.Background())
	assert.Error(t, err)
	assert.True(t, ctl.State().Disabled)
}

func TestInitWithoutControls(t *testing.T) {
	api := &fakeAPI{}
	assert.NoError(t, NewController(api, testutil.DiscardLogger()).Init(context.Background()))
	assert.Empty(t, api.fetchIDs)
}

func TestClickRendersOptimisticThenServerTruth(t *testing.T) {
	api := &fakeAPI{}
	rec := &recorder{}
	c, ctl := readyControl(t, api, rec, 4, false)

	api.toggle = func(string) (models.ToggleVoteResponse, error) {
		// Another visitor voted meanwhile: server says 6, not our guess of 5.
		assert.Equal(t, State{Count: 5, Voted: true, Disabled: true}, ctl.State())
		return models.ToggleVoteResponse{ComicID: "001", Count: 6, Voted: true}, nil
	}

	require.NoError(t, c.Click(context.Background(), ctl))
	assert.Equal(t, State{Count: 6, Voted: true}, ctl.State())
	assert.Equal(t, []State{
		{Count: 5, Voted: true, Disabled: true},
		{Count: 6, Voted: true, Disabled: true},
		{Count: 6, Voted: true},
	}, rec.states)
}

func TestClickUnvoteDecrements(t *testing.T) {
	api := &fakeAPI{}
	rec := &recorder{}
	c, ctl := readyControl(t, api, rec, 2, true)

	api.toggle = func(string) (models.ToggleVoteResponse, error) {
		assert.Equal(t, State{Count: 1, Voted: false, Disabled: true}, ctl.State())
		return models.ToggleVoteResponse{ComicID: "001", Count: 1, Voted: false}, nil
	}

	require.NoError(t, c.Click(context.Background(), ctl))
	assert.Equal(t, State{Count: 1}, ctl.State())
}

func TestClickRollsBackOnFailure(t *testing.T) {
	api := &fakeAPI{}
	rec := &recorder{}
	c, ctl := readyControl(t, api, rec, 3, true)

	boom := &APIError{Status: 500, Message: "Internal server error"}
	api.toggle = func(string) (models.ToggleVoteResponse, error) {
		return models.ToggleVoteResponse{}, boom
	}

	err := c.Click(context.Background(), ctl)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, State{Count: 3, Voted: true}, ctl.State())
	assert.Equal(t, State{Count: 2, Voted: false, Disabled: true}, rec.states[0])
}

func TestClickReenablesAfterPanic(t *testing.T) {
	api := &fakeAPI{}
	rec := &recorder{}
	c, ctl := readyControl(t, api, rec, 1, false)

	api.toggle = func(string) (models.ToggleVoteResponse, error) {
		panic("transport exploded")
	}

	assert.PanicsWithValue(t, "transport exploded", func() { _ = c.Click(context.Background(), ctl) })
	assert.Equal(t, State{Count: 1, Voted: false}, ctl.State(), "panic rolls back the optimistic guess")
	require.NotEmpty(t, rec.states)
	assert.Equal(t, State{Count: 2, Voted: true, Disabled: true}, rec.states[0])
	assert.Equal(t, State{Count: 1, Voted: false}, rec.states[len(rec.states)-1])
}

func TestNewControlNormalizesComicID(t *testing.T) {
	ctl, err := NewControl("  007\t", nil)
	require.NoError(t, err)
	assert.Equal(t, "007", ctl.ComicID)

	for _, id := range []string{"", "   ", "001,002", ",", strings.Repeat("x", models.MaxComicIDLen+1)} {
		_, err := NewControl(id, nil)
		assert.ErrorIs(t, err, ErrInvalidComicID, "id %q", id)
	}
}

func TestInitMatchesTrimmedIDs(t *testing.T) {
	api := &fakeAPI{tallies: []models.VoteTally{{ComicID: "001", Votes: 3}}}
	ctl := mustControl(t, " 001 ", nil)

	require.NoError(t, NewController(api, testutil.DiscardLogger(), ctl).Init(context.Background()))
	assert.Equal(t, []string{"001"}, api.fetchIDs[0])
	assert.Equal(t, State{Count: 3}, ctl.State())
}

func TestClickWhileInFlightIsRejected(t *testing.T) {
	api := &fakeAPI{}
	rec := &recorder{}
	c, ctl := readyControl(t, api, rec, 0, false)

	api.toggle = func(string) (models.ToggleVoteResponse, error) {
		assert.ErrorIs(t, c.Click(context.Background(), ctl), ErrDisabled)
		return models.ToggleVoteResponse{ComicID: "001", Count: 1, Voted: true}, nil
	}

	require.NoError(t, c.Click(context.Background(), ctl))
	assert.Equal(t, 1, api.toggleHit)
}

func TestOptimisticCountNeverNegative(t *testing.T) {
	api := &fakeAPI{}
	rec := &recorder{}
	c, ctl := readyControl(t, api, rec, 0, true)

	api.toggle = func(string) (models.ToggleVoteResponse, error) {
		assert.Equal(t, int64(0), ctl.State().Count)
		return models.ToggleVoteResponse{ComicID: "001", Count: 0, Voted: false}, nil
	}
	require.NoError(t, c.Click(context.Background(), ctl))
}
