package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "nexushq/pkg/domain"
	dErrors "nexushq/pkg/domain-errors"
)

func TestStatusTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusOpen:        {StatusUnderReview},
		StatusUnderReview: {StatusResolved, StatusRejected},
	}
	all := []Status{StatusOpen, StatusUnderReview, StatusResolved, StatusRejected}
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, StatusResolved.IsTerminal())
	assert.False(t, StatusUnderReview.IsTerminal())
}

func TestDisputeLifecycle(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	d := NewDispute(id.NewDisputeID(), FileRequest{
		ClientID:      id.NewClientID(),
		Ref:           Ref{Type: RefScan, ID: 3},
		CardName:      "Black Lotus",
		SystemGrade:   "LP",
		ReportedGrade: "NM",
	}, now)
	assert.Equal(t, StatusOpen, d.Status)

	err := d.CanTransition(StatusResolved, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIllegalTransition))

	require.NoError(t, d.CanTransition(StatusUnderReview, ""))
	d.ApplyTransition(StatusUnderReview, "", now.Add(time.Hour))
	require.NotNil(t, d.UnderReviewAt)

	require.NoError(t, d.CanTransition(StatusRejected, "photo shows edge wear"))
	d.ApplyTransition(StatusRejected, "photo shows edge wear", now.Add(2*time.Hour))
	require.NotNil(t, d.RejectedAt)
	assert.Nil(t, d.ResolvedAt)
	assert.Equal(t, "photo shows edge wear", d.Resolution)

	err = d.CanTransition(StatusUnderReview, "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeIllegalTransition))
}

func TestResolutionIsOptionalAndCapped(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	d := NewDispute(id.NewDisputeID(), FileRequest{
		ClientID:      id.NewClientID(),
		Ref:           Ref{Type: RefSale, ID: 9},
		CardName:      "Mox Jet",
		ReportedGrade: "NM",
	}, now)
	d.ApplyTransition(StatusUnderReview, "", now)

	require.NoError(t, d.CanTransition(StatusResolved, ""))
	require.NoError(t, d.CanTransition(StatusResolved, strings.Repeat("a", 2000)))
	err := d.CanTransition(StatusResolved, strings.Repeat("a", 2001))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	d.ApplyTransition(StatusResolved, "", now.Add(time.Hour))
	require.NotNil(t, d.ResolvedAt)
	assert.Empty(t, d.Resolution)
}

func TestFileRequestValidate(t *testing.T) {
	valid := func() FileRequest {
		return FileRequest{
			ClientID:      id.NewClientID(),
			Ref:           Ref{Type: RefSale, ID: 1},
			CardName:      " Mox Pearl ",
			ReportedGrade: "NM",
		}
	}

	r := valid()
	require.NoError(t, r.Validate())
	assert.Equal(t, "Mox Pearl", r.CardName)

	cases := map[string]func(*FileRequest){
		"missing client":   func(r *FileRequest) { r.ClientID = id.ClientID{} },
		"bad ref type":     func(r *FileRequest) { r.Ref.Type = "deck" },
		"zero ref id":      func(r *FileRequest) { r.Ref.ID = 0 },
		"missing card":     func(r *FileRequest) { r.CardName = "  " },
		"missing reported": func(r *FileRequest) { r.ReportedGrade = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := valid()
			mutate(&r)
			assert.True(t, dErrors.HasCode(r.Validate(), dErrors.CodeValidation))
		})
	}
}

func TestCursorOrdering(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Dispute{ID: id.NewDisputeID(), CreatedAt: at}
	b := &Dispute{ID: id.NewDisputeID(), CreatedAt: at}
	if Compare(a, b) > 0 {
		a, b = b, a
	}
	later := &Dispute{ID: id.NewDisputeID(), CreatedAt: at.Add(time.Second)}

	assert.True(t, Cursor{}.Before(a))
	assert.True(t, CursorOf(a).Before(b))
	assert.False(t, CursorOf(b).Before(a))
	assert.False(t, CursorOf(a).Before(a))
	assert.True(t, CursorOf(b).Before(later))
}

func TestParse(t *testing.T) {
	st, err := ParseStatus("Under_Review")
	require.NoError(t, err)
	assert.Equal(t, StatusUnderReview, st)
	_, err = ParseStatus("closed")
	assert.Error(t, err)

	rt, err := ParseRefType("SCAN")
	require.NoError(t, err)
	assert.Equal(t, RefScan, rt)
	_, err = ParseRefType("deck")
	assert.Error(t, err)
}
