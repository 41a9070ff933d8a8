package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Webtech-MQP/webjam-sub000/internal/domain"
)

func TestSelectCanonicalSubmissions(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	instances := []domain.Instance{
		{
			ID: "latest-wins",
			Submissions: []domain.Submission{
				{ID: "s1", SubmittedOn: base},
				{ID: "s3", SubmittedOn: base.Add(2 * time.Hour)},
				{ID: "s2", SubmittedOn: base.Add(time.Hour)},
			},
		},
		{
			ID: "tie-on-time",
			Submissions: []domain.Submission{
				{ID: "t-b", SubmittedOn: base},
				{ID: "t-a", SubmittedOn: base},
			},
		},
		{ID: "no-submissions"},
		{
			ID:          "single",
			Submissions: []domain.Submission{{ID: "only", SubmittedOn: base}},
		},
	}

	got := SelectCanonicalSubmissions(instances)

	assert.Len(t, got, 3, "instances without submissions are excluded")
	assert.Equal(t, "s3", got["latest-wins"].ID)
	assert.Equal(t, "t-b", got["tie-on-time"].ID, "equal timestamps fall back to the greater ID")
	assert.Equal(t, "only", got["single"].ID)
	_, ok := got["no-submissions"]
	assert.False(t, ok)
}

func TestSelectCanonicalSubmissions_OrderIndependent(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	subs := []domain.Submission{
		{ID: "x", SubmittedOn: base},
		{ID: "y", SubmittedOn: base.Add(time.Minute)},
		{ID: "z", SubmittedOn: base.Add(time.Minute)},
	}
	reversed := []domain.Submission{subs[2], subs[1], subs[0]}

	a := SelectCanonicalSubmissions([]domain.Instance{{ID: "i", Submissions: subs}})
	b := SelectCanonicalSubmissions([]domain.Instance{{ID: "i", Submissions: reversed}})

	assert.Equal(t, "z", a["i"].ID)
	assert.Equal(t, a, b)
}
