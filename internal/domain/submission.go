package domain

import "time"

// SubmissionStatus tracks review progress of a Submission.
type SubmissionStatus string

// Submission statuses.
const (
	SubmissionSubmitted   SubmissionStatus = "submitted"
	SubmissionUnderReview SubmissionStatus = "under-review"
	SubmissionReviewed    SubmissionStatus = "reviewed"
)

// Instance is one team's participation record within a Project.
type Instance struct {
	ID        string   `json:"id"`
	ProjectID string   `json:"project_id"`
	TeamName  string   `json:"team_name"`
	Members   []string `json:"members"`

	// Submissions holds every submission, superseded ones included.
	Submissions []Submission `json:"submissions,omitempty"`
}

// Submission is a team's hand-in. Teams may resubmit; only the canonical
// (latest) submission is ranked.
type Submission struct {
	ID            string           `json:"id"`
	InstanceID    string           `json:"instance_id"`
	RepositoryURL string           `json:"repository_url"`
	DeploymentURL string           `json:"deployment_url"`
	Notes         string           `json:"notes"`
	SubmittedOn   time.Time        `json:"submitted_on"`
	Status        SubmissionStatus `json:"status"`
}

// SupersededBy reports whether other replaces s as the canonical submission:
// a later timestamp wins and equal timestamps fall back to the greater ID.
func (s Submission) SupersededBy(other Submission) bool {
	if !other.SubmittedOn.Equal(s.SubmittedOn) {
		return other.SubmittedOn.After(s.SubmittedOn)
	}
	return other.ID > s.ID
}
