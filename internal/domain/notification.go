package domain

import "time"

// Notification kinds emitted by the core.
const (
	NotificationProjectCompleted = "project.completed"
	NotificationAwardGranted     = "award.granted"
)

// Notification is an outbound message for a participant, persisted in the
// completion transaction and delivered later by a dispatcher.
type Notification struct {
	ID          int64          `json:"id"`
	Kind        string         `json:"kind"`
	ProjectID   string         `json:"project_id"`
	RecipientID string         `json:"recipient_id"`
	Payload     map[string]any `json:"payload"`
	CreatedAt   time.Time      `json:"created_at"`
}

// CompletionNotifications builds one project.completed message per team
// member carrying that team's rank, plus one award.granted message per member
// of each awarded team.
func CompletionNotifications(
	project Project,
	instances []Instance,
	rankings []Ranking,
	awards []AwardAssignment,
	now time.Time,
) []Notification {
	rankOf := make(map[string]int, len(rankings))
	for _, r := range rankings {
		rankOf[r.InstanceID] = r.Rank
	}
	byID := make(map[string]Instance, len(instances))
	for _, inst := range instances {
		byID[inst.ID] = inst
	}

	var out []Notification
	for _, inst := range instances {
		payload := map[string]any{
			"project_title": project.Title,
			"team_name":     inst.TeamName,
		}
		if rank, ok := rankOf[inst.ID]; ok {
			payload["rank"] = rank
			payload["ranked_teams"] = len(rankings)
		}
		for _, member := range inst.Members {
			out = append(out, Notification{
				Kind:        NotificationProjectCompleted,
				ProjectID:   project.ID,
				RecipientID: member,
				Payload:     payload,
				CreatedAt:   now,
			})
		}
	}

	for _, a := range awards {
		if a.InstanceID == nil {
			continue
		}
		inst, ok := byID[*a.InstanceID]
		if !ok {
			continue
		}
		for _, member := range inst.Members {
			out = append(out, Notification{
				Kind:        NotificationAwardGranted,
				ProjectID:   project.ID,
				RecipientID: member,
				Payload: map[string]any{
					"project_title": project.Title,
					"team_name":     inst.TeamName,
					"award_id":      a.AwardID,
				},
				CreatedAt: now,
			})
		}
	}
	return out
}
