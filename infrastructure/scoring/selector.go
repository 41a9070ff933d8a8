package scoring

import "github.com/Webtech-MQP/webjam-sub000/internal/domain"

// SelectCanonicalSubmissions picks, for each instance, the submission with
// the latest SubmittedOn, breaking timestamp ties by the greater submission
// ID. Instances without submissions are left out of the result.
func SelectCanonicalSubmissions(instances []domain.Instance) map[string]domain.Submission {
	out := make(map[string]domain.Submission, len(instances))
	for _, inst := range instances {
		if len(inst.Submissions) == 0 {
			continue
		}
		best := inst.Submissions[0]
		for _, s := range inst.Submissions[1:] {
			if best.SupersededBy(s) {
				best = s
			}
		}
		out[inst.ID] = best
	}
	return out
}
