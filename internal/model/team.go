package model

// TeamMember is a student seen through a team. For inactive teams the
// proposal fields carry the member's own confirmation state and links;
// for active teams they are omitted.
type TeamMember struct {
	StudentID        int64  `json:"student_id"`
	Name             string `json:"name"`
	Surname          string `json:"surname"`
	ProposalAccepted *bool  `json:"proposal_accepted,omitempty"`
	ProposalRejected *bool  `json:"proposal_rejected,omitempty"`
	URLConfirm       string `json:"url_confirm,omitempty"`
	URLReject        string `json:"url_reject,omitempty"`
}

type Team struct {
	ID       int64         `json:"team_id"`
	Name     string        `json:"team_name"`
	CourseID string        `json:"course_id"`
	Active   bool          `json:"active"`
	Disabled bool          `json:"disabled"`
	Members  []*TeamMember `json:"members,omitempty"`
}
