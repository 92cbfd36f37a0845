package model

type Course struct {
	ID          string `json:"course_id" validate:"required"`
	Name        string `json:"course_name" validate:"required"`
	Enabled     bool   `json:"enabled"`
	MinTeamSize int    `json:"min_team_size" validate:"required,min=1"`
	MaxTeamSize int    `json:"max_team_size" validate:"required,min=1"`
}
