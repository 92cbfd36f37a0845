package model

type Student struct {
	ID      int64  `json:"student_id" validate:"required"`
	Name    string `json:"name" validate:"required"`
	Surname string `json:"surname" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
}

type EnrollResult struct {
	StudentID int64 `json:"student_id"`
	Enrolled  bool  `json:"enrolled"`
}
