package dto

// AllocateSystemsRequest seats every enrolled student of a course at an institute.
type AllocateSystemsRequest struct {
	CourseID                string   `json:"courseId" validate:"required"`
	InstituteID             string   `json:"instituteId" validate:"required"`
	Title                   string   `json:"title" validate:"required,max=200"`
	Type                    string   `json:"type" validate:"omitempty,oneof=DPP Final"`
	Date                    string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime               string   `json:"startTime" validate:"omitempty,datetime=15:04"`
	ExamNumber              int      `json:"examNumber" validate:"omitempty,min=1"`
	TotalQuestions          int      `json:"totalQuestions" validate:"required,min=1"`
	SelectedQuestionBankIDs []string `json:"selectedQuestionBankIds" validate:"omitempty,dive,required"`
	ForceNextDay            bool     `json:"forceNextDay"`
	ForceNextSection        bool     `json:"forceNextSection"`
}

// ScheduleFinalRequest books a single-section final exam bound to a course exam configuration.
type ScheduleFinalRequest struct {
	CourseID    string   `json:"courseId" validate:"required"`
	InstituteID string   `json:"instituteId" validate:"required"`
	Title       string   `json:"title" validate:"required,max=200"`
	Date        string   `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string   `json:"startTime" validate:"required,datetime=15:04"`
	StudentIDs  []string `json:"studentIds" validate:"omitempty,dive,required"`
	ExamNumber  int      `json:"examNumber" validate:"required,min=1"`
}

// ScheduleMultiSectionRequest books a final exam across as many sections and days as needed.
type ScheduleMultiSectionRequest struct {
	InstituteID  string   `json:"instituteId" validate:"required"`
	CourseID     string   `json:"courseId" validate:"required"`
	StudentIDs   []string `json:"studentIds" validate:"required,min=1,dive,required"`
	ProposedDate string   `json:"proposedDate" validate:"required,datetime=2006-01-02"`
	Title        string   `json:"title" validate:"required,max=200"`
	ExamNumber   int      `json:"examNumber" validate:"omitempty,min=1"`
}

// AvailabilityQuery previews free machines for a window.
type AvailabilityQuery struct {
	Date      string `form:"date" json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `form:"startTime" json:"startTime" validate:"required,datetime=15:04"`
	Duration  int    `form:"duration" json:"duration" validate:"omitempty,min=1,max=1440"`
}

// AvailabilityResponse lists machines free for the requested window.
type AvailabilityResponse struct {
	InstituteID string   `json:"instituteId"`
	Date        string   `json:"date"`
	StartTime   string   `json:"startTime"`
	EndTime     string   `json:"endTime"`
	Systems     []string `json:"systems"`
}
