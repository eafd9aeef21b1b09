package dto

// BulkRescheduleRequest moves a subset of an exam's students to a new date.
type BulkRescheduleRequest struct {
	ExamID         string   `json:"-"`
	StudentIDs     []string `json:"studentIds" validate:"required,min=1,dive,required"`
	RescheduleDate string   `json:"rescheduleDate" validate:"required,datetime=2006-01-02"`
	Reason         string   `json:"reason" validate:"required,max=500"`
}

// RescheduledStudent is the new seat of a moved student.
type RescheduledStudent struct {
	StudentID  string `json:"studentId"`
	SystemName string `json:"systemName"`
	Date       string `json:"date"`
	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime"`
}

// BulkRescheduleResponse reports where each student landed.
type BulkRescheduleResponse struct {
	RescheduledStudents []RescheduledStudent `json:"rescheduledStudents"`
	OriginalExamID      string               `json:"originalExamId"`
	RescheduledExamID   string               `json:"rescheduledExamId"`
}

// UpdateRescheduleRequest replaces the roster of a rescheduled exam.
type UpdateRescheduleRequest struct {
	ExamID         string   `json:"-"`
	StudentIDs     []string `json:"studentIds" validate:"required,min=1,dive,required"`
	RescheduleDate string   `json:"rescheduleDate" validate:"required,datetime=2006-01-02"`
	Reason         string   `json:"reason" validate:"required,max=500"`
}

// UpdateRescheduleResponse summarises the roster reconciliation.
type UpdateRescheduleResponse struct {
	Message string   `json:"message"`
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Updated []string `json:"updated"`
}

// ApproveRescheduleRequest decides a batch of pending reschedule requests.
type ApproveRescheduleRequest struct {
	RequestIDs []string `json:"requestIds" validate:"required,min=1,dive,required"`
	Approve    bool     `json:"approve"`
}

// ScheduledExamSummary describes an exam created for approved requests.
type ScheduledExamSummary struct {
	OriginalExamID string   `json:"originalExamId"`
	ExamID         string   `json:"examId"`
	Date           string   `json:"date"`
	StartTime      string   `json:"startTime"`
	EndTime        string   `json:"endTime"`
	StudentIDs     []string `json:"studentIds"`
	RequestIDs     []string `json:"requestIds"`
}

// ApproveRescheduleResponse lists exams scheduled for approved requests.
type ApproveRescheduleResponse struct {
	ScheduledExams []ScheduledExamSummary `json:"scheduledExams"`
	Processed      int                    `json:"processed"`
}
