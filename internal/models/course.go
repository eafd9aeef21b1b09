package models

import (
	"database/sql/driver"
	"time"
)

// ExamConfiguration fixes duration and paper size for one exam number of a course.
type ExamConfiguration struct {
	ExamNumber      int      `json:"examNumber"`
	Duration        int      `json:"duration"`
	TotalQuestions  int      `json:"totalQuestions"`
	QuestionBankIDs []string `json:"questionBanks"`
}

// ExamConfigurations is stored as JSONB on the course row.
type ExamConfigurations []ExamConfiguration

// Value implements driver.Valuer.
func (c ExamConfigurations) Value() (driver.Value, error) {
	if c == nil {
		c = ExamConfigurations{}
	}
	return jsonValue(c)
}

// Scan implements sql.Scanner.
func (c *ExamConfigurations) Scan(src interface{}) error {
	return scanJSON(src, c)
}

// Course is read-only input to the scheduler.
type Course struct {
	ID                 string             `db:"id" json:"id"`
	Name               string             `db:"name" json:"name"`
	ExamConfigurations ExamConfigurations `db:"exam_configurations" json:"examConfigurations"`
	CreatedAt          time.Time          `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updatedAt"`
}

// ConfigFor returns the configuration for an exam number.
func (c *Course) ConfigFor(examNumber int) (ExamConfiguration, bool) {
	for _, cfg := range c.ExamConfigurations {
		if cfg.ExamNumber == examNumber {
			return cfg, true
		}
	}
	return ExamConfiguration{}, false
}

// LatestConfig returns the configuration with the highest exam number.
func (c *Course) LatestConfig() (ExamConfiguration, bool) {
	var (
		latest ExamConfiguration
		found  bool
	)
	for _, cfg := range c.ExamConfigurations {
		if !found || cfg.ExamNumber > latest.ExamNumber {
			latest = cfg
			found = true
		}
	}
	return latest, found
}

// QuestionBankIDs returns every bank referenced by the course, first occurrence first.
func (c *Course) QuestionBankIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, cfg := range c.ExamConfigurations {
		for _, id := range cfg.QuestionBankIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
