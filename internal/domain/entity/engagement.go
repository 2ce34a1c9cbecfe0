package entity

import "time"

// EngagementRecord is one row of the engagement dataset.
type EngagementRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Claps     int       `json:"claps"`
	Comments  int       `json:"comments"`
}

func (r EngagementRecord) Engagement() int {
	return r.Claps + r.Comments
}

// HourlyEngagement aggregates all records published in the same hour of day.
type HourlyEngagement struct {
	Hour              int     `json:"hour"`
	Label             string  `json:"label"`
	Posts             int     `json:"posts"`
	AverageClaps      float64 `json:"average_claps"`
	AverageComments   float64 `json:"average_comments"`
	AverageEngagement float64 `json:"average_engagement"`
}
