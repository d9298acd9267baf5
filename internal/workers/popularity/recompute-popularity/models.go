// internal/workers/popularity/recompute-popularity/models.go
package recomputepopularity

import "marketplace-engine/internal/models"

type Input struct {
	WindowDays int `json:"windowDays,omitempty"`
}

type Output struct {
	RunID      string               `json:"popularityRunId"`
	WindowDays int                  `json:"windowDays"`
	Processed  int                  `json:"processed"`
	Updated    int                  `json:"updated"`
	Failed     int                  `json:"failed"`
	Skipped    int                  `json:"skipped"`
	Badges     map[models.Badge]int `json:"badges"`
}
