package feed

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// ActionWeights defines the scoring weight for each predicted action.
// Positive actions use positive weights; negative actions carry negative
// weights so predicted bad outcomes pull the score down.
type ActionWeights struct {
	Like         float64 `json:"like"`          // default: 1.0
	Repost       float64 `json:"repost"`        // default: 1.2
	Reply        float64 `json:"reply"`         // default: 1.0
	Quote        float64 `json:"quote"`         // default: 0.8
	Click        float64 `json:"click"`         // default: 0.6
	Share        float64 `json:"share"`         // default: 0.9
	FollowAuthor float64 `json:"follow_author"` // default: 0.7

	NotInterested float64 `json:"not_interested"` // default: -1.5
	BlockAuthor   float64 `json:"block_author"`   // default: -2.0
	MuteAuthor    float64 `json:"mute_author"`    // default: -1.8
	Report        float64 `json:"report"`         // default: -2.0
}

// CalibrationConfig represents the JSON structure of the calibration file.
type CalibrationConfig struct {
	Version string        `json:"version"` // Config version for future compatibility
	Weights ActionWeights `json:"weights"` // Weight overrides
}

// DefaultActionWeights returns the baseline action weight configuration.
// Reposts outrank likes (distribution signal), and every negative action
// outweighs any single positive one.
func DefaultActionWeights() *ActionWeights {
	return &ActionWeights{
		Like:          1.0,
		Repost:        1.2,
		Reply:         1.0,
		Quote:         0.8,
		Click:         0.6,
		Share:         0.9,
		FollowAuthor:  0.7,
		NotInterested: -1.5,
		BlockAuthor:   -2.0,
		MuteAuthor:    -1.8,
		Report:        -2.0,
	}
}

// LoadCalibration loads action weights from a JSON calibration file.
// If the file doesn't exist or can't be read, returns default weights with an
// error so callers can degrade gracefully. Partial configurations are merged
// with defaults: only non-zero values override.
func LoadCalibration(filePath string) (*ActionWeights, error) {
	if filePath == "" {
		return DefaultActionWeights(), nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		slog.Warn("failed to read calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultActionWeights(), fmt.Errorf("failed to read calibration file: %w", err)
	}

	var config CalibrationConfig
	if err := json.Unmarshal(data, &config); err != nil {
		slog.Warn("failed to parse calibration file, using defaults",
			"path", filePath,
			"error", err)
		return DefaultActionWeights(), fmt.Errorf("failed to parse calibration file: %w", err)
	}

	merged := MergeCalibration(DefaultActionWeights(), &config.Weights)
	slog.Info("loaded action weight calibration", "path", filePath, "version", config.Version)

	return merged, nil
}

// MergeCalibration merges override weights with base weights.
// Only non-zero values from the override are applied, allowing partial
// overrides in the calibration file.
func MergeCalibration(base *ActionWeights, override *ActionWeights) *ActionWeights {
	if base == nil {
		base = DefaultActionWeights()
	}
	result := *base
	if override == nil {
		return &result
	}

	fields := []struct {
		dst *float64
		src float64
	}{
		{&result.Like, override.Like},
		{&result.Repost, override.Repost},
		{&result.Reply, override.Reply},
		{&result.Quote, override.Quote},
		{&result.Click, override.Click},
		{&result.Share, override.Share},
		{&result.FollowAuthor, override.FollowAuthor},
		{&result.NotInterested, override.NotInterested},
		{&result.BlockAuthor, override.BlockAuthor},
		{&result.MuteAuthor, override.MuteAuthor},
		{&result.Report, override.Report},
	}
	for _, f := range fields {
		if f.src != 0 {
			*f.dst = f.src
		}
	}
	return &result
}

// weightTable flattens ActionWeights into the ordered slice the scorer
// iterates. Order is fixed so explanations are deterministic.
func weightTable(w *ActionWeights) []actionWeight {
	if w == nil {
		w = DefaultActionWeights()
	}
	return []actionWeight{
		{ActionLike, w.Like},
		{ActionRepost, w.Repost},
		{ActionReply, w.Reply},
		{ActionQuote, w.Quote},
		{ActionClick, w.Click},
		{ActionShare, w.Share},
		{ActionFollowAuthor, w.FollowAuthor},
		{ActionNotInterested, w.NotInterested},
		{ActionBlockAuthor, w.BlockAuthor},
		{ActionMuteAuthor, w.MuteAuthor},
		{ActionReport, w.Report},
	}
}
