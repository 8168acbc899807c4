// Package tuner drives the disparity pipeline the way an interactive tuner
// does: images and parameter changes arrive as separate notifications, and
// each one that leaves the session computable triggers a fresh
// compute + normalize run.
//
// A Session is not safe for concurrent use. Hosts that receive events on
// several goroutines must serialize them.
package tuner

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"sgbmtuner/internal/models"
	"sgbmtuner/pkg/display"
	"sgbmtuner/pkg/imageio"
	"sgbmtuner/pkg/logging"
	"sgbmtuner/pkg/stereo"
)

// ErrNotReady is returned by Process when an input image is missing
var ErrNotReady = errors.New("left and right images are required")

// Params holds the session options that are not matching parameters
type Params struct {
	// SaveIntermediaryResults writes the pre-filtered inputs, the raw
	// disparity field and the display map of every run.
	SaveIntermediaryResults bool

	// IntermediaryDir is where intermediary results are saved.
	// Only used when SaveIntermediaryResults is true.
	IntermediaryDir string
}

// Result is the outcome of one pipeline run
type Result struct {
	// Params is the parameter set the run used
	Params stereo.ParameterSet

	// Field is the raw disparity output
	Field *models.DisparityField

	// Map is the normalized rendering of Field
	Map *models.DisplayMap

	// Stats summarizes the valid disparities
	Stats display.Stats

	// Elapsed is the wall time of compute + normalize
	Elapsed time.Duration
}

// Session holds the current images and parameters
type Session struct {
	opts   Params
	engine *stereo.Engine
	params stereo.ParameterSet

	left  *models.Image
	right *models.Image

	last *Result
	runs int
}

// NewSession creates a session starting from params
func NewSession(params stereo.ParameterSet, opts *Params) *Session {
	s := &Session{
		engine: stereo.NewEngine(),
		params: params,
	}
	if opts != nil {
		s.opts = *opts
	}
	return s
}

// Params returns a copy of the current parameters
func (s *Session) Params() stereo.ParameterSet { return s.params }

// Last returns the most recent successful result, or nil
func (s *Session) Last() *Result { return s.last }

// Ready reports whether both images are loaded
func (s *Session) Ready() bool { return s.left != nil && s.right != nil }

// LoadLeft sets the left image and recomputes when possible. The block size
// bound is re-derived from the loaded images before computing.
func (s *Session) LoadLeft(img *models.Image) (*Result, error) {
	s.left = img
	s.updateBlockSizeLimit()
	return s.recompute()
}

// LoadRight sets the right image and recomputes when possible
func (s *Session) LoadRight(img *models.Image) (*Result, error) {
	s.right = img
	s.updateBlockSizeLimit()
	return s.recompute()
}

// SetParam applies a parameter-change notification and recomputes when both
// images are loaded. A rejected value leaves the parameters unchanged.
func (s *Session) SetParam(name string, value int) (*Result, error) {
	next := s.params
	if err := next.Set(name, value); err != nil {
		return nil, err
	}
	s.params = next
	logging.Debugf("parameter %s set to %d", name, value)
	return s.recompute()
}

// SetParams replaces the whole parameter set and recomputes
func (s *Session) SetParams(p stereo.ParameterSet) (*Result, error) {
	s.params = p
	s.updateBlockSizeLimit()
	return s.recompute()
}

// updateBlockSizeLimit bounds the block size by the smallest loaded image side
func (s *Session) updateBlockSizeLimit() {
	w, h := stereo.MaxBlockSize, stereo.MaxBlockSize
	for _, img := range []*models.Image{s.left, s.right} {
		if img.Empty() {
			continue
		}
		w = min(w, img.Width)
		h = min(h, img.Height)
	}
	s.params.SetBlockSizeLimit(w, h)
}

// recompute runs the pipeline if both images are present. A missing image is
// not an error: there is simply nothing to show yet.
func (s *Session) recompute() (*Result, error) {
	if !s.Ready() {
		return nil, nil
	}
	return s.Process()
}

// Process runs the complete pipeline on the current images and parameters.
// On failure the previous result stays available through Last.
func (s *Session) Process() (*Result, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}
	if err := stereo.CheckImages(s.left, s.right); err != nil {
		return nil, fmt.Errorf("can't compute depth map: %w", err)
	}

	params := s.params
	s.runs++
	run := s.runs

	// Step 1: Compute the raw disparity field
	logging.Debugf("run %d: computing disparity with %s", run, params)
	start := time.Now()
	field, err := s.engine.Compute(s.left, s.right, params)
	if err != nil {
		return nil, fmt.Errorf("failed to compute disparity: %w", err)
	}

	// Step 2: Normalize for display
	m := display.Normalize(field)
	elapsed := time.Since(start)

	// Step 3: Summarize
	result := &Result{
		Params:  params,
		Field:   field,
		Map:     m,
		Stats:   display.Summarize(field),
		Elapsed: elapsed,
	}
	logging.Debugf("run %d: %s in %v", run, result.Stats, elapsed)
	if m.Degenerate {
		logging.Debugf("run %d: disparity field has no value range, display map is blank", run)
	}

	if s.opts.SaveIntermediaryResults {
		if err := s.saveIntermediaryResults(run, params, result); err != nil {
			logging.Printf("Warning: failed to save intermediary results of run %d: %v", run, err)
		}
	}

	s.last = result
	return result, nil
}

// saveIntermediaryResults writes the stages of one run into its own directory
func (s *Session) saveIntermediaryResults(run int, params stereo.ParameterSet, result *Result) error {
	dir := filepath.Join(s.opts.IntermediaryDir, fmt.Sprintf("run_%03d", run))

	stages := []struct {
		name string
		save func(path string) error
	}{
		{"01_left_prefiltered.png", func(path string) error {
			return imageio.SaveGray(path, stereo.PreFilter(s.left, params.PreFilterCap()))
		}},
		{"02_right_prefiltered.png", func(path string) error {
			return imageio.SaveGray(path, stereo.PreFilter(s.right, params.PreFilterCap()))
		}},
		{"03_disparity_raw.png", func(path string) error {
			return imageio.SaveDisparity(path, result.Field)
		}},
		{"04_disparity_display.png", func(path string) error {
			return imageio.SaveDisplayMap(path, result.Map, false)
		}},
	}
	for _, stage := range stages {
		if err := stage.save(filepath.Join(dir, stage.name)); err != nil {
			return err
		}
	}
	return nil
}
