package model

import (
	"sync"

	scierrors "github.com/YuminosukeSato/casebook/pkg/errors"
)

// StateManager tracks whether a model has been fitted and the shape it was fitted on.
// Models hold one by pointer instead of embedding a base struct.
type StateManager struct {
	mu sync.RWMutex

	fitted    bool
	nFeatures int
	nSamples  int
}

// NewStateManager returns an unfitted StateManager.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted reports whether SetFitted has been called since the last Reset.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
}

// Reset clears the fitted flag and dimensions.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// SetDimensions records the training shape.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// GetDimensions returns the training shape.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted returns a NotFittedError naming modelName and method when unfitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return scierrors.NewNotFittedError(modelName, method)
	}
	return nil
}

// CheckFeatures validates that X has the number of columns seen in Fit.
func (s *StateManager) CheckFeatures(op string, X interface{ Dims() (int, int) }) error {
	_, c := X.Dims()
	nFeatures, _ := s.GetDimensions()
	if c != nFeatures {
		return scierrors.NewDimensionError(op, nFeatures, c, 1)
	}
	return nil
}
