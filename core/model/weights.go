package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"math"

	scierrors "github.com/YuminosukeSato/casebook/pkg/errors"
)

// WeightsVersion is written into every exported ModelWeights.
const WeightsVersion = "1.0"

// ModelWeights is the JSON form of a linear model. Coefficients holds one row per
// target; single-target models have exactly one row.
type ModelWeights struct {
	ModelType       string                 `json:"model_type"`
	Version         string                 `json:"version"`
	Coefficients    [][]float64            `json:"coefficients"`
	Intercepts      []float64              `json:"intercepts"`
	Features        []string               `json:"features,omitempty"`
	Targets         []string               `json:"targets,omitempty"`
	Hyperparameters map[string]interface{} `json:"hyperparameters"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	IsFitted        bool                   `json:"is_fitted"`
	Checksum        string                 `json:"checksum,omitempty"`
}

// ToJSON serializes the weights with indentation.
func (mw *ModelWeights) ToJSON() ([]byte, error) {
	data, err := json.MarshalIndent(mw, "", "  ")
	if err != nil {
		return nil, scierrors.Wrap(err, "marshal model weights")
	}
	return data, nil
}

// FromJSON replaces mw with the decoded data.
func (mw *ModelWeights) FromJSON(data []byte) error {
	if err := json.Unmarshal(data, mw); err != nil {
		return scierrors.Wrap(err, "unmarshal model weights")
	}
	return nil
}

// Validate checks required fields, shape consistency and the checksum when present.
func (mw *ModelWeights) Validate() error {
	if mw.ModelType == "" {
		return scierrors.NewValidationError("model_type", "is required", mw.ModelType)
	}
	if mw.Version == "" {
		return scierrors.NewValidationError("version", "is required", mw.Version)
	}
	if !mw.IsFitted {
		if len(mw.Coefficients) > 0 {
			return scierrors.NewValidationError("coefficients", "unfitted model should not have coefficients", len(mw.Coefficients))
		}
		return nil
	}
	if len(mw.Coefficients) == 0 {
		return scierrors.NewValidationError("coefficients", "fitted model must have coefficients", 0)
	}
	if len(mw.Intercepts) != len(mw.Coefficients) {
		return scierrors.NewDimensionError("ModelWeights.Validate", len(mw.Coefficients), len(mw.Intercepts), 0)
	}
	nFeatures := len(mw.Coefficients[0])
	for _, row := range mw.Coefficients[1:] {
		if len(row) != nFeatures {
			return scierrors.NewDimensionError("ModelWeights.Validate", nFeatures, len(row), 1)
		}
	}
	if mw.Checksum != "" && mw.Checksum != mw.ComputeChecksum() {
		return scierrors.NewValidationError("checksum", "does not match coefficients", mw.Checksum)
	}
	return nil
}

// ComputeChecksum hashes the coefficient and intercept bits.
func (mw *ModelWeights) ComputeChecksum() string {
	h := sha256.New()
	var buf [8]byte
	write := func(v float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for _, row := range mw.Coefficients {
		for _, v := range row {
			write(v)
		}
	}
	for _, v := range mw.Intercepts {
		write(v)
	}
	return hex.EncodeToString(h.Sum(nil))
}
