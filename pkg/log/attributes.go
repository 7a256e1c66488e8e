// Package log defines standard attribute keys for casebook logging.
//
// Keys follow a dotted hierarchy ("model.name", "data.samples") so that JSON log lines
// from different case studies can be filtered the same way.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the estimator type, e.g. "RandomForestClassifier".
	ModelNameKey = "model.name"

	// OperationKey is one of the Operation* values below.
	OperationKey = "ml.operation"

	// ComponentKey names the package or subsystem emitting the record.
	ComponentKey = "ml.component"

	// PhaseKey is one of the Phase* values below.
	PhaseKey = "ml.phase"

	// CaseStudyKey names the case study being executed.
	CaseStudyKey = "casebook.case"

	// RunIDKey identifies one invocation of the runner.
	RunIDKey = "casebook.run_id"

	// ArtifactKey is the path of a file written by a case study.
	ArtifactKey = "casebook.artifact"
)

// Data shape.
const (
	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	TargetsKey  = "data.targets"
	ClassesKey  = "data.classes"
)

// Performance and metrics.
const (
	DurationMsKey = "perf.duration_ms"
	AccuracyKey   = "metrics.accuracy"
	LossKey       = "metrics.loss"
	R2ScoreKey    = "metrics.r2_score"
	IterationKey  = "training.iteration"
	EstimatorsKey = "training.n_estimators"
)

// Error context.
const (
	ErrorCodeKey  = "error.code"
	SuggestionKey = "error.suggestion"
)

// Configuration.
const (
	LearningRateKey = "hyperparams.learning_rate"
	RandomSeedKey   = "config.random_seed"
)

// Standard attribute values.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"
	OperationPlot      = "plot"

	PhaseTraining      = "training"
	PhaseTesting       = "testing"
	PhasePreprocessing = "preprocessing"
	PhaseReporting     = "reporting"

	ErrorNotFitted         = "NOT_FITTED"
	ErrorDimensionMismatch = "DIMENSION_MISMATCH"
	ErrorConvergence       = "CONVERGENCE_FAILURE"
	ErrorPanic             = "PANIC"
)
