// Package casebook is a collection of small machine learning case studies built on a
// scikit-learn style library for Go.
//
// Each case study generates or hand-crafts a dataset, fits library estimators, scores
// them and plots the outcome. The studies own no algorithm; everything they call lives
// in the library packages.
//
// # Quick Start
//
// Run every case study and open the index:
//
//	go run ./cmd/casebook run --all --out results
//	open results/<run-id>/index.html
//
// Or use the library directly:
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/casebook/sklearn/linear_model"
//	    "gonum.org/v1/gonum/mat"
//	)
//
//	func main() {
//	    X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
//	    y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})
//
//	    lr := linear_model.NewLinearRegression()
//	    if err := lr.Fit(X, y); err != nil {
//	        log.Fatal(err)
//	    }
//	    pred, err := lr.Predict(mat.NewDense(2, 1, []float64{5, 6}))
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(mat.Formatted(pred))
//	}
//
// # Packages
//
//   - casestudy: the notebooks and their registry
//   - datasets: frames, generators, the play-tennis table, describe and CSV/XLSX export
//   - sklearn/linear_model: LinearRegression, LogisticRegression
//   - sklearn/naive_bayes: GaussianNB, MultinomialNB
//   - sklearn/tree: decision trees with cost-complexity pruning
//   - sklearn/ensemble: bagging, random forests, AdaBoost, gradient boosting
//   - sklearn/xgboost: second-order boosted trees
//   - sklearn/cluster: MiniBatchKMeans
//   - metrics: regression and classification metrics, classification reports
//   - model_selection: train/test split, k-fold, cross-validation
//   - preprocessing: StandardScaler, LabelEncoder, OneHotEncoder
//   - plotting: gonum/plot charts
//   - core/model, core/parallel: estimator contracts, fitted state, worker fan-out
//   - pkg/errors, pkg/log: structured errors and zerolog logging
//
// # License
//
// casebook is released under the MIT License.
package casebook
