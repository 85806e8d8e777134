package metrics

import (
	"math"
	"testing"

	"hfoutcome/pkg/errors"
)

func TestAUC(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   []float64
		score   []float64
		want    float64
		wantErr bool
	}{
		{
			name:  "perfect classifier",
			yTrue: []float64{0, 0, 0, 1, 1, 1},
			score: []float64{0.1, 0.2, 0.3, 0.7, 0.8, 0.9},
			want:  1.0,
		},
		{
			name:  "worst classifier",
			yTrue: []float64{0, 0, 0, 1, 1, 1},
			score: []float64{0.9, 0.8, 0.7, 0.3, 0.2, 0.1},
			want:  0.0,
		},
		{
			name:  "constant score",
			yTrue: []float64{0, 1, 0, 1},
			score: []float64{0.5, 0.5, 0.5, 0.5},
			want:  0.5,
		},
		{
			name:  "typical case",
			yTrue: []float64{0, 0, 1, 1},
			score: []float64{0.1, 0.4, 0.35, 0.8},
			want:  0.75,
		},
		{
			name:    "all positive",
			yTrue:   []float64{1, 1, 1},
			score:   []float64{0.1, 0.2, 0.3},
			wantErr: true,
		},
		{
			name:    "all negative",
			yTrue:   []float64{0, 0, 0},
			score:   []float64{0.1, 0.2, 0.3},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AUC(tt.yTrue, tt.score)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var degen *errors.DegenerateSampleError
				if !errors.As(err, &degen) {
					t.Errorf("expected DegenerateSampleError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("AUC failed: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("AUC = %v, want %v", got, tt.want)
			}
		})
	}
}

// AUC on a larger sample must agree with the independent Mann-Whitney
// pair-counting formula to 3 decimals.
func TestAUCMatchesPairCounting(t *testing.T) {
	n := 100
	yTrue := make([]float64, n)
	score := make([]float64, n)
	for i := 0; i < n; i++ {
		if i%3 == 0 {
			yTrue[i] = 1
		}
		// Deterministic, imperfect scores with some overlap.
		score[i] = math.Mod(float64(i)*0.37, 1.0)*0.6 + 0.4*yTrue[i]
	}

	got, err := AUC(yTrue, score)
	if err != nil {
		t.Fatalf("AUC failed: %v", err)
	}

	// Independent computation: count concordant pairs, half credit for ties.
	var concordant, pairs float64
	for i := 0; i < n; i++ {
		if yTrue[i] != 1 {
			continue
		}
		for j := 0; j < n; j++ {
			if yTrue[j] != 0 {
				continue
			}
			pairs++
			switch {
			case score[i] > score[j]:
				concordant++
			case score[i] == score[j]:
				concordant += 0.5
			}
		}
	}
	want := concordant / pairs

	if math.Abs(got-want) > 5e-4 {
		t.Errorf("AUC = %.6f, pair-counting formula = %.6f", got, want)
	}
}

func TestMSE(t *testing.T) {
	got, err := MSE([]float64{1, 0, 1, 0}, []float64{0.9, 0.1, 0.6, 0.4})
	if err != nil {
		t.Fatalf("MSE failed: %v", err)
	}
	want := (0.01 + 0.01 + 0.16 + 0.16) / 4
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("MSE = %v, want %v", got, want)
	}
}

func TestAUCPRPerfect(t *testing.T) {
	got, err := AUCPR([]float64{0, 0, 1, 1}, []float64{0.1, 0.2, 0.8, 0.9})
	if err != nil {
		t.Fatalf("AUCPR failed: %v", err)
	}
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("AUCPR = %v, want 1.0", got)
	}
}

func TestAUCPRDegenerate(t *testing.T) {
	_, err := AUCPR([]float64{0, 0}, []float64{0.1, 0.2})
	var degen *errors.DegenerateSampleError
	if !errors.As(err, &degen) {
		t.Errorf("expected DegenerateSampleError, got %v", err)
	}
}

func TestBestF1PicksSmallestThresholdOnTie(t *testing.T) {
	// Thresholds 0.2 (tp=2, fp=2) and 0.9 (tp=1, fp=0) both reach F1 = 2/3,
	// the maximum here, so the scan must keep the smaller threshold.
	yTrue := []float64{1, 1, 0, 0}
	score := []float64{0.9, 0.2, 0.5, 0.6}

	op, err := BestF1(yTrue, score)
	if err != nil {
		t.Fatalf("BestF1 failed: %v", err)
	}
	if math.Abs(op.F1-2.0/3.0) > 1e-9 {
		t.Errorf("F1 = %v, want 2/3", op.F1)
	}
	if op.Threshold != 0.2 {
		t.Errorf("threshold = %v, want 0.2", op.Threshold)
	}
}

func TestBestF1OperatingPoint(t *testing.T) {
	yTrue := []float64{0, 0, 0, 1, 1}
	score := []float64{0.1, 0.3, 0.6, 0.5, 0.9}

	op, err := BestF1(yTrue, score)
	if err != nil {
		t.Fatalf("BestF1 failed: %v", err)
	}

	// Threshold 0.5 yields tp=2, fp=1: precision 2/3, recall 1, F1 0.8.
	if math.Abs(op.F1-0.8) > 1e-9 {
		t.Errorf("F1 = %v, want 0.8", op.F1)
	}
	if math.Abs(op.Precision-2.0/3.0) > 1e-9 {
		t.Errorf("precision = %v, want 2/3", op.Precision)
	}
	if op.Recall != 1.0 {
		t.Errorf("recall = %v, want 1.0", op.Recall)
	}
	if op.Threshold != 0.5 {
		t.Errorf("threshold = %v, want 0.5", op.Threshold)
	}
}

func TestComputeFullVector(t *testing.T) {
	yTrue := []float64{0, 0, 1, 1}
	score := []float64{0.1, 0.4, 0.35, 0.8}

	report, err := Compute(yTrue, score)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if math.Abs(report.AUC-0.75) > 1e-9 {
		t.Errorf("AUC = %v, want 0.75", report.AUC)
	}
	vector := report.Vector()
	if len(vector) != 6 {
		t.Fatalf("vector length = %d, want 6", len(vector))
	}
	if vector[0].Name != "auc" || vector[5].Name != "recall" {
		t.Errorf("unexpected vector order: %v", vector)
	}
}

func TestComputeDegenerateSample(t *testing.T) {
	_, err := Compute([]float64{0, 0, 0}, []float64{0.1, 0.2, 0.3})
	var degen *errors.DegenerateSampleError
	if !errors.As(err, &degen) {
		t.Fatalf("expected DegenerateSampleError, got %v", err)
	}
	if degen.Class != 0 {
		t.Errorf("degenerate class = %v, want 0", degen.Class)
	}
}
