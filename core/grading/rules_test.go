package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fp(f float64) *float64 { return &f }

func TestNormalizeWeights(t *testing.T) {
	tests := []struct {
		name         string
		tp, cc, exam float64
		want         Weights
	}{
		{name: "already normalized", tp: 0.3, cc: 0.3, exam: 0.4, want: Weights{TP: 0.3, CC: 0.3, Exam: 0.4}},
		{name: "scaled", tp: 1, cc: 1, exam: 2, want: Weights{TP: 0.25, CC: 0.25, Exam: 0.5}},
		{name: "all zero", want: Weights{TP: 1.0 / 3, CC: 1.0 / 3, Exam: 1.0 / 3}},
		{name: "negative counts as zero", tp: -1, cc: 1, exam: 1, want: Weights{TP: 0, CC: 0.5, Exam: 0.5}},
		{name: "all negative", tp: -1, cc: -2, exam: -3, want: Weights{TP: 1.0 / 3, CC: 1.0 / 3, Exam: 1.0 / 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeWeights(tt.tp, tt.cc, tt.exam)
			assert.InDelta(t, tt.want.TP, got.TP, 1e-9)
			assert.InDelta(t, tt.want.CC, got.CC, 1e-9)
			assert.InDelta(t, tt.want.Exam, got.Exam, 1e-9)
		})
	}
}

func TestRoundScore(t *testing.T) {
	assert.Equal(t, 11.0, RoundScore(0.3*12+0.3*14+0.4*8))
	assert.Equal(t, 8.67, RoundScore(26.0/3))
	assert.Equal(t, 9.99, RoundScore(9.99))
}

func TestFinalizeElement(t *testing.T) {
	equal := Element{ID: 1, TPWeight: 1, CCWeight: 1, ExamWeight: 1, Weight: 1}

	tests := []struct {
		name               string
		el                 Element
		g                  ElementGrade
		wantFinal          *float64
		wantDecision       *Decision
		wantMakeupDecision *Decision
	}{
		{
			name:         "normalization",
			el:           Element{TPWeight: 0.3, CCWeight: 0.3, ExamWeight: 0.4},
			g:            ElementGrade{TP: fp(12), CC: fp(14), Exam: fp(8)},
			wantFinal:    fp(11),
			wantDecision: DecisionPass.Ptr(),
		},
		{
			name:         "zero weights fall back to thirds",
			el:           Element{},
			g:            ElementGrade{TP: fp(12), CC: fp(18), Exam: fp(6)},
			wantFinal:    fp(12),
			wantDecision: DecisionPass.Ptr(),
		},
		{
			name:         "pass mark is inclusive",
			el:           equal,
			g:            ElementGrade{TP: fp(10), CC: fp(10), Exam: fp(10)},
			wantFinal:    fp(10),
			wantDecision: DecisionPass.Ptr(),
		},
		{
			name:         "just under the pass mark",
			el:           equal,
			g:            ElementGrade{TP: fp(9.99), CC: fp(9.99), Exam: fp(9.99)},
			wantFinal:    fp(9.99),
			wantDecision: DecisionFail.Ptr(),
		},
		{
			name:         "decided on the rounded score",
			el:           Element{ExamWeight: 1},
			g:            ElementGrade{TP: fp(0), CC: fp(0), Exam: fp(9.996)},
			wantFinal:    fp(10),
			wantDecision: DecisionPass.Ptr(),
		},
		{
			name: "missing component stays pending",
			el:   equal,
			g:    ElementGrade{TP: fp(12), CC: fp(14)},
		},
		{
			name: "stale result is cleared when a component is removed",
			el:   equal,
			g:    ElementGrade{TP: fp(12), CC: fp(14), Final: fp(13), Decision: DecisionPass.Ptr()},
		},
		{
			name:               "makeup never lowers the final score",
			el:                 Element{TPWeight: 1, CCWeight: 1, ExamWeight: 2},
			g:                  ElementGrade{TP: fp(9), CC: fp(9), Exam: fp(9), Makeup: fp(8)},
			wantFinal:          fp(9),
			wantDecision:       DecisionFail.Ptr(),
			wantMakeupDecision: DecisionStillFailed.Ptr(),
		},
		{
			name:               "makeup raises the final score",
			el:                 Element{TPWeight: 1, CCWeight: 1, ExamWeight: 2},
			g:                  ElementGrade{TP: fp(9), CC: fp(9), Exam: fp(6), Makeup: fp(14)},
			wantFinal:          fp(11.5),
			wantDecision:       DecisionFail.Ptr(),
			wantMakeupDecision: DecisionPassAfterMakeup.Ptr(),
		},
		{
			name:               "makeup without exam uses stored final",
			el:                 equal,
			g:                  ElementGrade{TP: fp(6), CC: fp(6), Makeup: fp(3), Final: fp(7)},
			wantFinal:          fp(7),
			wantDecision:       DecisionFail.Ptr(),
			wantMakeupDecision: DecisionStillFailed.Ptr(),
		},
		{
			name:               "makeup after absence from the exam",
			el:                 equal,
			g:                  ElementGrade{TP: fp(12), CC: fp(12), Makeup: fp(12)},
			wantFinal:          fp(12),
			wantDecision:       DecisionFail.Ptr(),
			wantMakeupDecision: DecisionPassAfterMakeup.Ptr(),
		},
		{
			name: "makeup without tp stays pending",
			el:   equal,
			g:    ElementGrade{CC: fp(12), Exam: fp(12), Makeup: fp(12)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FinalizeElement(tt.g, tt.el)
			assert.Equal(t, tt.wantFinal, got.Final)
			assert.Equal(t, tt.wantDecision, got.Decision)
			assert.Equal(t, tt.wantMakeupDecision, got.MakeupDecision)

			// raw scores are never touched
			assert.Equal(t, tt.g.TP, got.TP)
			assert.Equal(t, tt.g.CC, got.CC)
			assert.Equal(t, tt.g.Exam, got.Exam)
			assert.Equal(t, tt.g.Makeup, got.Makeup)
		})
	}
}

func TestAggregateModule(t *testing.T) {
	mod := Module{
		ID: 1,
		Elements: []Element{
			{ID: 1, Weight: 1},
			{ID: 2, Weight: 3},
		},
	}

	t.Run("weighted by element weight", func(t *testing.T) {
		final, decision := AggregateModule(mod, []ElementGrade{
			{ElementID: 1, Final: fp(8)},
			{ElementID: 2, Final: fp(12)},
		}, false)
		require.NotNil(t, final)
		assert.Equal(t, 11.0, *final)
		assert.Equal(t, DecisionPass.Ptr(), decision)
	})

	t.Run("pending element keeps the module pending", func(t *testing.T) {
		final, decision := AggregateModule(mod, []ElementGrade{{ElementID: 1, Final: fp(8)}, {ElementID: 2}}, false)
		assert.Nil(t, final)
		assert.Nil(t, decision)
	})

	t.Run("missing element grade keeps the module pending", func(t *testing.T) {
		final, _ := AggregateModule(mod, []ElementGrade{{ElementID: 1, Final: fp(8)}}, false)
		assert.Nil(t, final)
	})

	t.Run("partial averages skip pending elements", func(t *testing.T) {
		final, decision := AggregateModule(mod, []ElementGrade{{ElementID: 1, Final: fp(8)}}, true)
		require.NotNil(t, final)
		assert.Equal(t, 8.0, *final)
		assert.Equal(t, DecisionFail.Ptr(), decision)
	})

	t.Run("zero weights fall back to plain mean", func(t *testing.T) {
		m := Module{Elements: []Element{{ID: 1}, {ID: 2}}}
		final, _ := AggregateModule(m, []ElementGrade{{ElementID: 1, Final: fp(8)}, {ElementID: 2, Final: fp(13)}}, false)
		require.NotNil(t, final)
		assert.Equal(t, 10.5, *final)
	})

	t.Run("no elements", func(t *testing.T) {
		final, decision := AggregateModule(Module{}, nil, false)
		assert.Nil(t, final)
		assert.Nil(t, decision)
	})
}

func moduleResult(final float64, coef float64) ModuleResult {
	return ModuleResult{
		Grade:       ModuleGrade{Final: fp(final), Decision: passOrFail(final)},
		Coefficient: coef,
	}
}

func TestAggregateSemester(t *testing.T) {
	final, decision, failed := AggregateSemester([]ModuleResult{
		moduleResult(12, 1),
		moduleResult(9, 1),
		moduleResult(16, 2),
	}, false)
	require.NotNil(t, final)
	assert.Equal(t, 13.25, *final)
	assert.Equal(t, 1, failed)
	assert.Equal(t, DecisionValidatedWithCredit.Ptr(), decision)

	t.Run("pending module", func(t *testing.T) {
		final, decision, failed := AggregateSemester([]ModuleResult{
			moduleResult(9, 1),
			{Grade: ModuleGrade{}, Coefficient: 1},
		}, false)
		assert.Nil(t, final)
		assert.Nil(t, decision)
		assert.Equal(t, 1, failed)
	})
}

func TestAggregateYear(t *testing.T) {
	sem := func(final float64, d Decision) SemesterGrade {
		return SemesterGrade{Final: fp(final), Decision: d.Ptr()}
	}

	final, decision, failed := AggregateYear([]SemesterGrade{
		sem(12, DecisionValidated),
		sem(9, DecisionNotValidated),
	}, false)
	require.NotNil(t, final)
	assert.Equal(t, 10.5, *final)
	assert.Equal(t, 1, failed)
	assert.Equal(t, DecisionValidatedWithCredit.Ptr(), decision)

	final, decision, failed = AggregateYear([]SemesterGrade{
		sem(14, DecisionValidated),
		sem(7, DecisionFailed),
		{},
	}, false)
	assert.Nil(t, final)
	assert.Nil(t, decision)
	assert.Equal(t, 1, failed)
}

func TestDecisionTables(t *testing.T) {
	tests := []struct {
		score        float64
		failed       int
		wantSemester Decision
		wantYear     Decision
	}{
		{score: 10, failed: 0, wantSemester: DecisionValidated, wantYear: DecisionValidated},
		{score: 12, failed: 1, wantSemester: DecisionValidatedWithCredit, wantYear: DecisionValidatedWithCredit},
		{score: 12, failed: 2, wantSemester: DecisionValidatedWithCredit, wantYear: DecisionNotValidated},
		{score: 12, failed: 3, wantSemester: DecisionNotValidated, wantYear: DecisionNotValidated},
		{score: 9.99, failed: 0, wantSemester: DecisionNotValidated, wantYear: DecisionNotValidated},
		{score: 8, failed: 0, wantSemester: DecisionNotValidated, wantYear: DecisionNotValidated},
		{score: 7.99, failed: 0, wantSemester: DecisionFailed, wantYear: DecisionFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantSemester, SemesterDecision(tt.score, tt.failed), "semester %v/%d", tt.score, tt.failed)
		assert.Equal(t, tt.wantYear, YearDecision(tt.score, tt.failed), "year %v/%d", tt.score, tt.failed)
	}
}
