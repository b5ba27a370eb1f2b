package grading

import "math"

const (
	// PassMark is the inclusive pass threshold at every level.
	PassMark = 10.0
	// FailMark is the score under which a semester or a year is failed outright.
	FailMark = 8.0
	// MaxScore is the upper bound of a raw component score.
	MaxScore = 20.0

	// MaxSemesterFailsWithCredit & MaxYearFailsWithCredit are the number of failed children tolerated
	// for a conditional validation. The asymmetry is academic policy.
	MaxSemesterFailsWithCredit = 2
	MaxYearFailsWithCredit     = 1
)

// Weights are the normalized coefficients of the raw components of an Element. They sum to 1.
type Weights struct {
	TP   float64
	CC   float64
	Exam float64
}

// NormalizeWeights divides each coefficient by their sum, or falls back to equal thirds when the sum is not positive.
// Negative coefficients count as zero.
func NormalizeWeights(tp, cc, exam float64) Weights {
	tp, cc, exam = math.Max(tp, 0), math.Max(cc, 0), math.Max(exam, 0)
	sum := tp + cc + exam
	if sum <= 0 {
		return Weights{TP: 1.0 / 3, CC: 1.0 / 3, Exam: 1.0 / 3}
	}
	return Weights{TP: tp / sum, CC: cc / sum, Exam: exam / sum}
}

func (w Weights) apply(tp, cc, exam float64) float64 {
	return RoundScore(tp*w.TP + cc*w.CC + exam*w.Exam)
}

// RoundScore rounds x to 2 decimals (half away from zero), the precision grades are stored with.
func RoundScore(x float64) float64 {
	return math.Round(x*100) / 100
}

func passOrFail(score float64) *Decision {
	if score >= PassMark {
		return DecisionPass.Ptr()
	}
	return DecisionFail.Ptr()
}

// FinalizeElement computes the final score & decisions of g from its raw component scores.
// The returned grade is pending (nil final & decisions) when required components are missing.
// A makeup score never lowers the final score.
// Decisions are taken on the score rounded to 2 decimals (see RoundScore), so a raw 9.995 passes.
func FinalizeElement(g ElementGrade, el Element) ElementGrade {
	w := NormalizeWeights(el.TPWeight, el.CCWeight, el.ExamWeight)
	res := g

	switch {
	case g.Makeup == nil:
		res.MakeupDecision = nil
		if g.TP == nil || g.CC == nil || g.Exam == nil {
			res.Final, res.Decision = nil, nil
			return res
		}
		final := w.apply(*g.TP, *g.CC, *g.Exam)
		res.Final = &final
		res.Decision = passOrFail(final)

	case g.TP != nil && g.CC != nil:
		var base float64
		switch {
		case g.Exam != nil:
			base = w.apply(*g.TP, *g.CC, *g.Exam)
			res.Decision = passOrFail(base)
		case g.Final != nil:
			base = *g.Final
			if res.Decision == nil {
				res.Decision = DecisionFail.Ptr()
			}
		default: // absent from the normal session
			res.Decision = DecisionFail.Ptr()
		}

		final := math.Max(base, w.apply(*g.TP, *g.CC, *g.Makeup))
		res.Final = &final
		if final >= PassMark {
			res.MakeupDecision = DecisionPassAfterMakeup.Ptr()
		} else {
			res.MakeupDecision = DecisionStillFailed.Ptr()
		}

	default:
		res.Final, res.Decision, res.MakeupDecision = nil, nil, nil
	}
	return res
}

type weightedScore struct {
	score  *float64
	weight float64
}

// weightedMean averages the scores by their weights. Pending (nil) scores make the mean pending,
// unless partial is set, in which case they are skipped.
// A zero total weight falls back to a plain mean. ok is false when there is nothing to average.
func weightedMean(items []weightedScore, partial bool) (mean float64, ok bool) {
	var sum, wsum, plain float64
	var n int
	for _, it := range items {
		if it.score == nil {
			if !partial {
				return 0, false
			}
			continue
		}
		w := math.Max(it.weight, 0)
		sum += *it.score * w
		wsum += w
		plain += *it.score
		n++
	}
	if n == 0 {
		return 0, false
	}
	if wsum == 0 {
		return RoundScore(plain / float64(n)), true
	}
	return RoundScore(sum / wsum), true
}

// AggregateModule rolls the element grades of a student up into the module's final score & decision.
// Every element of mod counts: an element without a grade (or without a final score) is pending.
func AggregateModule(mod Module, grades []ElementGrade, partial bool) (final *float64, decision *Decision) {
	byElement := make(map[int64]ElementGrade, len(grades))
	for _, g := range grades {
		byElement[g.ElementID] = g
	}

	items := make([]weightedScore, 0, len(mod.Elements))
	for _, el := range mod.Elements {
		items = append(items, weightedScore{score: byElement[el.ID].Final, weight: el.Weight})
	}
	mean, ok := weightedMean(items, partial)
	if !ok {
		return nil, nil
	}
	return &mean, passOrFail(mean)
}

// ModuleResult is a module grade along with its coefficient in the semester.
type ModuleResult struct {
	Grade       ModuleGrade
	Coefficient float64
}

// AggregateSemester rolls the module grades of a student up into the semester's result.
// failed is the number of modules decided DecisionFail.
func AggregateSemester(modules []ModuleResult, partial bool) (final *float64, decision *Decision, failed int) {
	items := make([]weightedScore, 0, len(modules))
	for _, m := range modules {
		items = append(items, weightedScore{score: m.Grade.Final, weight: m.Coefficient})
		if m.Grade.Decision != nil && *m.Grade.Decision == DecisionFail {
			failed++
		}
	}
	mean, ok := weightedMean(items, partial)
	if !ok {
		return nil, nil, failed
	}
	d := SemesterDecision(mean, failed)
	return &mean, &d, failed
}

// AggregateYear averages (equal weights) the semester grades of a student into the year's result.
// failed is the number of semesters decided DecisionNotValidated or DecisionFailed.
func AggregateYear(semesters []SemesterGrade, partial bool) (final *float64, decision *Decision, failed int) {
	items := make([]weightedScore, 0, len(semesters))
	for _, s := range semesters {
		items = append(items, weightedScore{score: s.Final, weight: 1})
		if s.Decision != nil && (*s.Decision == DecisionNotValidated || *s.Decision == DecisionFailed) {
			failed++
		}
	}
	mean, ok := weightedMean(items, partial)
	if !ok {
		return nil, nil, failed
	}
	d := YearDecision(mean, failed)
	return &mean, &d, failed
}

func SemesterDecision(score float64, failed int) Decision {
	return decide(score, failed, MaxSemesterFailsWithCredit)
}

func YearDecision(score float64, failed int) Decision {
	return decide(score, failed, MaxYearFailsWithCredit)
}

// decide applies the decision table top to bottom, first match wins.
func decide(score float64, failed, maxFailsWithCredit int) Decision {
	switch {
	case score >= PassMark && failed == 0:
		return DecisionValidated
	case score >= PassMark && failed <= maxFailsWithCredit:
		return DecisionValidatedWithCredit
	case score < FailMark:
		return DecisionFailed
	default:
		return DecisionNotValidated
	}
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func decisionPtrEqual(a, b *Decision) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
