package grading

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/deliberation/core"
)

// EntryKind is a score entry session.
type EntryKind string

const (
	EntryNormal EntryKind = "normal"
	EntryMakeup EntryKind = "makeup"
)

// PeriodGate tells whether instructors may currently enter scores of a given kind.
// Only score entry consults it: batches run regardless of the periods.
type PeriodGate interface {
	IsOpen(kind EntryKind) bool
}

var (
	scoreEntryKindTag  = "scoreentrykind"
	scoreEntryKindText = "normal entries take tp, cc and/or exam scores; makeup entries only take a makeup score"
)

func init() {
	core.Validate.RegisterStructValidation(scoreEntryStructValidation, ScoreEntry{})
	core.RegisterCustomTranslation(scoreEntryKindTag, scoreEntryKindText)
}

// ScoreEntry holds raw component scores entered by an instructor for one element grade.
// nil scores are left unchanged.
type ScoreEntry struct {
	Kind         EntryKind `json:"kind" validate:"required,oneof=normal makeup"`
	StudentID    int64     `json:"student_id" validate:"required,gt=0"`
	ElementID    int64     `json:"element_id" validate:"required,gt=0"`
	SemesterID   int       `json:"semester_id" validate:"required,gt=0"`
	AcademicYear string    `json:"academic_year" validate:"required,academicyear"`
	TP           *float64  `json:"tp" validate:"omitempty,min=0,max=20"`
	CC           *float64  `json:"cc" validate:"omitempty,min=0,max=20"`
	Exam         *float64  `json:"exam" validate:"omitempty,min=0,max=20"`
	Makeup       *float64  `json:"makeup" validate:"omitempty,min=0,max=20"`
}

func (se *ScoreEntry) Validate() error {
	se.Kind = EntryKind(core.CleanString(string(se.Kind), true /* lower */))
	se.AcademicYear = core.CleanString(se.AcademicYear)
	return core.ValidateStruct(se)
}

func (se ScoreEntry) key() ElementGradeKey {
	return ElementGradeKey{
		StudentID:    se.StudentID,
		ElementID:    se.ElementID,
		SemesterID:   se.SemesterID,
		AcademicYear: se.AcademicYear,
	}
}

// scoreEntryStructValidation checks that the provided scores match the entry kind.
func scoreEntryStructValidation(sl validator.StructLevel) {
	se, ok := sl.Current().Interface().(ScoreEntry)
	if !ok {
		return
	}
	switch se.Kind {
	case EntryNormal:
		if se.Makeup != nil {
			sl.ReportError(se.Makeup, "makeup", "Makeup", scoreEntryKindTag, "")
		}
		if se.TP == nil && se.CC == nil && se.Exam == nil {
			sl.ReportError(se.Kind, "kind", "Kind", scoreEntryKindTag, "")
		}
	case EntryMakeup:
		if se.TP != nil || se.CC != nil || se.Exam != nil || se.Makeup == nil {
			sl.ReportError(se.Kind, "kind", "Kind", scoreEntryKindTag, "")
		}
	}
}

// EnterScores records raw scores on an existing element grade, if the entry period of their kind is open.
// Derived fields are left as is until the next finalization.
func (svc *Service) EnterScores(ctx context.Context, se ScoreEntry) (ElementGrade, error) {
	if err := se.Validate(); err != nil {
		return ElementGrade{}, err
	}
	if !svc.gate.IsOpen(se.Kind) {
		return ElementGrade{}, ErrPeriodClosed
	}

	var g ElementGrade
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		var err error
		g, err = svc.grades.GetElementGrade(ctx, se.key(), exec)
		if err != nil {
			return err
		}
		switch se.Kind {
		case EntryNormal:
			if se.TP != nil {
				g.TP = se.TP
			}
			if se.CC != nil {
				g.CC = se.CC
			}
			if se.Exam != nil {
				g.Exam = se.Exam
			}
		case EntryMakeup:
			g.Makeup = se.Makeup
		}
		return svc.grades.UpdateElementGradeScores(ctx, g, exec)
	})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ElementGrade{}, ErrNotFound
		}
		return ElementGrade{}, errors.Wrap(err, "entering scores")
	}
	return g, nil
}
