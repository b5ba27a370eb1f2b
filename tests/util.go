package testutil

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/deliberation/core"
	"github.com/trezcool/deliberation/core/grading"
	inmemdb "github.com/trezcool/deliberation/storage/database/inmem"
)

// Year is the academic year used across tests.
const Year = "2024-2025"

func NewConfig() *core.Config {
	return &core.Config{
		AppName:          "Deliberation",
		Build:            "test",
		Env:              "TEST",
		TestMode:         true,
		SecretKey:        "secret",
		DefaultFromEmail: mail.Address{Name: "Deliberation", Address: "noreply@localhost"},
		Server: core.ServerConfig{
			Host:               "localhost",
			Port:               8000,
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: 10 * time.Minute,
		},
		Grading: core.GradingConfig{
			Workers:          4,
			NormalEntryOpen:  true,
			ReportRecipients: []string{"registrar@localhost"},
		},
	}
}

func Float(f float64) *float64 { return &f }

// LogEntry is a message recorded by Logger.
type LogEntry struct {
	Level string
	Msg   string
	Args  []interface{}
}

// Logger records log entries instead of printing them.
type Logger struct {
	mu      sync.Mutex
	Entries []LogEntry
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, LogEntry{Level: level, Msg: msg, Args: args})
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log("INFO", msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log("WARN", msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log("ERROR", msg, args) }
func (l *Logger) Fatal(msg string, args ...interface{}) { l.log("FATAL", msg, args) }

// Count returns the number of entries logged at level.
func (l *Logger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int
	for _, e := range l.Entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Store bundles the in-memory adapters of the grading ports.
type Store struct {
	DB          *inmemdb.DB
	Enrollments interface {
		grading.EnrollmentLookup
		AddEnrollments(enrollments ...grading.Enrollment)
	}
	Catalog interface {
		grading.CatalogLookup
		AddModules(modules ...grading.Module)
	}
	Grades interface {
		grading.GradeStore
		Counts() grading.RowCounts
	}
}

func NewStore(t *testing.T) *Store {
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	return &Store{
		DB:          db,
		Enrollments: inmemdb.NewEnrollmentRepository(db),
		Catalog:     inmemdb.NewCatalogRepository(db),
		Grades:      inmemdb.NewGradeRepository(db),
	}
}

// Enroll enrolls students in a field of study for a semester of Year.
func (s *Store) Enroll(fieldID int64, semesterID int, studentIDs ...int64) {
	enrollments := make([]grading.Enrollment, 0, len(studentIDs))
	for _, id := range studentIDs {
		enrollments = append(enrollments, grading.Enrollment{
			StudentID:    id,
			FieldID:      fieldID,
			SemesterID:   semesterID,
			AcademicYear: Year,
			Group:        "A",
		})
	}
	s.Enrollments.AddEnrollments(enrollments...)
}

// NewModule builds a module of Year.
func NewModule(id, fieldID int64, semesterID int, coefficient float64, elements ...grading.Element) grading.Module {
	return grading.Module{
		ID:           id,
		FieldID:      fieldID,
		SemesterID:   semesterID,
		AcademicYear: Year,
		Name:         fmt.Sprintf("Module %d", id),
		Coefficient:  coefficient,
		Elements:     elements,
	}
}

// NewElement builds an element weighing 1 in its module.
func NewElement(id int64, tp, cc, exam float64) grading.Element {
	return grading.Element{
		ID:         id,
		Name:       fmt.Sprintf("Element %d", id),
		TPWeight:   tp,
		CCWeight:   cc,
		ExamWeight: exam,
		Weight:     1,
	}
}

// SetScores writes raw scores on an initialized element grade.
func (s *Store) SetScores(t *testing.T, studentID, elementID int64, semesterID int, tp, cc, exam, makeup *float64) {
	key := grading.ElementGradeKey{StudentID: studentID, ElementID: elementID, SemesterID: semesterID, AcademicYear: Year}
	g, err := s.Grades.GetElementGrade(context.Background(), key)
	if err != nil {
		t.Fatalf("SetScores() failed: %v", err)
	}
	g.TP, g.CC, g.Exam, g.Makeup = tp, cc, exam, makeup
	if err = s.Grades.UpdateElementGradeScores(context.Background(), g); err != nil {
		t.Fatalf("SetScores() failed: %v", err)
	}
}
