// Package testing runs tests written in jml. A test file is any file ending
// in _test.jml; every global function in it whose name starts with test_ is
// a test and receives a test context t:
//
//	fn test_addition(t) {
//	  t.assert_eq(1 + 2, 3)
//	}
package testing

import "time"

// Status represents the outcome of a test.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	StatusSkipped
	StatusError
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "PASS"
	case StatusFailed:
		return "FAIL"
	case StatusSkipped:
		return "SKIP"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// AssertionError represents a failed assertion in a test. Got and Want hold
// printed values since the objects die with the test's machine.
type AssertionError struct {
	Message string
	File    string
	Got     string
	Want    string
}

// TestResult holds the outcome of a single test function.
type TestResult struct {
	Name       string
	Status     Status
	Duration   time.Duration
	Failures   []AssertionError
	Logs       []string
	SkipReason string
	Error      error // set when Status is StatusError
}

// FileResult holds the results of all tests in a single file.
type FileResult struct {
	Filename   string
	Tests      []*TestResult
	CompileErr error // error if the file failed to compile or load
}

func (f *FileResult) count(status Status) int {
	count := 0
	for _, t := range f.Tests {
		if t.Status == status {
			count++
		}
	}
	return count
}

// Passed returns the number of passed tests in this file.
func (f *FileResult) Passed() int { return f.count(StatusPassed) }

// Failed returns the number of failed tests in this file.
func (f *FileResult) Failed() int { return f.count(StatusFailed) }

// Skipped returns the number of skipped tests in this file.
func (f *FileResult) Skipped() int { return f.count(StatusSkipped) }

// Errors returns the number of errored tests in this file, counting a file
// that failed to load as one error.
func (f *FileResult) Errors() int {
	n := f.count(StatusError)
	if f.CompileErr != nil {
		n++
	}
	return n
}

// Summary aggregates results across all test files.
type Summary struct {
	Files    []*FileResult
	Passed   int
	Failed   int
	Skipped  int
	Errors   int
	Duration time.Duration
}

// TotalTests returns the total number of tests run.
func (s *Summary) TotalTests() int {
	return s.Passed + s.Failed + s.Skipped + s.Errors
}

// Success returns true if no test failed or errored.
func (s *Summary) Success() bool {
	return s.Failed == 0 && s.Errors == 0
}

// ComputeTotals recalculates the aggregate counts from all file results.
func (s *Summary) ComputeTotals() {
	s.Passed, s.Failed, s.Skipped, s.Errors = 0, 0, 0, 0
	for _, f := range s.Files {
		s.Passed += f.Passed()
		s.Failed += f.Failed()
		s.Skipped += f.Skipped()
		s.Errors += f.Errors()
	}
}
