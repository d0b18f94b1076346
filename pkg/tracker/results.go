/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tracker

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
)

const (
	resultsBeginMarker = "===BEGIN TEST RESULTS==="
	resultsEndMarker   = "===END TEST RESULTS==="
)

// ParsedTest is one <test> element of a runner report.
type ParsedTest struct {
	Name            string
	Status          v1.TestStatus
	DurationSeconds float64
	ErrorMessage    string
	StackTrace      string
}

// Summary holds the per-status counts of a parsed report.
type Summary struct {
	Passed  int
	Failed  int
	Skipped int
}

// Total returns the Total value.
func (s Summary) Total() int {
	return s.Passed + s.Failed + s.Skipped
}

// Summarize counts the parsed tests by normalized status. A result that
// normalizes to Unknown counts as failed, so the three counters always add
// up to the number of parsed tests.
func Summarize(tests []ParsedTest) Summary {
	var s Summary
	for _, t := range tests {
		switch t.Status {
		case v1.TestPassed:
			s.Passed++
		case v1.TestSkipped:
			s.Skipped++
		default:
			s.Failed++
		}
	}
	return s
}

// ParseTestResults parses a runner report. Every <test> element is read with
// its name, result and duration attributes plus the nested
// <failure><message> and <failure><stack-trace> elements. The tests parsed
// before a syntax error are returned alongside the error so a truncated
// report still yields partial counts.
func ParseTestResults(content string) ([]ParsedTest, error) {
	decoder := xml.NewDecoder(strings.NewReader(content))
	var tests []ParsedTest
	current := -1
	inFailure := false
	target := ""
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			return tests, nil
		}
		if err != nil {
			return tests, fmt.Errorf("malformed test report: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch strings.ToLower(el.Name.Local) {
			case "test":
				t := ParsedTest{Status: v1.TestUnknown}
				for _, attr := range el.Attr {
					switch strings.ToLower(attr.Name.Local) {
					case "name":
						t.Name = attr.Value
					case "result":
						t.Status = normalizeResult(attr.Value)
					case "duration":
						t.DurationSeconds = parseDuration(attr.Value)
					}
				}
				tests = append(tests, t)
				current = len(tests) - 1
				inFailure = false
			case "failure":
				inFailure = current >= 0
			case "message":
				if inFailure {
					target = "message"
				}
			case "stack-trace":
				if inFailure {
					target = "stack-trace"
				}
			}
		case xml.CharData:
			if current < 0 || target == "" {
				continue
			}
			text := string(el)
			switch target {
			case "message":
				tests[current].ErrorMessage += text
			case "stack-trace":
				tests[current].StackTrace += text
			}
		case xml.EndElement:
			switch strings.ToLower(el.Name.Local) {
			case "test":
				current = -1
				inFailure = false
			case "failure":
				inFailure = false
			case "message", "stack-trace":
				target = ""
			}
		}
	}
}

// normalizeResult maps a raw result attribute to a TestStatus with a
// case-insensitive match.
func normalizeResult(raw string) v1.TestStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pass", "passed":
		return v1.TestPassed
	case "fail", "failed":
		return v1.TestFailed
	case "skip", "skipped", "ignored":
		return v1.TestSkipped
	default:
		return v1.TestUnknown
	}
}

// parseDuration parses the duration attribute, defaulting to 0 when it is
// not a number.
func parseDuration(raw string) float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// ExtractResultsXml pulls the report XML out of a runner log. The runner
// prints the report between sentinel marker lines; when the markers are
// absent the first <tests> document found in the log is used, and failing
// that the whole log is returned for the parser to reject.
func ExtractResultsXml(log string) string {
	if begin := strings.Index(log, resultsBeginMarker); begin >= 0 {
		rest := log[begin+len(resultsBeginMarker):]
		if end := strings.Index(rest, resultsEndMarker); end >= 0 {
			return strings.TrimSpace(rest[:end])
		}
		return strings.TrimSpace(rest)
	}
	if begin := strings.Index(log, "<tests"); begin >= 0 {
		rest := log[begin:]
		if end := strings.LastIndex(rest, "</tests>"); end >= 0 {
			return rest[:end+len("</tests>")]
		}
		return rest
	}
	return log
}

// SynthesizeFullLog renders the human-readable artifact stored next to the
// raw report. Header lines first, then one block per test.
func SynthesizeFullLog(jobId, repoUrl string, status v1.JobStatus,
	startTime, endTime time.Time, tests []ParsedTest) string {
	summary := Summarize(tests)
	var b strings.Builder
	fmt.Fprintf(&b, "Test Job: %s\n", jobId)
	fmt.Fprintf(&b, "Repository: %s\n", repoUrl)
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Started: %s\n", startTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Finished: %s\n", endTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Totals: %d passed, %d failed, %d skipped\n",
		summary.Passed, summary.Failed, summary.Skipped)
	for _, t := range tests {
		fmt.Fprintf(&b, "\n[%s] %s (%.3fs)\n", t.Status, t.Name, t.DurationSeconds)
		if t.ErrorMessage != "" {
			fmt.Fprintf(&b, "  message: %s\n", strings.TrimSpace(t.ErrorMessage))
		}
		if t.StackTrace != "" {
			fmt.Fprintf(&b, "  stack-trace:\n%s\n", strings.TrimRight(t.StackTrace, "\n"))
		}
	}
	return b.String()
}
