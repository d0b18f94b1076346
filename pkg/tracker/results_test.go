/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package tracker

import (
	"strings"
	"testing"
	"time"

	"gotest.tools/assert"

	v1 "github.com/AMD-AIG-AIMA/testexec/pkg/apis/v1"
)

const sampleReport = `<tests>
  <test name="t1" result="Passed" duration="0.5"/>
  <test name="t2" result="Failed" duration="1.2">
    <failure>
      <message>boom</message>
      <stack-trace>at Suite.t2()</stack-trace>
    </failure>
  </test>
  <test name="t3" result="ignored"/>
</tests>`

func TestParseTestResults(t *testing.T) {
	tests, err := ParseTestResults(sampleReport)
	assert.NilError(t, err)
	assert.Equal(t, len(tests), 3)

	assert.Equal(t, tests[0].Name, "t1")
	assert.Equal(t, tests[0].Status, v1.TestPassed)
	assert.Equal(t, tests[0].DurationSeconds, 0.5)

	assert.Equal(t, tests[1].Status, v1.TestFailed)
	assert.Equal(t, strings.TrimSpace(tests[1].ErrorMessage), "boom")
	assert.Equal(t, strings.TrimSpace(tests[1].StackTrace), "at Suite.t2()")

	// "ignored" normalizes to Skipped and a missing duration defaults to 0.
	assert.Equal(t, tests[2].Status, v1.TestSkipped)
	assert.Equal(t, tests[2].DurationSeconds, 0.0)

	summary := Summarize(tests)
	assert.Equal(t, summary, Summary{Passed: 1, Failed: 1, Skipped: 1})
	assert.Equal(t, summary.Total(), 3)
}

func TestSummarizeCountsEveryParsedTest(t *testing.T) {
	tests, err := ParseTestResults(`<tests>` +
		`<test name="t1" result="Errored"/>` +
		`<test name="t2" result="Passed"/>` +
		`</tests>`)
	assert.NilError(t, err)
	assert.Equal(t, len(tests), 2)
	assert.Equal(t, tests[0].Status, v1.TestUnknown)

	// Unrecognized results count as failed, never toward no bucket.
	summary := Summarize(tests)
	assert.Equal(t, summary, Summary{Passed: 1, Failed: 1})
	assert.Equal(t, summary.Total(), len(tests))
}

func TestParseTestResultsNormalization(t *testing.T) {
	cases := map[string]v1.TestStatus{
		"PASS":    v1.TestPassed,
		"passed":  v1.TestPassed,
		"Fail":    v1.TestFailed,
		"FAILED":  v1.TestFailed,
		"skip":    v1.TestSkipped,
		"Ignored": v1.TestSkipped,
		"flaky":   v1.TestUnknown,
		"":        v1.TestUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, normalizeResult(raw), want, "raw=%q", raw)
	}
}

func TestParseTestResultsBadDuration(t *testing.T) {
	tests, err := ParseTestResults(`<tests><test name="t" result="Passed" duration="fast"/></tests>`)
	assert.NilError(t, err)
	assert.Equal(t, tests[0].DurationSeconds, 0.0)
}

func TestParseTestResultsMalformed(t *testing.T) {
	tests, err := ParseTestResults("<not xml")
	assert.Assert(t, err != nil)
	assert.Equal(t, len(tests), 0)
}

func TestParseTestResultsTruncated(t *testing.T) {
	// A truncated report keeps the tests parsed before the syntax error.
	tests, err := ParseTestResults(`<tests><test name="t1" result="Passed"/><test name=`)
	assert.Assert(t, err != nil)
	assert.Equal(t, len(tests), 1)
	assert.Equal(t, tests[0].Name, "t1")
}

func TestExtractResultsXml(t *testing.T) {
	log := "cloning repo\nrunning tests\n" +
		resultsBeginMarker + "\n<tests><test name='t' result='Passed'/></tests>\n" +
		resultsEndMarker + "\ndone\n"
	assert.Equal(t, ExtractResultsXml(log), "<tests><test name='t' result='Passed'/></tests>")

	// Without markers the first <tests> document is extracted.
	noMarkers := "noise <tests><test name='t' result='Passed'/></tests> trailing"
	assert.Equal(t, ExtractResultsXml(noMarkers), "<tests><test name='t' result='Passed'/></tests>")

	// Plain text falls through unchanged for the parser to reject.
	assert.Equal(t, ExtractResultsXml("no xml here"), "no xml here")
}

func TestSynthesizeFullLog(t *testing.T) {
	tests, err := ParseTestResults(sampleReport)
	assert.NilError(t, err)

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	log := SynthesizeFullLog("job-1", "https://example/r.git", v1.JobFailed, start, end, tests)

	assert.Assert(t, strings.Contains(log, "Test Job: job-1"))
	assert.Assert(t, strings.Contains(log, "Status: Failed"))
	assert.Assert(t, strings.Contains(log, "Totals: 1 passed, 1 failed, 1 skipped"))
	assert.Assert(t, strings.Contains(log, "[Failed] t2"))
	assert.Assert(t, strings.Contains(log, "message: boom"))
}
