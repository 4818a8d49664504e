package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"go.viam.com/test"
)

type basicStruct struct {
	X int
	y string
}

// assertLogMatches will fuzzy match log lines. Notably, this checks the time format, but ignores
// the exact time. And it expects a match on the filename, but the exact line number can be wrong.
func assertLogMatches(t *testing.T, actual *bytes.Buffer, expected string) {
	t.Helper()

	output, err := actual.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)

	actualParts := strings.Split(strings.TrimSuffix(output, "\n"), "\t")
	expectedParts := strings.Split(expected, "\t")
	test.That(t, len(actualParts), test.ShouldEqual, len(expectedParts))
	// Use the length of the first string as a weak verification that the result looks like a date.
	test.That(t, len(actualParts[0]), test.ShouldEqual, len(expectedParts[0]))
	test.That(t, actualParts[1], test.ShouldEqual, expectedParts[1])
	test.That(t, actualParts[2], test.ShouldEqual, expectedParts[2])

	actualFilename, actualLineNumber, found := strings.Cut(actualParts[3], ":")
	test.That(t, found, test.ShouldBeTrue)
	expectedFilename, _, _ := strings.Cut(expectedParts[3], ":")
	test.That(t, actualFilename, test.ShouldEqual, expectedFilename)
	_, err = strconv.Atoi(actualLineNumber)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, actualParts[4], test.ShouldEqual, expectedParts[4])
	if len(actualParts) == 5 {
		return
	}

	expectedMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(expectedParts[5]), &expectedMap), test.ShouldBeNil)
	actualMap := make(map[string]any)
	test.That(t, json.Unmarshal([]byte(actualParts[5]), &actualMap), test.ShouldBeNil)
	test.That(t, actualMap, test.ShouldResemble, expectedMap)
}

func TestConsoleOutputFormat(t *testing.T) {
	notStdout := &bytes.Buffer{}
	logger := &impl{"impl", NewAtomicLevelAt(DEBUG), false, []Appender{NewWriterAppender(notStdout)}}

	logger.Infow("impl logw", "key", "value", "basic", basicStruct{1, "hidden"})
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806-0400	INFO	impl	logging/impl_test.go:58	impl logw	{"key":"value","basic":{"X":1}}`)

	logger.Debugw("unpaired", "lonely")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806-0400	DEBUG	impl	logging/impl_test.go:62	unpaired	{"lonely":"unpaired log key"}`)

	ctx := WithStage(WithSample(context.Background(), "0b5e"), "map_images")
	logger.CDebugw(ctx, "splatted view", "view", "pano")
	assertLogMatches(t, notStdout,
		`2023-10-30T13:19:45.806-0400	DEBUG	impl	logging/impl_test.go:67	splatted view	{"view":"pano","sample":"0b5e","stage":"map_images"}`)
}

func TestLevelsAndSubloggers(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := &impl{"root", NewAtomicLevelAt(INFO), false, []Appender{NewWriterAppender(buf)}}

	logger.Debugw("dropped")
	logger.CDebugw(context.Background(), "dropped")
	test.That(t, buf.Len(), test.ShouldEqual, 0)

	logger.Infow("kept")
	test.That(t, buf.String(), test.ShouldContainSubstring, "INFO\troot\t")
	buf.Reset()

	// debug mode lets context-aware logs through without lowering the level
	logger.CDebugw(EnableDebugMode(context.Background()), "forced")
	test.That(t, buf.String(), test.ShouldContainSubstring, "forced")
	buf.Reset()

	sub := logger.Sublogger("splat")
	test.That(t, sub.GetLevel(), test.ShouldEqual, INFO)
	sub.SetLevel(DEBUG)
	test.That(t, logger.GetLevel(), test.ShouldEqual, INFO)
	sub.Debugw("from sub")
	test.That(t, buf.String(), test.ShouldContainSubstring, "root.splat")
	test.That(t, sub.Sync(), test.ShouldBeNil)
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	test.That(t, IsDebugMode(ctx), test.ShouldBeFalse)
	test.That(t, contextFields(ctx), test.ShouldBeEmpty)

	sampleCtx := WithSample(EnableDebugMode(ctx), "a")
	first := WithStage(sampleCtx, "center_roll")
	second := WithStage(sampleCtx, "verify_mapping")
	test.That(t, IsDebugMode(first), test.ShouldBeTrue)
	test.That(t, contextFields(first), test.ShouldResemble, []interface{}{"sample", "a", "stage", "center_roll"})
	test.That(t, contextFields(second), test.ShouldResemble, []interface{}{"sample", "a", "stage", "verify_mapping"})
	test.That(t, contextFields(sampleCtx), test.ShouldResemble, []interface{}{"sample", "a"})
}

func TestObservedTestLogger(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.Infow("selected images", "count", 3)
	test.That(t, observed.FilterMessage("selected images").Len(), test.ShouldEqual, 1)
	test.That(t, observed.All()[0].ContextMap()["count"], test.ShouldEqual, int64(3))
}

func TestLevelFromString(t *testing.T) {
	level, err := LevelFromString("WARN")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
	test.That(t, level.String(), test.ShouldEqual, "Warn")

	_, err = LevelFromString("verbose")
	test.That(t, err, test.ShouldNotBeNil)
}
