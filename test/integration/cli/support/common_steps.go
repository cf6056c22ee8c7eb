package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cucumber/godog"
)

// iRunCommand executes a command and stores the result. Arguments are split
// on whitespace; a pair of double quotes groups words into one argument.
func (testCtx *TestContext) iRunCommand(command string) error {
	command = testCtx.substituteCommandVariables(command)

	testCtx.LastCommand = command
	testCtx.LastStartTime = time.Now()

	parts := splitArgs(command)
	if len(parts) == 0 {
		return errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Dir = testCtx.WorkingDir
	cmd.Env = append(os.Environ(), testCtx.EnvVars...)

	// Capture both stdout and stderr
	output, err := cmd.CombinedOutput()
	testCtx.LastOutput = string(output)
	testCtx.LastError = err
	testCtx.LastDuration = time.Since(testCtx.LastStartTime)

	if err != nil {
		exitError := &exec.ExitError{}
		if errors.As(err, &exitError) {
			testCtx.LastExitCode = exitError.ExitCode()
		} else {
			testCtx.LastExitCode = -1
		}
	} else {
		testCtx.LastExitCode = 0
	}

	return nil
}

func splitArgs(command string) []string {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range command {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case (r == ' ' || r == '\t') && !quoted:
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if started {
		args = append(args, current.String())
	}
	return args
}

// theCommandShouldSucceed verifies the command succeeded.
func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastExitCode != 0 {
		return fmt.Errorf("command failed with exit code %d: %w\nOutput: %s",
			testCtx.LastExitCode, testCtx.LastError, testCtx.LastOutput)
	}
	return nil
}

// theCommandShouldFail verifies the command failed.
func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastExitCode == 0 {
		return fmt.Errorf("command succeeded when it should have failed\nOutput: %s", testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldContain verifies the output contains specific text.
func (testCtx *TestContext) theOutputShouldContain(expectedText string) error {
	if !strings.Contains(testCtx.LastOutput, expectedText) {
		return fmt.Errorf("output does not contain '%s'\nActual output: %s", expectedText, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains '%s'\nActual output: %s", text, testCtx.LastOutput)
	}
	return nil
}

// theOutputShouldBe compares the output line by line, ignoring JSON log
// lines the command wrote to stderr.
func (testCtx *TestContext) theOutputShouldBe(doc *godog.DocString) error {
	got := strings.Join(outputLines(testCtx.LastOutput), "\n")
	want := strings.TrimSpace(doc.Content)
	if got != want {
		return fmt.Errorf("output mismatch\nwant:\n%s\ngot:\n%s", want, got)
	}
	return nil
}

func outputLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		if strings.HasPrefix(line, `{"time":`) {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// jsonOutput decodes the first JSON object in the output.
func (testCtx *TestContext) jsonOutput() (map[string]interface{}, error) {
	output := strings.Join(outputLines(testCtx.LastOutput), "\n")
	jsonStart := strings.Index(output, "{")
	if jsonStart == -1 {
		return nil, fmt.Errorf("no JSON found in output: %s", testCtx.LastOutput)
	}

	var data map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(output[jsonStart:]))
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %w\nOutput: %s", err, output)
	}
	return data, nil
}

// theOutputShouldBeValidJSON verifies the output is valid JSON.
func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	_, err := testCtx.jsonOutput()
	return err
}

// theJSONShouldContain verifies JSON contains a specific field.
func (testCtx *TestContext) theJSONShouldContain(field string) error {
	data, err := testCtx.jsonOutput()
	if err != nil {
		return err
	}
	_, err = lookupField(data, field)
	return err
}

func (testCtx *TestContext) theJSONShouldNotContain(field string) error {
	data, err := testCtx.jsonOutput()
	if err != nil {
		return err
	}
	if _, err := lookupField(data, field); err == nil {
		return fmt.Errorf("field '%s' unexpectedly present in JSON", field)
	}
	return nil
}

// theJSONFieldShouldBe compares a field's value in its JSON text form.
func (testCtx *TestContext) theJSONFieldShouldBe(field, want string) error {
	data, err := testCtx.jsonOutput()
	if err != nil {
		return err
	}
	return fieldEquals(data, field, want)
}

func fieldEquals(data map[string]interface{}, field, want string) error {
	val, err := lookupField(data, field)
	if err != nil {
		return err
	}
	got := fmt.Sprint(val)
	if s, ok := val.(string); ok {
		got = s
	} else if b, mErr := json.Marshal(val); mErr == nil {
		got = string(b)
	}
	if got != want {
		return fmt.Errorf("field %q is %s, want %s", field, got, want)
	}
	return nil
}

// lookupField follows a dotted path such as "result.pixels.width".
func lookupField(data map[string]interface{}, field string) (interface{}, error) {
	parts := strings.Split(field, ".")
	var current interface{} = data

	for i, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("cannot navigate into non-object field '%s'", strings.Join(parts[:i], "."))
		}
		val, exists := obj[part]
		if !exists {
			return nil, fmt.Errorf("field '%s' not found in JSON", strings.Join(parts[:i+1], "."))
		}
		current = val
	}
	return current, nil
}

// theErrorShouldMention verifies the error message contains specific text.
func (testCtx *TestContext) theErrorShouldMention(errorText string) error {
	if testCtx.LastError == nil && testCtx.LastExitCode == 0 {
		return fmt.Errorf("no error occurred, but expected error containing '%s'", errorText)
	}

	fullErrorText := testCtx.LastOutput
	if testCtx.LastError != nil {
		fullErrorText += " " + testCtx.LastError.Error()
	}

	if !strings.Contains(strings.ToLower(fullErrorText), strings.ToLower(errorText)) {
		return fmt.Errorf("error does not contain '%s'\nActual error: %s", errorText, fullErrorText)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldIncludeDebugInformation() error {
	if strings.Contains(testCtx.LastOutput, `"level":"DEBUG"`) {
		return nil
	}
	return fmt.Errorf("output does not contain debug logs: %s", testCtx.LastOutput)
}

func (testCtx *TestContext) theFileShouldExist(name string) error {
	path := testCtx.Path(testCtx.substituteCommandVariables(name))
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected file %s: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(name string) error {
	path := testCtx.Path(testCtx.substituteCommandVariables(name))
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file %s should not exist", path)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(name string, doc *godog.DocString) error {
	path := testCtx.Path(testCtx.substituteCommandVariables(name))
	data, err := os.ReadFile(path) //nolint:gosec // G304: test file inside the scenario directory
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) != strings.TrimSpace(doc.Content) {
		return fmt.Errorf("file %s mismatch\nwant:\n%s\ngot:\n%s", path, doc.Content, data)
	}
	return nil
}

// aFileWithContent writes a file such as codescan.yaml or .env into the
// working directory.
func (testCtx *TestContext) aFileWithContent(name string, doc *godog.DocString) error {
	return os.WriteFile(testCtx.Path(name), []byte(doc.Content+"\n"), 0o600)
}

func (testCtx *TestContext) theEnvironmentVariableIs(name, value string) error {
	testCtx.AddEnvVar(name, value)
	return nil
}

// RegisterCommonSteps registers command, output, file and environment steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	testCtx.registerCommandSteps(sc)
	testCtx.registerOutputSteps(sc)
	testCtx.registerFileSteps(sc)
}

func (testCtx *TestContext) registerCommandSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^I run '([^']*)'$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the environment variable "([^"]*)" is "([^"]*)"$`, testCtx.theEnvironmentVariableIs)
}

func (testCtx *TestContext) registerOutputSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should contain '([^']*)'$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the output should be:$`, testCtx.theOutputShouldBe)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the JSON should contain "([^"]*)"$`, testCtx.theJSONShouldContain)
	sc.Step(`^the JSON should not contain "([^"]*)"$`, testCtx.theJSONShouldNotContain)
	sc.Step(`^the JSON field "([^"]*)" should be "([^"]*)"$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the JSON field "([^"]*)" should be '([^']*)'$`, testCtx.theJSONFieldShouldBe)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should include debug information$`, testCtx.theOutputShouldIncludeDebugInformation)
}

func (testCtx *TestContext) registerFileSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a file "([^"]*)" with:$`, testCtx.aFileWithContent)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain:$`, testCtx.theFileShouldContain)
}
