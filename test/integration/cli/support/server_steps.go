package support

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/MeKo-Tech/codescan/internal/config"
	"github.com/MeKo-Tech/codescan/internal/recognizer"
	"github.com/MeKo-Tech/codescan/internal/scanner"
	"github.com/MeKo-Tech/codescan/internal/server"
	"github.com/MeKo-Tech/codescan/internal/testutil"
	"github.com/cucumber/godog"
)

// StartBridge serves a session over the scenario's store file. The bridge
// shares the store with CLI commands run in the same scenario.
func (testCtx *TestContext) StartBridge() error {
	if testCtx.Bridge != nil {
		return nil
	}

	cfg := config.DefaultConfig()
	rec := recognizer.NewWithBackend(cfg.ToRecognizerConfig(),
		&recognizer.StaticBackend{Output: testCtx.EnvValue("CODESCAN_RECOGNIZER_STATIC_TEXT")})

	fs, err := testCtx.fileStore()
	if err != nil {
		return err
	}
	sess, err := scanner.NewSession(context.Background(), scanner.Options{
		Store:      fs,
		Recognizer: rec,
		Settings:   scanner.DefaultSettings(),
	})
	if err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}

	layout, err := cfg.ToLayout()
	if err != nil {
		_ = sess.Close()
		return err
	}
	bridge, err := server.NewServer(server.Config{Layout: layout, TimeoutSec: 10}, sess)
	if err != nil {
		_ = sess.Close()
		return err
	}

	testCtx.BridgeSession = sess
	testCtx.Bridge = httptest.NewServer(bridge.Handler())
	return nil
}

// StopBridge shuts the bridge down if one is running.
func (testCtx *TestContext) StopBridge() error {
	if testCtx.Bridge == nil {
		return nil
	}
	testCtx.Bridge.Close()
	testCtx.Bridge = nil

	err := testCtx.BridgeSession.Close()
	testCtx.BridgeSession = nil
	return err
}

func (testCtx *TestContext) theBridgeIsRunning() error {
	return testCtx.StartBridge()
}

func (testCtx *TestContext) doRequest(req *http.Request) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iSendRequest(method, path string) error {
	if testCtx.Bridge == nil {
		return fmt.Errorf("bridge is not running")
	}
	req, err := http.NewRequestWithContext(context.Background(), method, testCtx.Bridge.URL+path, nil)
	if err != nil {
		return err
	}
	return testCtx.doRequest(req)
}

func (testCtx *TestContext) iSendRequestWithBody(method, path string, doc *godog.DocString) error {
	if testCtx.Bridge == nil {
		return fmt.Errorf("bridge is not running")
	}
	req, err := http.NewRequestWithContext(context.Background(), method, testCtx.Bridge.URL+path,
		strings.NewReader(doc.Content))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return testCtx.doRequest(req)
}

// iCaptureAFrame uploads a blank frame of the given size to the capture
// endpoint.
func (testCtx *TestContext) iCaptureAFrame(width, height int) error {
	if testCtx.Bridge == nil {
		return fmt.Errorf("bridge is not running")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("frame", "frame.png")
	if err != nil {
		return err
	}
	if err := png.Encode(part, testutil.CreateTestImage(width, height, color.White)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		testCtx.Bridge.URL+"/api/v1/capture", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return testCtx.doRequest(req)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("status is %d, want %d\nBody: %s", testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) responseJSON() (map[string]interface{}, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &data); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w\nBody: %s", err, testCtx.LastHTTPResponse)
	}
	return data, nil
}

func (testCtx *TestContext) theResponseFieldShouldBe(field, want string) error {
	data, err := testCtx.responseJSON()
	if err != nil {
		return err
	}
	return fieldEquals(data, field, want)
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldContain(name, text string) error {
	if !strings.Contains(testCtx.LastHTTPHeaders[name], text) {
		return fmt.Errorf("header %s is %q, want it to contain %q", name, testCtx.LastHTTPHeaders[name], text)
	}
	return nil
}

// RegisterServerSteps registers the device bridge steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the bridge is running$`, testCtx.theBridgeIsRunning)
	sc.Step(`^I send a (GET|POST|DELETE|PUT) request to "([^"]*)"$`, testCtx.iSendRequest)
	sc.Step(`^I send a (POST|PUT) request to "([^"]*)" with:$`, testCtx.iSendRequestWithBody)
	sc.Step(`^I capture a (\d+)x(\d+) frame through the bridge$`, testCtx.iCaptureAFrame)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseFieldShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should contain "([^"]*)"$`, testCtx.theResponseHeaderShouldContain)
}
