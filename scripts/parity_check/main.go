// Command parity_check replays read-only requests against this API and the legacy Express
// server and reports where status codes or payloads diverge.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

type target struct {
	Method     string   `json:"method"`
	Path       string   `json:"path"`
	LegacyPath string   `json:"legacyPath,omitempty"`
	Critical   bool     `json:"critical"`
	Ignore     []string `json:"ignore,omitempty"`
}

type targetFile struct {
	Targets []target `json:"targets"`
}

type endpoint struct {
	base  string
	token string
}

type comparison struct {
	Target         target
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	BodyMatch      bool
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

// legacyOnlyKeys are document fields the legacy server leaks that carry no meaning.
var legacyOnlyKeys = map[string]struct{}{"__v": {}}

func main() {
	var (
		goAPI       endpoint
		legacyAPI   endpoint
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&goAPI.base, "go-base", "http://localhost:8080/api", "Go API base URL")
	flag.StringVar(&goAPI.token, "go-token", os.Getenv("PARITY_GO_TOKEN"), "access token for the Go API")
	flag.StringVar(&legacyAPI.base, "legacy-base", "http://localhost:5000/api", "legacy API base URL")
	flag.StringVar(&legacyAPI.token, "legacy-token", os.Getenv("PARITY_LEGACY_TOKEN"), "access token for the legacy API")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "parity_check", "targets.json"), "path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results      []comparison
		breaking     int
		optionalDiff int
	)
	for _, t := range targets {
		res := compareTarget(context.Background(), client, goAPI, legacyAPI, t)
		if res.Error != nil || !res.StatusMatch || !res.BodyMatch {
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		results = append(results, res)
	}

	printReport(results)
	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file targetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined in %s", path)
	}
	return file.Targets, nil
}

func compareTarget(ctx context.Context, client *http.Client, goAPI, legacyAPI endpoint, tgt target) comparison {
	res := comparison{Target: tgt}

	legacyPath := tgt.LegacyPath
	if legacyPath == "" {
		legacyPath = tgt.Path
	}
	goStatus, goBody, goDur, err := fetch(ctx, client, goAPI, tgt.Method, tgt.Path)
	if err != nil {
		res.Error = fmt.Errorf("go request failed: %w", err)
		return res
	}
	legacyStatus, legacyBody, legacyDur, err := fetch(ctx, client, legacyAPI, tgt.Method, legacyPath)
	if err != nil {
		res.Error = fmt.Errorf("legacy request failed: %w", err)
		return res
	}

	res.GoStatus, res.LegacyStatus = goStatus, legacyStatus
	res.DurationGo, res.DurationLegacy = goDur, legacyDur
	res.StatusMatch = goStatus == legacyStatus
	res.BodyMatch = payloadsEqual(unwrapEnvelope(goBody), legacyBody, tgt.Ignore)
	return res
}

func fetch(ctx context.Context, client *http.Client, api endpoint, method, path string) (int, []byte, time.Duration, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(api.base, "/")+path, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	if api.token != "" {
		req.Header.Set("x-auth-token", api.token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, time.Since(start), nil
}

// unwrapEnvelope returns the data member of a success envelope. The legacy server returns
// bare documents.
func unwrapEnvelope(body []byte) []byte {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Data) == 0 {
		return body
	}
	return env.Data
}

func payloadsEqual(goBody, legacyBody []byte, ignore []string) bool {
	if bytes.Equal(bytes.TrimSpace(goBody), bytes.TrimSpace(legacyBody)) {
		return true
	}

	var a, b interface{}
	if err := json.Unmarshal(goBody, &a); err != nil {
		return false
	}
	if err := json.Unmarshal(legacyBody, &b); err != nil {
		return false
	}
	skip := make(map[string]struct{}, len(ignore))
	for _, key := range ignore {
		skip[key] = struct{}{}
	}
	return reflect.DeepEqual(normalize(a, skip), normalize(b, skip))
}

// normalize maps Mongo's _id onto id, drops ignored keys and folds integral floats.
func normalize(v interface{}, skip map[string]struct{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if k == "_id" {
				k = "id"
			}
			if _, ok := skip[k]; ok {
				continue
			}
			if _, ok := legacyOnlyKeys[k]; ok {
				continue
			}
			out[k] = normalize(child, skip)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = normalize(child, skip)
		}
		return out
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	default:
		return val
	}
}

func printReport(results []comparison) {
	fmt.Println("Parity Report")
	fmt.Println("=============")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		fmt.Printf("  Go Status: %d (%s)\n", res.GoStatus, res.DurationGo)
		fmt.Printf("  Legacy Status: %d (%s)\n", res.LegacyStatus, res.DurationLegacy)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		} else {
			fmt.Printf("  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
		}
	}
}
