// Package preflight verifies the environment before a run or daemon start:
// credentials present, directories writable, external tools on PATH.
package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"loom/internal/config"
	"loom/internal/services/llm"
)

// Result is the outcome of one preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// CheckLLM verifies that the model API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, cfg config.LLMConfig) Result {
	const name = "LLM API"
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing (set llm.api_key or LOOM_LLM_API_KEY)"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinary verifies that a binary can be found on PATH.
func CheckBinary(name, binary string) Result {
	if strings.TrimSpace(binary) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s not found on PATH", binary)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

// RunAll executes the standard check set for the given configuration.
// Network checks run only when checkNetwork is true.
func RunAll(ctx context.Context, cfg *config.Config, checkNetwork bool) []Result {
	results := []Result{
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckBinary("Transcriber", cfg.Transcriber.Command),
	}
	if len(cfg.Testing.Command) > 0 {
		results = append(results, CheckBinary("Test harness", cfg.Testing.Command[0]))
	}
	if checkNetwork {
		results = append(results, CheckLLM(ctx, cfg.GetLLM()))
	} else if cfg.GetLLM().APIKey == "" {
		results = append(results, Result{
			Name:   "LLM API",
			Detail: "API key missing (set llm.api_key or LOOM_LLM_API_KEY)",
		})
	} else {
		results = append(results, Result{Name: "LLM API", Passed: true, Detail: "API key present"})
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed {
			return false
		}
	}
	return true
}

func summarizeError(err error) string {
	if err == nil {
		return ""
	}
	message := strings.TrimSpace(err.Error())
	const limit = 120
	if len(message) > limit {
		message = message[:limit] + "..."
	}
	return message
}
