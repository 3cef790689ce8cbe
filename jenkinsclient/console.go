package jenkinsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	consolePollInterval = 3 * time.Second
	consolePollBudget   = 60 // ~3 minutes at 3s/poll
)

// ConsoleResult is the outcome of StreamConsole (§4.2 stream_console).
type ConsoleResult struct {
	Status        string // SUCCESS, FAILURE, ABORTED, TIMEOUT, ...
	ConsoleOutput string
	Complete      bool
}

type buildInfo struct {
	Building bool   `json:"building"`
	Result   string `json:"result"`
}

// StreamConsole polls build info every ~3s, appending the console text
// suffix beyond the previously-fetched offset on each poll, until the
// build stops building or the ~60-iteration budget is exhausted (§4.2).
func (c *Client) StreamConsole(ctx context.Context, jobName string, buildNumber int) (ConsoleResult, error) {
	var accumulated strings.Builder
	var offset int64

	fetchSuffix := func() {
		text, newOffset, err := c.consoleTextFrom(ctx, jobName, buildNumber, offset)
		if err != nil {
			c.log.WithError(err).WithFields(map[string]interface{}{"job": jobName, "build": buildNumber}).
				Warn("stream_console: console fetch failed, continuing")
			return
		}
		accumulated.WriteString(text)
		offset = newOffset
	}

	operation := func() (bool, error) {
		info, err := c.fetchBuildInfo(ctx, jobName, buildNumber)
		if err != nil {
			c.log.WithError(err).WithFields(map[string]interface{}{"job": jobName, "build": buildNumber}).
				Warn("stream_console: build info fetch failed, continuing")
			return false, fmt.Errorf("build info unavailable")
		}
		fetchSuffix()
		if !info.Building {
			return true, nil
		}
		return false, fmt.Errorf("build %d still running", buildNumber)
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(consolePollInterval)),
		backoff.WithMaxTries(consolePollBudget),
	)
	if err != nil || !result {
		accumulated.WriteString("\n[stream_console: timed out waiting for build completion]\n")
		return ConsoleResult{Status: "TIMEOUT", ConsoleOutput: accumulated.String(), Complete: false}, nil
	}

	info, infoErr := c.fetchBuildInfo(ctx, jobName, buildNumber)
	status := "UNKNOWN"
	if infoErr == nil {
		status = info.Result
	}
	return ConsoleResult{Status: status, ConsoleOutput: accumulated.String(), Complete: true}, nil
}

func (c *Client) fetchBuildInfo(ctx context.Context, jobName string, buildNumber int) (buildInfo, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/job/%s/%d/api/json", jobName, buildNumber))
	if err != nil {
		return buildInfo{}, err
	}
	defer resp.Body.Close()

	var info buildInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return buildInfo{}, err
	}
	return info, nil
}

func (c *Client) consoleTextFrom(ctx context.Context, jobName string, buildNumber int, offset int64) (string, int64, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/job/%s/%d/logText/progressiveText?start=%d", jobName, buildNumber, offset))
	if err != nil {
		return "", offset, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", offset, err
	}

	newOffset := offset
	if raw := resp.Header.Get("X-Text-Size"); raw != "" {
		var parsed int64
		if _, err := fmt.Sscanf(raw, "%d", &parsed); err == nil {
			newOffset = parsed
		}
	} else {
		newOffset = offset + int64(len(body))
	}
	return string(body), newOffset, nil
}
