package jenkinsclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
)

const (
	queuePollInterval = 2 * time.Second
	queuePollBudget   = 30 // ~60s at 2s/poll
)

// StartResult is the outcome of StartJob (§4.2 start_job).
type StartResult struct {
	Status      string // "started" or "queued"
	QueueNumber int
	BuildNumber int
}

type queueItem struct {
	Executable *struct {
		Number int `json:"number"`
	} `json:"executable"`
	Cancelled bool `json:"cancelled"`
}

// StartJob posts the build trigger and polls the queue item at ~2s
// intervals for up to ~60s until an executable.number appears (§4.2).
// When the build trigger itself fails (e.g. the job does not exist) it
// returns a *pipeerr.Error with CodeJenkinsAPIError, which the coordinator
// folds into its own {success, ...} shape; an unresolved queue item is not
// an error and yields Status "queued".
func (c *Client) StartJob(ctx context.Context, jobName string, parameters map[string]string) (StartResult, error) {
	path := fmt.Sprintf("/job/%s/build", jobName)
	values := url.Values{}
	for k, v := range parameters {
		values.Set(k, v)
	}
	if len(parameters) > 0 {
		path = fmt.Sprintf("/job/%s/buildWithParameters", jobName)
	}

	resp, err := c.postForm(ctx, path, values)
	if err != nil {
		return StartResult{}, pipeerr.Wrap(pipeerr.CodeJenkinsAPIError, "start_job", err)
	}
	queueLocation := resp.Header.Get("Location")
	resp.Body.Close()

	queueNumber := parseQueueNumber(queueLocation)

	operation := func() (int, error) {
		buildNumber, err := c.pollQueueItem(ctx, queueNumber)
		if err != nil {
			return 0, err
		}
		if buildNumber == 0 {
			return 0, fmt.Errorf("queue item %d not yet resolved", queueNumber)
		}
		return buildNumber, nil
	}

	buildNumber, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(queuePollInterval)),
		backoff.WithMaxTries(queuePollBudget),
	)
	if err != nil {
		return StartResult{Status: "queued", QueueNumber: queueNumber}, nil
	}
	return StartResult{Status: "started", QueueNumber: queueNumber, BuildNumber: buildNumber}, nil
}

func (c *Client) pollQueueItem(ctx context.Context, queueNumber int) (int, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/queue/item/%d/api/json", queueNumber))
	if err != nil {
		c.log.WithError(err).WithField("queue_number", queueNumber).Debug("start_job: queue poll failed, continuing")
		return 0, nil
	}
	defer resp.Body.Close()

	var item queueItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		return 0, nil
	}
	if item.Cancelled {
		return 0, backoff.Permanent(fmt.Errorf("queue item %d cancelled", queueNumber))
	}
	if item.Executable != nil {
		return item.Executable.Number, nil
	}
	return 0, nil
}

func parseQueueNumber(location string) int {
	if location == "" {
		return 0
	}
	trimmed := location
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	idx := len(trimmed) - 1
	for idx >= 0 && trimmed[idx] != '/' {
		idx--
	}
	n, _ := strconv.Atoi(trimmed[idx+1:])
	return n
}
