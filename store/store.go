// Package store implements the Metadata Store Adapter (§4.1): typed
// operations over a Redis-compatible key-value store for templates,
// deployments, executions, and console-output spill, plus the indices in
// §3 ("Indices").
//
// The adapter owns every key under the miladyos: prefix exclusively (§3
// "Ownership") — no other package in this module talks to Redis directly.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
)

const keyPrefix = "miladyos:"

// Adapter is the Metadata Store Adapter. It holds a single long-lived Redis
// handle shared across the process (§5 "Shared resources").
type Adapter struct {
	rdb         redis.Cmdable
	log         *logrus.Entry
	templatesDir string // source of truth for template existence (§3, §6)
	metadataDir  string // filesystem fallback root for console spill (§3, §9)
	now          func() time.Time
}

// Options configures an Adapter.
type Options struct {
	Host         string
	Port         int
	TemplatesDir string
	MetadataDir  string
	Logger       *logrus.Logger
}

// New connects to the configured Redis host/port and returns an Adapter.
// Connection failure on initial connect is the one fatal error this package
// raises (§4.1 "Failure semantics").
func New(ctx context.Context, opts Options) (*Adapter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", opts.Host, opts.Port),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, pipeerr.Wrap(pipeerr.CodeStoreError, "store.connect", err)
	}
	return newAdapter(rdb, opts), nil
}

// NewFromClient wraps an already-constructed redis.Cmdable (e.g. a
// miniredis-backed client in tests, §0.4).
func NewFromClient(rdb redis.Cmdable, opts Options) *Adapter {
	return newAdapter(rdb, opts)
}

func newAdapter(rdb redis.Cmdable, opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Adapter{
		rdb:          rdb,
		log:          logger.WithField("component", "store"),
		templatesDir: opts.TemplatesDir,
		metadataDir:  opts.MetadataDir,
		now:          time.Now,
	}
}

func templateKey(name string) string           { return keyPrefix + "template:" + name }
func templatesIndexKey() string                { return keyPrefix + "templates" }
func templateDeploymentsKey(name string) string { return keyPrefix + "template_deployments:" + name }
func deploymentKey(id string) string           { return keyPrefix + "deployment:" + id }
func jobIndexKey(server, job string) string    { return keyPrefix + "job_index:" + server + ":" + job }
func executionKey(id string) string            { return keyPrefix + "execution:" + id }
func executionsIndexKey() string               { return keyPrefix + "executions" }
func templateExecutionsKey(name string) string { return keyPrefix + "template_executions:" + name }
func jobExecutionsKey(server, job string) string {
	return keyPrefix + "job_executions:" + server + ":" + job
}
func statusKey(status string) string { return keyPrefix + "status:" + status }
func consoleKey(id string) string    { return keyPrefix + "console:" + id }

func score(t time.Time) float64 { return float64(t.Unix()) }
