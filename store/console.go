package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/opsorch/pipeline-orchestrator/pipeerr"
)

// storeConsole writes console output to the console:<id> string key:
// delete any prior value, write, then verify the key actually exists before
// trusting the write. A failure is retried once; if the retry also fails,
// it spills to <metadata_dir>/console_<id>.txt instead, so output is never
// silently dropped. A nil return means the output landed either in Redis or
// in the spill file, and callers set console_stored on that basis (§4.1
// update_execution_status, §9 recovery notes).
func (a *Adapter) storeConsole(ctx context.Context, executionID, text string) error {
	key := consoleKey(executionID)

	if err := a.writeAndVerifyConsole(ctx, key, text); err != nil {
		a.log.WithError(err).WithField("execution", executionID).Warn("console store: write failed, retrying once")
		if err := a.writeAndVerifyConsole(ctx, key, text); err != nil {
			a.log.WithError(err).WithField("execution", executionID).Warn("console store: retry failed, spilling to disk")
			return a.writeConsoleFallback(executionID, text)
		}
	}
	return nil
}

func (a *Adapter) writeAndVerifyConsole(ctx context.Context, key, text string) error {
	if err := a.rdb.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return err
	}
	if err := a.rdb.Set(ctx, key, text, 0).Err(); err != nil {
		return err
	}
	exists, err := a.rdb.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if exists == 0 {
		return fmt.Errorf("console key %s missing immediately after write", key)
	}
	return nil
}

// GetConsoleOutput returns the console output for an execution, checking
// the store first and the filesystem spill second, repopulating the store
// transparently on a fallback hit (SPEC_FULL §1, addition over spec.md).
func (a *Adapter) GetConsoleOutput(ctx context.Context, executionID string) (string, error) {
	text, err := a.rdb.Get(ctx, consoleKey(executionID)).Result()
	if err == nil && text != "" {
		return text, nil
	}

	fallback, ok := a.readConsoleFallback(executionID)
	if !ok {
		return "", pipeerr.New(pipeerr.CodeStoreError, "get_console_output", "no console output for "+executionID)
	}
	if err := a.rdb.Set(ctx, consoleKey(executionID), fallback, 0).Err(); err != nil {
		a.log.WithError(err).WithField("execution", executionID).Warn("get_console_output: repopulate failed")
	}
	return fallback, nil
}

func (a *Adapter) consoleFallbackPath(executionID string) string {
	return filepath.Join(a.metadataDir, "console_"+executionID+".txt")
}

func (a *Adapter) writeConsoleFallback(executionID, text string) error {
	if err := os.MkdirAll(a.metadataDir, 0o755); err != nil {
		return pipeerr.Wrap(pipeerr.CodeStoreError, "console.fallback.mkdir", err)
	}
	if err := os.WriteFile(a.consoleFallbackPath(executionID), []byte(text), 0o644); err != nil {
		return pipeerr.Wrap(pipeerr.CodeStoreError, "console.fallback.write", err)
	}
	return nil
}

func (a *Adapter) readConsoleFallback(executionID string) (string, bool) {
	data, err := os.ReadFile(a.consoleFallbackPath(executionID))
	if err != nil {
		return "", false
	}
	return string(data), true
}
