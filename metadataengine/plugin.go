// Package metadataengine implements Satellite's metadata enrichment via
// LRR plugins (C5 §4.4), grounded on satellite/app/services/metadata.py's
// update_metadata_from_plugin, with two corrections spec.md makes
// explicit: a hard 10-attempt retry cap (the original retries forever),
// and sleeping before each plugin call rather than after it.
package metadataengine

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"arcsat.dev/satellite/internal/retry"
	"arcsat.dev/satellite/jobstore"
	"arcsat.dev/satellite/lrrclient"
)

// Error is the metadataengine package's error class.
var Error = errs.Class("metadataengine")

// ProcessOne runs plugin against arcid's metadata: sleeps a random interval
// in [0, sleepSeconds) before calling the plugin (spec.md §4.4's explicit
// ordering), merges any new_tags the plugin returns with the archive's
// existing tags and writes them back to LRR, and records the outcome in
// the metadata_plugin_task table, retrying failures other than not-found
// up to retry.MaxAttempts times.
func ProcessOne(ctx context.Context, store *jobstore.Store, lrr *lrrclient.Client, arcid, plugin string, sleepSeconds float64, rng *rand.Rand, log *zap.Logger) error {
	log = log.Named("metadata").With(zap.String("arcid", arcid), zap.String("plugin", plugin))

	existing, err := store.GetMetadataPluginTask(arcid, plugin)
	if err != nil {
		return Error.Wrap(err)
	}
	if existing != nil && existing.Status == jobstore.MetadataComplete {
		return nil
	}

	now := float64(time.Now().Unix())
	var result string
	retryErr := retry.Do(ctx, rng, isRetryable, func(attempt int) error {
		sleepFor := time.Duration(rng.Float64() * sleepSeconds * float64(time.Second))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}

		raw, err := lrr.UsePlugin(ctx, arcid, plugin)
		if err != nil {
			if err == lrrclient.ErrPluginNotFound {
				return errNotFound
			}
			return err
		}
		result = string(raw)
		return nil
	})

	switch {
	case retryErr == nil:
		var parsed struct {
			NewTags string `json:"new_tags"`
		}
		if err := json.Unmarshal([]byte(result), &parsed); err == nil && parsed.NewTags != "" {
			meta, err := lrr.GetArchiveMetadata(ctx, arcid)
			if err != nil {
				return Error.Wrap(err)
			}
			if err := lrr.UpdateArchiveMetadata(ctx, arcid, "", MergeTags(meta.Tags, parsed.NewTags)); err != nil {
				return Error.Wrap(err)
			}
		}
		log.Info("plugin applied")
		return Error.Wrap(store.UpsertMetadataPluginTask(jobstore.MetadataPluginTaskRow{
			ArcID: arcid, Plugin: plugin, Status: jobstore.MetadataComplete, LastUpdated: now,
		}))
	case errors.Is(retryErr, errNotFound):
		failures := 0
		if existing != nil {
			failures = existing.NumFailures + 1
		} else {
			failures = 1
		}
		log.Warn("plugin reported not found", zap.Int("num_failures", failures))
		return Error.Wrap(store.UpsertMetadataPluginTask(jobstore.MetadataPluginTaskRow{
			ArcID: arcid, Plugin: plugin, Status: jobstore.MetadataNotFound,
			NumFailures: failures, LastUpdated: now,
		}))
	default:
		log.Error("plugin failed", zap.Error(retryErr))
		return Error.Wrap(store.UpsertMetadataPluginTask(jobstore.MetadataPluginTaskRow{
			ArcID: arcid, Plugin: plugin, Status: jobstore.MetadataError, LastUpdated: now,
		}))
	}
}

var errNotFound = Error.New("plugin reported NOT_FOUND")

func isRetryable(err error) bool {
	return !errors.Is(err, errNotFound)
}

// MergeTags folds newTags into existing, de-duplicating exact matches
// while preserving existing's ordering (new tags are appended), matching
// update_metadata_from_plugin's tag-merge behavior.
func MergeTags(existing, newTags string) string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range strings.Split(existing, ",") {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	for _, t := range strings.Split(newTags, ",") {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return strings.Join(out, ", ")
}
