package snapshot

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/go-eventually-snapshot/event"
	"github.com/get-eventually/go-eventually-snapshot/logger"
	"github.com/get-eventually/go-eventually-snapshot/version"
)

// ReconcileResult is the outcome of reconciling the snapshot pointer
// of a single Event Stream.
type ReconcileResult struct {
	StreamID event.StreamID

	// Previous is the pointer found before reconciling, if HadPointer is true.
	Previous   version.Version
	HadPointer bool

	// Current is the pointer after reconciling. It is equal to Previous
	// when no newer snapshot has been found in the Event Stream.
	Current version.Version
	Updated bool
}

// PointerUpdater updates the snapshot pointer of an Event Stream.
// It is implemented by Writer.
type PointerUpdater interface {
	UpdatePointer(ctx context.Context, id event.StreamID, v version.Version) error
}

var _ PointerUpdater = Writer{}

// Reconciler re-derives the snapshot pointer of an Event Stream from
// its contents, fixing pointers left stale by a failed, or lost, pointer update.
//
// Reconciler only moves pointers forward, to the latest snapshot event
// found in the Event Stream.
type Reconciler struct {
	Streamer event.Streamer
	Metadata event.MetadataGetter
	Writer   PointerUpdater

	// Logger is optional.
	Logger logger.Logger
}

// Reconcile reads the Event Stream after the current pointer, looking for
// snapshot events, and updates the pointer to the latest one found, if any.
//
// A malformed pointer is treated as missing, and the whole Event Stream is read.
func (r Reconciler) Reconcile(ctx context.Context, id event.StreamID) (ReconcileResult, error) {
	if id == "" {
		return ReconcileResult{}, fmt.Errorf("snapshot.Reconciler.Reconcile: %w", ErrInvalidStreamID)
	}

	previous, hadPointer, err := Pointer(ctx, r.Metadata, id)
	if err != nil && !errors.Is(err, ErrInvalidPointer) {
		return ReconcileResult{}, fmt.Errorf("snapshot.Reconciler.Reconcile: %w", err)
	}

	selector := version.SelectFromBeginning
	if hadPointer {
		selector = version.Selector{From: previous + 1}
	}

	latest, found, err := r.latestSnapshot(ctx, id, selector)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("snapshot.Reconciler.Reconcile: %w", err)
	}

	result := ReconcileResult{
		StreamID:   id,
		Previous:   previous,
		HadPointer: hadPointer,
		Current:    previous,
	}

	if !found {
		logger.Debug(r.Logger, "Snapshot pointer up to date",
			logger.With("stream_id", id),
			logger.With("version", previous),
		)

		return result, nil
	}

	if err := r.Writer.UpdatePointer(ctx, id, latest); err != nil {
		return result, fmt.Errorf("snapshot.Reconciler.Reconcile: %w", err)
	}

	result.Current = latest
	result.Updated = true

	logger.Info(r.Logger, "Stale snapshot pointer reconciled",
		logger.With("stream_id", id),
		logger.With("previous_version", previous),
		logger.With("current_version", latest),
	)

	return result, nil
}

func (r Reconciler) latestSnapshot(
	ctx context.Context,
	id event.StreamID,
	selector version.Selector,
) (version.Version, bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eventStream := make(chan event.Persisted, 1)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := r.Streamer.Stream(ctx, eventStream, id, selector); err != nil {
			return fmt.Errorf("failed while reading events from stream, %w", err)
		}

		return nil
	})

	var (
		latest version.Version
		found  bool
	)

	for evt := range eventStream {
		if IsSnapshot(evt.Message) {
			latest, found = evt.Version, true
		}
	}

	if err := group.Wait(); err != nil {
		return 0, false, err
	}

	return latest, found, nil
}

// ReconcileAll reconciles the provided Event Streams one after the other.
//
// Failures on one Event Stream do not stop the others: all the errors
// are joined together in the returned error.
func (r Reconciler) ReconcileAll(ctx context.Context, ids ...event.StreamID) ([]ReconcileResult, error) {
	results := make([]ReconcileResult, 0, len(ids))

	var errs []error

	for _, id := range ids {
		result, err := r.Reconcile(ctx, id)
		if err != nil {
			logger.Error(r.Logger, "Failed to reconcile snapshot pointer",
				logger.With("stream_id", id),
				logger.Err(err),
			)

			errs = append(errs, err)

			continue
		}

		results = append(results, result)
	}

	return results, errors.Join(errs...)
}
