package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/archiver/auditpipe/pkg/metrics"
	"github.com/archiver/auditpipe/pkg/pipeline/record"
	"github.com/archiver/auditpipe/pkg/pipeline/transform"
	"github.com/prometheus/client_golang/prometheus"
)

func distributeToSinks(
	pl Pipeline,
	source Source,
	rec record.Record,
	sinkChannels map[string]chan record.Record,
) {
	for _, sink := range pl.Sinks {
		if ch, ok := sinkChannels[sink.Name]; ok {
			select {
			case ch <- rec:
				metrics.ProcessedRecords.WithLabelValues(
					pl.Name,
					source.Name,
					sink.Name,
				).Inc()
			default:
				log.Printf("Warning: Sink channel %s is full", sink.Name)
			}
		}
	}
}

func applyTransformations(rec *record.Record, transformations []transform.Transformation) (*record.Record, error) {
	if len(transformations) == 0 {
		return rec, nil
	}

	if rec == nil {
		return nil, fmt.Errorf("cannot transform nil record")
	}

	manager := transform.NewManager()
	manager.RegisterBuiltins()

	chainTransformations, err := manager.Chain(transformations)
	if err != nil {
		return nil, fmt.Errorf("error creating transformation pipeline: %w", err)
	}

	result, err := chainTransformations(rec)
	if result == nil && err == nil {
		// Transform indicated the record should be dropped
		return nil, nil
	}
	return result, err
}

// processSinkRecords handles records from multiple sources
func processSinkRecords(
	ctx context.Context,
	wg *sync.WaitGroup,
	pl Pipeline,
	sink Sink,
	peer *Peer,
	ch <-chan record.Record,
) {
	defer wg.Done()

	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return
			}

			// Apply sink-specific transformations
			transformed, err := applyTransformations(&rec, sink.Transformations)
			if err != nil {
				metrics.TransformationErrors.WithLabelValues(
					"sink",
					pl.Name,
					"multiple",
					sink.Name,
				).Inc()
				log.Printf("Sink transformation error: %v", err)
				continue
			}
			if transformed == nil {
				metrics.DroppedRecords.WithLabelValues(pl.Name, "multiple").Inc()
				continue
			}

			// Publish the transformed record
			if err := peer.Connector().Pub(*transformed); err != nil {
				metrics.PublishErrors.WithLabelValues(sink.Name).Inc()
				log.Printf("Publish error to %s: %v", peer.Name, err)
			}

		case <-ctx.Done():
			return
		}
	}
}

// ProcessRecord handles the processing of a single record
func ProcessRecord(
	pl Pipeline,
	source Source,
	rec record.Record,
	sinkChannels map[string]chan record.Record,
) {
	timer := prometheus.NewTimer(metrics.RecordProcessingDuration.WithLabelValues(
		pl.Name,
		source.Name,
		"",
	))
	defer timer.ObserveDuration()

	// Process source transformations
	transformed := applyRecordTransformations(rec, source, pl, sinkChannels)
	if transformed == nil {
		return
	}

	// Distribute to sinks
	distributeToSinks(pl, source, *transformed, sinkChannels)
}

// applyRecordTransformations applies source and pipeline transformations to a record
func applyRecordTransformations(
	rec record.Record,
	source Source,
	pl Pipeline,
	sinkChannels map[string]chan record.Record,
) *record.Record {
	// Source transformations
	transformed, err := applyTransformations(&rec, source.Transformations)
	if err != nil {
		metrics.TransformationErrors.WithLabelValues(
			"source",
			pl.Name,
			source.Name,
			"",
		).Inc()
		log.Printf("Source transformation error: %v", err)
		return nil
	}
	if transformed == nil {
		metrics.DroppedRecords.WithLabelValues(pl.Name, source.Name).Inc()
		return nil
	}

	// Pipeline transformations
	transformed, err = applyTransformations(transformed, pl.Transformations)
	if err != nil {
		metrics.TransformationErrors.WithLabelValues(
			"pipeline",
			pl.Name,
			source.Name,
			"",
		).Inc()
		log.Printf("Pipeline transformation error: %v", err)
		return nil
	}
	if transformed == nil {
		metrics.DroppedRecords.WithLabelValues(pl.Name, source.Name).Inc()
		return nil
	}

	return transformed
}
