package detect

import (
	"context"
	"log/slog"
	"time"
)

// emergencyClasses are the detection classes that raise a road's emergency
// flag.
var emergencyClasses = map[string]bool{
	"ambulance":  true,
	"fire_truck": true,
	"police_car": true,
}

// FrameSource supplies camera frames as base64-encoded JPEG.
type FrameSource interface {
	NextFrame(ctx context.Context) (string, error)
}

// Updater commits one road's demand. Satisfied by the session controller.
type Updater interface {
	Update(roadID, count int, emergency bool) error
}

// Feed pumps one road's camera through the detector and into the store.
// Each feed runs on its own goroutine; a commit must return immediately so
// a slow phase transition can never stall a camera.
type Feed struct {
	roadID   int
	source   FrameSource
	detector Detector
	updater  Updater
	logger   *slog.Logger
	interval time.Duration
}

// NewFeed creates a feed for roadID sampling at interval.
func NewFeed(roadID int, source FrameSource, detector Detector, updater Updater, interval time.Duration, logger *slog.Logger) *Feed {
	return &Feed{
		roadID:   roadID,
		source:   source,
		detector: detector,
		updater:  updater,
		logger:   logger,
		interval: interval,
	}
}

// Run samples frames until ctx is cancelled. Detection failures are logged
// and skipped; the last committed demand stays in effect.
func (f *Feed) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		frame, err := f.source.NextFrame(ctx)
		if err != nil {
			f.logger.Warn("frame capture failed", "road", f.roadID, "err", err)
			continue
		}

		res, err := f.detector.Detect(ctx, frame)
		if err != nil {
			f.logger.Warn("detection failed", "road", f.roadID, "err", err)
			continue
		}

		count, emergency := Summarize(res.Predictions)
		if err := f.updater.Update(f.roadID, count, emergency); err != nil {
			f.logger.Error("demand commit failed", "road", f.roadID, "err", err)
		}
	}
}

// Summarize reduces raw predictions to the pair the arbiter consumes: a
// vehicle count and whether any emergency vehicle is present.
func Summarize(preds []Prediction) (count int, emergency bool) {
	for _, p := range preds {
		count++
		if emergencyClasses[p.Class] {
			emergency = true
		}
	}
	return count, emergency
}
