package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"sporelab/internal/raster"
	"sporelab/pkg/domain"
)

// SlotCount is the fixed number of photo slots per checkpoint day.
const SlotCount = 6

// ErrNoPhotosCaptured is returned by Complete when every slot is empty.
var ErrNoPhotosCaptured = errors.New("capture: session has no photos")

// TestInfo is the metadata printed on every finished photo of the session.
type TestInfo struct {
	ExperimentNumber int
	RepetitionNumber int
	TestNumber       int
	Strain           string
	Unit             string
	TestLot          string
}

// CapturedPhoto is one finished, caption-composited photo.
type CapturedPhoto struct {
	Slot int
	Data []byte // JPEG
}

// Session collects up to six photos for one test and day, lets each be
// annotated, and composes the final captioned JPEGs on completion.
type Session struct {
	stream Stream
	day    domain.CheckDay
	info   TestInfo
	log    *slog.Logger

	mu           sync.Mutex
	photos       [SlotCount]image.Image
	displayWidth [SlotCount]float64
	annotations  domain.AnnotationsByPhotoIndex
	current      int
	closed       bool
}

// NewSession starts a capture session over an open stream.
func NewSession(stream Stream, day domain.CheckDay, info TestInfo, log *slog.Logger) (*Session, error) {
	if !day.Valid() {
		return nil, fmt.Errorf("capture: invalid checkpoint day %d", day)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		stream:      stream,
		day:         day,
		info:        info,
		log:         log,
		annotations: domain.AnnotationsByPhotoIndex{},
	}, nil
}

// Current returns the active slot index.
func (s *Session) Current() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Select moves the active slot.
func (s *Session) Select(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot < 0 || slot >= SlotCount {
		return fmt.Errorf("capture: slot %d out of range", slot)
	}
	s.current = slot
	return nil
}

// Photo returns the image captured into slot, if any.
func (s *Session) Photo(slot int) (image.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot < 0 || slot >= SlotCount || s.photos[slot] == nil {
		return nil, false
	}
	return s.photos[slot], true
}

// FilledCount reports how many slots hold a photo.
func (s *Session) FilledCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filledCount()
}

func (s *Session) filledCount() int {
	n := 0
	for _, p := range s.photos {
		if p != nil {
			n++
		}
	}
	return n
}

// Capture grabs a frame into the active slot and advances to the next slot
// unless the active slot is the last one; the user decides whether six
// photos are needed.
func (s *Session) Capture(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, errors.New("capture: session closed")
	}
	frame, err := s.stream.Capture(ctx)
	if err != nil {
		return 0, fmt.Errorf("capture: grab frame: %w", err)
	}
	slot := s.current
	s.photos[slot] = frame
	s.displayWidth[slot] = 0
	delete(s.annotations, slot)
	if s.current < SlotCount-1 {
		s.current++
	}
	return slot, nil
}

// Retake replaces the photo in slot with a fresh frame and drops the slot's
// annotations; markers placed on the old photo mean nothing on the new one.
func (s *Session) Retake(ctx context.Context, slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot < 0 || slot >= SlotCount {
		return fmt.Errorf("capture: slot %d out of range", slot)
	}
	if s.photos[slot] == nil {
		return fmt.Errorf("capture: slot %d has no photo to retake", slot)
	}
	frame, err := s.stream.Capture(ctx)
	if err != nil {
		return fmt.Errorf("capture: grab frame: %w", err)
	}
	s.photos[slot] = frame
	s.displayWidth[slot] = 0
	delete(s.annotations, slot)
	return nil
}

// Annotations returns a deep copy of the session's marker map.
func (s *Session) Annotations() domain.AnnotationsByPhotoIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.annotations.Clone()
}

// Complete finalizes the session: every filled slot is baked with its
// markers, extended with the caption band, and encoded. Photo numbering in
// captions is the 1-based position among filled slots, not the slot index.
// At least one photo must have been captured.
func (s *Session) Complete(ctx context.Context) ([]CapturedPhoto, domain.AnnotationsByPhotoIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, errors.New("capture: session closed")
	}
	if s.filledCount() == 0 {
		return nil, nil, ErrNoPhotosCaptured
	}
	out := make([]CapturedPhoto, 0, SlotCount)
	number := 0
	for slot, photo := range s.photos {
		if photo == nil {
			continue
		}
		number++
		anns := s.annotations[slot]
		scale := 1.0
		if dw := s.displayWidth[slot]; dw > 0 {
			scale = float64(photo.Bounds().Dx()) / dw
		}
		baked := raster.BakeAnnotations(photo, anns, scale)
		captioned := raster.AddCaptionBand(baked, raster.CaptionInfo{
			ExperimentNumber: s.info.ExperimentNumber,
			RepetitionNumber: s.info.RepetitionNumber,
			TestNumber:       s.info.TestNumber,
			Day:              s.day,
			Strain:           s.info.Strain,
			PhotoNumber:      number,
			Unit:             s.info.Unit,
			TestLot:          s.info.TestLot,
			Annotations:      anns,
		})
		data, err := raster.EncodeJPEG(captioned)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, CapturedPhoto{Slot: slot, Data: data})
	}
	s.close()
	return out, s.annotations.Clone(), nil
}

// Cancel discards the session and releases the stream.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.photos = [SlotCount]image.Image{}
	s.annotations = domain.AnnotationsByPhotoIndex{}
	s.close()
}

func (s *Session) close() {
	s.closed = true
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			s.log.Warn("stream close failed", "error", err)
		}
	}
}
