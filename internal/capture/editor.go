package capture

import (
	"fmt"
	"image"

	"sporelab/internal/raster"
	"sporelab/pkg/domain"
)

// Editor places numbered markers on one captured slot. Coordinates are in
// the display space the photo is being reviewed at; markers are staged on
// the editor and reach the session only through Save. Cancel (or simply
// dropping the editor) leaves the slot untouched.
type Editor struct {
	session *Session
	slot    int
	markers []domain.Annotation
	done    bool
}

// EditAnnotations opens an editor for a filled slot, seeded with the slot's
// current markers. displayedWidth is the on-screen width of the photo; zero
// means the photo is shown 1:1.
func (s *Session) EditAnnotations(slot int, displayedWidth float64) (*Editor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot < 0 || slot >= SlotCount || s.photos[slot] == nil {
		return nil, fmt.Errorf("capture: slot %d has no photo to annotate", slot)
	}
	s.displayWidth[slot] = displayedWidth
	return &Editor{
		session: s,
		slot:    slot,
		markers: append([]domain.Annotation(nil), s.annotations[slot]...),
	}, nil
}

// Place appends a marker at the given display coordinates with an empty
// caption. Colors are assigned from the fluorescent palette by insertion
// order and stick to the marker for its lifetime. Returns the marker's
// index.
func (e *Editor) Place(x, y float64, size domain.MarkerSize) (int, error) {
	if e.done {
		return 0, fmt.Errorf("capture: editor already closed")
	}
	if !size.Valid() {
		return 0, fmt.Errorf("capture: invalid marker size %q", size)
	}
	e.markers = append(e.markers, domain.Annotation{
		X:     x,
		Y:     y,
		Size:  size,
		Color: raster.ColorForIndex(len(e.markers)),
	})
	return len(e.markers) - 1, nil
}

// SetCaption attaches the contaminant description to a placed marker.
func (e *Editor) SetCaption(index int, caption string) error {
	if index < 0 || index >= len(e.markers) {
		return fmt.Errorf("capture: annotation index %d out of range", index)
	}
	e.markers[index].Caption = caption
	return nil
}

// Undo removes the most recently placed marker, reporting whether one was
// removed.
func (e *Editor) Undo() bool {
	if len(e.markers) == 0 {
		return false
	}
	e.markers = e.markers[:len(e.markers)-1]
	return true
}

// Count reports the number of staged markers.
func (e *Editor) Count() int { return len(e.markers) }

// Save commits the staged markers to the session and returns a preview of
// the slot's photo with the markers baked at capture resolution, plus the
// committed list.
func (e *Editor) Save() (image.Image, []domain.Annotation, error) {
	if e.done {
		return nil, nil, fmt.Errorf("capture: editor already closed")
	}
	e.done = true

	s := e.session
	s.mu.Lock()
	defer s.mu.Unlock()
	photo := s.photos[e.slot]
	if photo == nil {
		return nil, nil, fmt.Errorf("capture: slot %d photo was discarded", e.slot)
	}
	if len(e.markers) == 0 {
		delete(s.annotations, e.slot)
	} else {
		s.annotations[e.slot] = append([]domain.Annotation(nil), e.markers...)
	}
	scale := 1.0
	if dw := s.displayWidth[e.slot]; dw > 0 {
		scale = float64(photo.Bounds().Dx()) / dw
	}
	baked := raster.BakeAnnotations(photo, e.markers, scale)
	return baked, append([]domain.Annotation(nil), e.markers...), nil
}

// Cancel discards the staged markers. The slot keeps whatever it had.
func (e *Editor) Cancel() { e.done = true }
