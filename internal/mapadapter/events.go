package mapadapter

import (
	"errors"
	"fmt"

	"fleetmap/core-go/internal/fleet"
)

type EventType string

const (
	EventLocationPicked   EventType = "location_picked"
	EventPrimitiveClicked EventType = "primitive_clicked"
)

var ErrInvalidEvent = errors.New("invalid map event")

// Event is what a map client reports back: a tap on bare map, or a tap on a primitive. Lat and Lng
// are pointers so a missing coordinate is distinguishable from 0,0.
type Event struct {
	Type EventType `json:"type"`
	Lat  *float64  `json:"lat,omitempty"`
	Lng  *float64  `json:"lng,omitempty"`
	Key  Key       `json:"key,omitempty"`
}

func LocationPickedAt(lat, lng float64) Event {
	return Event{Type: EventLocationPicked, Lat: &lat, Lng: &lng}
}

func PrimitiveClickedAt(key Key, lat, lng float64) Event {
	return Event{Type: EventPrimitiveClicked, Key: key, Lat: &lat, Lng: &lng}
}

// Location returns the event coordinate. ok is false unless both parts were sent.
func (e Event) Location() (loc fleet.Coordinates, ok bool) {
	if e.Lat == nil || e.Lng == nil {
		return fleet.Coordinates{}, false
	}
	return fleet.Coordinates{Lat: *e.Lat, Lng: *e.Lng}, true
}

func (e Event) Validate() error {
	loc, hasLoc := e.Location()
	if hasLoc && !loc.Valid() {
		return fmt.Errorf("%w: coordinate %v,%v out of range", ErrInvalidEvent, loc.Lat, loc.Lng)
	}
	if !hasLoc && (e.Lat != nil || e.Lng != nil) {
		return fmt.Errorf("%w: lat and lng must be sent together", ErrInvalidEvent)
	}

	switch e.Type {
	case EventLocationPicked:
		if !hasLoc {
			return fmt.Errorf("%w: location_picked requires lat and lng", ErrInvalidEvent)
		}
		return nil
	case EventPrimitiveClicked:
		if _, _, ok := e.Key.Split(); !ok {
			return fmt.Errorf("%w: malformed primitive key %q", ErrInvalidEvent, e.Key)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
}
