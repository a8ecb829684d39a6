package wire

import (
	"errors"
	"fmt"
	"math"
)

// PersonArgCount is the number of positional arguments a person message carries.
const PersonArgCount = 13

var ErrMalformedMessage = errors.New("wire: malformed message")

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Rect struct {
	Origin Vec2 `json:"origin"`
	Size   Vec2 `json:"size"`
}

// Person is one tracked entity snapshot. Centroid and box coordinates are
// normalized to 0..1 by the tracker.
type Person struct {
	ID          int  `json:"id"`
	OriginID    int  `json:"origin_id"`
	Age         int  `json:"age"`
	Centroid    Vec2 `json:"centroid"`
	Velocity    Vec2 `json:"velocity"`
	BoundingBox Rect `json:"bounding_box"`
	OpticalFlow Vec2 `json:"optical_flow"`
}

// ParsePerson decodes the fixed person schema. Extra trailing arguments are
// ignored.
func ParsePerson(args []any) (Person, error) {
	if len(args) < PersonArgCount {
		return Person{}, fmt.Errorf("%w: person needs %d args, got %d", ErrMalformedMessage, PersonArgCount, len(args))
	}
	var p Person
	var err error
	ints := []*int{&p.ID, &p.OriginID, &p.Age}
	for i, dst := range ints {
		if *dst, err = argInt(args, i); err != nil {
			return Person{}, err
		}
	}
	floats := []*float64{
		&p.Centroid.X, &p.Centroid.Y,
		&p.Velocity.X, &p.Velocity.Y,
		&p.BoundingBox.Origin.X, &p.BoundingBox.Origin.Y,
		&p.BoundingBox.Size.X, &p.BoundingBox.Size.Y,
		&p.OpticalFlow.X, &p.OpticalFlow.Y,
	}
	for i, dst := range floats {
		if *dst, err = argFloat(args, len(ints)+i); err != nil {
			return Person{}, err
		}
	}
	if p.ID < 0 {
		return Person{}, fmt.Errorf("%w: negative id %d", ErrMalformedMessage, p.ID)
	}
	return p, nil
}

// ParseID decodes the leading id argument.
func ParseID(args []any) (int, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%w: missing id", ErrMalformedMessage)
	}
	id, err := argInt(args, 0)
	if err != nil {
		return 0, err
	}
	if id < 0 {
		return 0, fmt.Errorf("%w: negative id %d", ErrMalformedMessage, id)
	}
	return id, nil
}

// PersonArgs encodes p in wire order using OSC int32/float32 argument types.
func PersonArgs(p Person) []any {
	return []any{
		int32(p.ID), int32(p.OriginID), int32(p.Age),
		float32(p.Centroid.X), float32(p.Centroid.Y),
		float32(p.Velocity.X), float32(p.Velocity.Y),
		float32(p.BoundingBox.Origin.X), float32(p.BoundingBox.Origin.Y),
		float32(p.BoundingBox.Size.X), float32(p.BoundingBox.Size.Y),
		float32(p.OpticalFlow.X), float32(p.OpticalFlow.Y),
	}
}

func argInt(args []any, i int) (int, error) {
	switch v := args[i].(type) {
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case int:
		return v, nil
	case float32:
		return integral(float64(v), i)
	case float64:
		return integral(v, i)
	default:
		return 0, fmt.Errorf("%w: arg %d is %T, want int", ErrMalformedMessage, i, args[i])
	}
}

// integral accepts a float carrying a whole number in OSC int32 range.
func integral(f float64, i int) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) ||
		f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: arg %d is %v, want int", ErrMalformedMessage, i, f)
	}
	return int(f), nil
}

func argFloat(args []any, i int) (float64, error) {
	switch v := args[i].(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: arg %d is %T, want float", ErrMalformedMessage, i, args[i])
	}
}
