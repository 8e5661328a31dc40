package floorplan

import (
	"math"
)

func EqualWithEpsilon(a float64, b float64, epsilon float64) bool {
	return math.Abs(a-b) <= epsilon
}

// Vector2 is a point on the ground plane. X and Y map to the world X and Z
// axes.
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v1 Vector2) Equal(v2 Vector2) bool {
	return v1.X == v2.X && v1.Y == v2.Y
}

func (v1 Vector2) EqualWithEpsilon(v2 Vector2, epsilon float64) bool {
	return EqualWithEpsilon(v1.X, v2.X, epsilon) &&
		EqualWithEpsilon(v1.Y, v2.Y, epsilon)
}

func (v1 Vector2) Sub(v2 Vector2) Vector2 {
	return Vector2{v1.X - v2.X, v1.Y - v2.Y}
}

func (v1 Vector2) Length() float64 {
	return math.Sqrt(v1.X*v1.X + v1.Y*v1.Y)
}

// Distance returns the euclidean distance between a and b.
func Distance(a Vector2, b Vector2) float64 {
	return a.Sub(b).Length()
}

// Vector3 is a world position as reported by pose tracking. Y is the vertical
// axis.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vector3) Equal(v2 Vector3) bool {
	return v.X == v2.X && v.Y == v2.Y && v.Z == v2.Z
}

// GroundPlane projects the position on the ground plane by dropping the
// vertical axis.
func (v Vector3) GroundPlane() Vector2 {
	return Vector2{v.X, v.Z}
}
