package utils

import "math"

const (
	// RadiusOfEarthInMeters is RADIUS_OF_EARTH_IN_KM * 1000
	RadiusOfEarthInMeters = 6371010.0

	kmhPerMetersPerSecond = 3.6
)

// CoordinateBounds represents a bounding box with min/max latitude and longitude
type CoordinateBounds struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// ToRadians converts degrees to radians.
func ToRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Bearing returns the initial great-circle bearing from (lat1, lon1) to
// (lat2, lon2) in degrees clockwise from north, in the range (-180, 180].
// The result is not wrapped to [0, 360). Equal points give 0, which is
// meaningless: callers that care must not ask for the bearing of a zero
// length move.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := ToRadians(lat1)
	phi2 := ToRadians(lat2)
	deltaLambda := ToRadians(lon2 - lon1)

	y := math.Sin(deltaLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(deltaLambda)

	return toDegrees(math.Atan2(y, x))
}

// MetersPerSecondToKmh converts a speed to whole km/h. Rounding is half away
// from zero so the conversion is symmetric around zero.
func MetersPerSecondToKmh(mps float64) float64 {
	return math.Round(mps * kmhPerMetersPerSecond)
}

// Distance calculates the distance between two points on the Earth.
// For short distances (under ~22km), it uses a highly optimized Equirectangular
// approximation to save CPU cycles. For longer distances, it falls back to the exact formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	// coordinate differences under 0.2 degrees (~22km)
	if math.Abs(lat2-lat1) < 0.2 && math.Abs(lon2-lon1) < 0.2 {
		lat1Rad := ToRadians(lat1)
		lat2Rad := ToRadians(lat2)
		dLatRad := ToRadians(lat2 - lat1)
		dLonRad := ToRadians(lon2 - lon1)

		// Equirectangular approximation
		x := dLonRad * math.Cos((lat1Rad+lat2Rad)/2)
		y := dLatRad
		return RadiusOfEarthInMeters * math.Sqrt(x*x+y*y)
	}

	lat1Rad := ToRadians(lat1)
	lat2Rad := ToRadians(lat2)
	deltaLon := ToRadians(lon2 - lon1)

	y := math.Sqrt(math.Pow(math.Cos(lat2Rad)*math.Sin(deltaLon), 2) +
		math.Pow(math.Cos(lat1Rad)*math.Sin(lat2Rad)-math.Sin(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon), 2))
	x := math.Sin(lat1Rad)*math.Sin(lat2Rad) + math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Cos(deltaLon)

	return RadiusOfEarthInMeters * math.Atan2(y, x)
}

// CalculateBounds returns the box enclosing a circle of distance meters
// around (lat, lon).
func CalculateBounds(lat, lon, distance float64) CoordinateBounds {
	latRadians := ToRadians(lat)
	lonRadians := ToRadians(lon)

	latRadius := RadiusOfEarthInMeters
	lonRadius := math.Cos(latRadians) * RadiusOfEarthInMeters

	latOffset := distance / latRadius
	lonOffset := distance / lonRadius

	return CoordinateBounds{
		MinLat: toDegrees(latRadians - latOffset),
		MaxLat: toDegrees(latRadians + latOffset),
		MinLon: toDegrees(lonRadians - lonOffset),
		MaxLon: toDegrees(lonRadians + lonOffset),
	}
}

// ValidCoordinate reports whether lat and lon are within the WGS84 ranges.
func ValidCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Valid reports whether the box is non-inverted and within WGS84 ranges.
func (b CoordinateBounds) Valid() bool {
	return b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon &&
		b.MinLat >= -90 && b.MaxLat <= 90 &&
		b.MinLon >= -180 && b.MaxLon <= 180
}
