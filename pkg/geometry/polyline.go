package geometry

import (
	"errors"
	"math"
)

// ErrTruncatedPolyline is returned when an encoded polyline ends mid-value.
var ErrTruncatedPolyline = errors.New("truncated polyline")

// LatLon is a geographic coordinate in decimal degrees.
type LatLon struct {
	Lat float64
	Lon float64
}

// DecodePolyline decodes a string in Google's encoded polyline format
// (https://developers.google.com/maps/documentation/utilities/polylinealgorithm)
// using 5 decimal places of precision. Zone outlines in provisioning files are
// usually exported this way because it keeps them on a single line.
func DecodePolyline(encoded string) ([]LatLon, error) {
	if encoded == "" {
		return nil, nil
	}

	var (
		coords []LatLon
		lat    int
		lon    int
		index  int
	)
	for index < len(encoded) {
		dLat, next, err := decodeValue(encoded, index)
		if err != nil {
			return nil, err
		}
		dLon, next, err := decodeValue(encoded, next)
		if err != nil {
			return nil, err
		}
		index = next
		lat += dLat
		lon += dLon

		coords = append(coords, LatLon{
			Lat: float64(lat) / 1e5,
			Lon: float64(lon) / 1e5,
		})
	}
	return coords, nil
}

func decodeValue(encoded string, index int) (int, int, error) {
	shift := 0
	result := 0
	for {
		if index >= len(encoded) {
			return 0, index, ErrTruncatedPolyline
		}
		b := int(encoded[index]) - 63
		index++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}

	if result&1 != 0 {
		return ^(result >> 1), index, nil
	}
	return result >> 1, index, nil
}

// EncodePolyline is the inverse of DecodePolyline.
func EncodePolyline(coords []LatLon) string {
	if len(coords) == 0 {
		return ""
	}

	buf := make([]byte, 0, len(coords)*8)
	prevLat, prevLon := 0, 0
	for _, c := range coords {
		lat := int(math.Round(c.Lat * 1e5))
		lon := int(math.Round(c.Lon * 1e5))
		buf = encodeValue(buf, lat-prevLat)
		buf = encodeValue(buf, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(buf)
}

func encodeValue(buf []byte, value int) []byte {
	if value < 0 {
		value = ^(value << 1)
	} else {
		value <<= 1
	}
	for value >= 0x20 {
		buf = append(buf, byte((value&0x1f)|0x20)+63)
		value >>= 5
	}
	return append(buf, byte(value)+63)
}
