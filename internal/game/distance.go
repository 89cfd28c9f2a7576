package game

import (
	"crypto/rand"
	"fmt"
	"io"
	"math"
	"strings"
)

// earthRadiusKm is the mean Earth radius used for great-circle distances.
const earthRadiusKm = 6371.0

// Distance returns the great-circle distance between two points in km.
func Distance(a, b Location) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// FormatDistance renders km as meters below 1 km and as km with two
// decimals otherwise.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%.0fm", km*1000)
	}
	return fmt.Sprintf("%.2fkm", km)
}

const roomCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// RoomCodeLength is the number of characters in a room code.
const RoomCodeLength = 6

// NewRoomCode returns a short, human-typeable game identifier.
func NewRoomCode() string {
	return roomCode(rand.Reader)
}

// roomCode draws characters from src, rejecting bytes at or above the last
// multiple of the alphabet size so every character is equally likely.
func roomCode(src io.Reader) string {
	limit := 256 - 256%len(roomCodeAlphabet)
	var b strings.Builder
	b.Grow(RoomCodeLength)
	buf := make([]byte, 2*RoomCodeLength)
	for b.Len() < RoomCodeLength {
		if _, err := io.ReadFull(src, buf); err != nil {
			panic(fmt.Sprintf("game: reading random bytes: %v", err))
		}
		for _, c := range buf {
			if int(c) >= limit {
				continue
			}
			b.WriteByte(roomCodeAlphabet[int(c)%len(roomCodeAlphabet)])
			if b.Len() == RoomCodeLength {
				break
			}
		}
	}
	return b.String()
}

// NormalizeRoomCode trims and upper-cases user input.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
