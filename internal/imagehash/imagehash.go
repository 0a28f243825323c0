// Package imagehash computes and compares perceptual hashes of downloaded
// images, used both to look up existing source matches and to reconfirm
// that a suspected duplicate really is visually similar before trusting it.
package imagehash

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
)

// MaxDistance is the Hamming-distance threshold at or below which two hashes
// are considered the same image.
const MaxDistance = 3

// Hash computes a 64-bit difference hash for the image encoded in data.
func Hash(data []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}

	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0, err
	}
	return h.GetHash(), nil
}

// Distance returns the Hamming distance between two hashes produced by Hash.
func Distance(a, b uint64) int {
	return popcount(a ^ b)
}

// Similar reports whether a and b are within MaxDistance of each other.
func Similar(a, b uint64) bool {
	return Distance(a, b) <= MaxDistance
}

func popcount(x uint64) int {
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}
