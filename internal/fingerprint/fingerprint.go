// Package fingerprint computes cheap digests used to suppress repeated clipboard images.
package fingerprint

import (
	"encoding/base64"
	"encoding/hex"
	"image"

	"github.com/corona10/goimagehash"
	"github.com/zeebo/xxh3"

	apperrors "github.com/GriffinCanCode/snapnotify/internal/errors"
)

// DefaultPrefixSize is how many encoded bytes the prefix strategy keeps.
const DefaultPrefixSize = 100

// Modes accepted by New.
const (
	ModeContent    = "content"
	ModePrefix     = "prefix"
	ModePerceptual = "perceptual"
)

// Fingerprint is a comparable digest. The zero value matches nothing real.
type Fingerprint string

// Fingerprinter digests a decoded image together with its PNG encoding.
type Fingerprinter interface {
	Fingerprint(img image.Image, encoded []byte) (Fingerprint, error)
}

// Prefix renders the first Size encoded bytes as base64.
// Images whose encodings share that prefix collapse to one fingerprint.
type Prefix struct {
	Size int
}

// Fingerprint returns the base64 of the first Size bytes of encoded.
func (p Prefix) Fingerprint(_ image.Image, encoded []byte) (Fingerprint, error) {
	if len(encoded) == 0 {
		return "", apperrors.New(apperrors.CodeFingerprint, "empty encoding")
	}
	n := p.Size
	if n <= 0 {
		n = DefaultPrefixSize
	}
	return Fingerprint(base64.StdEncoding.EncodeToString(encoded[:min(len(encoded), n)])), nil
}

// Content hashes the whole encoding with XXH3-128.
type Content struct{}

// Fingerprint returns the hex XXH3-128 digest of encoded.
func (Content) Fingerprint(_ image.Image, encoded []byte) (Fingerprint, error) {
	if len(encoded) == 0 {
		return "", apperrors.New(apperrors.CodeFingerprint, "empty encoding")
	}
	sum := xxh3.Hash128(encoded).Bytes()
	return Fingerprint(hex.EncodeToString(sum[:])), nil
}

// Perceptual uses a 64-bit difference hash, so re-encodings of the same
// picture compare equal even when their bytes differ.
type Perceptual struct{}

// Fingerprint returns the difference hash of img; encoded is ignored.
func (Perceptual) Fingerprint(img image.Image, _ []byte) (Fingerprint, error) {
	if img == nil {
		return "", apperrors.New(apperrors.CodeFingerprint, "nil image")
	}
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeFingerprint, "difference hash")
	}
	return Fingerprint(hash.ToString()), nil
}

// New returns the strategy for a mode name.
func New(mode string) (Fingerprinter, error) {
	switch mode {
	case ModeContent, "":
		return Content{}, nil
	case ModePrefix:
		return Prefix{Size: DefaultPrefixSize}, nil
	case ModePerceptual:
		return Perceptual{}, nil
	default:
		return nil, apperrors.Newf(apperrors.CodeConfigInvalid, "unknown fingerprint mode %q", mode).
			WithMetadata("mode", mode)
	}
}
