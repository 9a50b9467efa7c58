package models

import "encoding/base64"

const (
	DefaultContentType = "image/jpeg"

	ExtremeTargetBytes  = 3 * 1024   // 3 KB blocky target
	StandardTargetBytes = 100 * 1024 // 100 KB target
)

// Image is a fetched (or cached) image payload
type Image struct {
	Data        []byte
	ContentType string
	FromCache   bool // True when served from the cache without touching the network
}

// Size returns the payload length in bytes
func (i *Image) Size() int {
	return len(i.Data)
}

// Resolution describes how a reference was resolved
type Resolution struct {
	Original string   `json:"original"`
	Resolved string   `json:"resolved"`
	Kind     Kind     `json:"kind"`
	Platform Platform `json:"platform,omitempty"`
	Stage    string   `json:"stage"` // passthrough, platform, generic, identity, empty
}

// Budget is a target byte size paired with the policy used to reach it
type Budget struct {
	Variant     Variant
	TargetBytes int
}

// ExtremeBudget returns the default EXTREME budget
func ExtremeBudget() Budget {
	return Budget{Variant: VariantExtreme, TargetBytes: ExtremeTargetBytes}
}

// StandardBudget returns the default STANDARD budget
func StandardBudget() Budget {
	return Budget{Variant: VariantStandard, TargetBytes: StandardTargetBytes}
}

// EncodedImage is the JPEG produced by the compressor
type EncodedImage struct {
	Data        []byte
	Width       int
	Height      int
	Quality     int
	Variant     Variant
	TargetBytes int
}

// Size returns the encoded length in bytes
func (e *EncodedImage) Size() int {
	return len(e.Data)
}

// WithinBudget reports whether the encoded size satisfies the target
func (e *EncodedImage) WithinBudget() bool {
	return len(e.Data) <= e.TargetBytes
}

// Base64 returns the standard base64 encoding of the JPEG bytes
func (e *EncodedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(e.Data)
}

// DataURL returns a data URL suitable for an img src attribute
func (e *EncodedImage) DataURL() string {
	return "data:image/jpeg;base64," + e.Base64()
}
