// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sigsdk

// RenderFlags select the bitmap output encoding.
type RenderFlags uint32

const (
	RenderOutputBase64 RenderFlags = 1 << iota
	RenderColor32BPP
	RenderBackgroundTransparent
)

// RenderOptions parameterize Signature.RenderBitmap.
type RenderOptions struct {
	Format          string      `json:"format"`
	Width           int         `json:"width"`
	Height          int         `json:"height"`
	InkWidth        float64     `json:"inkWidth"`
	InkColor        uint32      `json:"inkColor"`
	BackgroundColor uint32      `json:"backgroundColor"`
	Flags           RenderFlags `json:"flags"`
	PaddingX        int         `json:"paddingX"`
	PaddingY        int         `json:"paddingY"`
}

// TimeZone selects how Signature.GetWhen reports the capture time.
type TimeZone string

const (
	TimeLocal TimeZone = "local"
	TimeUTC   TimeZone = "utc"
)
