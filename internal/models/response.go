package models

import (
	"net/http"

	"tracker.junat.live/internal/clock"
)

// ResponseVersion is stamped on every API envelope.
const ResponseVersion = 2

// ResponseModel is the JSON envelope returned by every API endpoint.
type ResponseModel struct {
	Code        int    `json:"code"`
	CurrentTime int64  `json:"currentTime"`
	Data        any    `json:"data,omitempty"`
	Text        string `json:"text"`
	Version     int    `json:"version"`
}

// ListData wraps a list of entries.
type ListData[T any] struct {
	List []T `json:"list"`
}

// EntryData wraps a single entry.
type EntryData[T any] struct {
	Entry T `json:"entry"`
}

func ResponseCurrentTime(c clock.Clock) int64 {
	return c.NowUnixMilli()
}

func NewOKResponse(data any, c clock.Clock) ResponseModel {
	return ResponseModel{
		Code:        http.StatusOK,
		CurrentTime: ResponseCurrentTime(c),
		Data:        data,
		Text:        "OK",
		Version:     ResponseVersion,
	}
}

func NewListResponse[T any](list []T, c clock.Clock) ResponseModel {
	if list == nil {
		list = []T{}
	}
	return NewOKResponse(ListData[T]{List: list}, c)
}

func NewEntryResponse[T any](entry T, c clock.Clock) ResponseModel {
	return NewOKResponse(EntryData[T]{Entry: entry}, c)
}
