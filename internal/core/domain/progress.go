package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// DetectionLayers is the number of algorithm layers the backend reports on.
const DetectionLayers = 3

const (
	DefaultStartMarker    = "BẮT ĐẦU PHÂN TÍCH ĐẠO VĂN"
	DefaultCompleteMarker = "HOÀN THÀNH PHÂN TÍCH ĐẠO VĂN"
)

type ProgressKind string

const (
	ProgressStatus   ProgressKind = "status"
	ProgressStarted  ProgressKind = "started"
	ProgressComplete ProgressKind = "complete"
)

// ProgressEvent is one line of backend-reported progress.
type ProgressEvent struct {
	Seq        int          `json:"seq"`
	Text       string       `json:"text"`
	Kind       ProgressKind `json:"kind"`
	Layer      int          `json:"layer,omitempty"`
	Percent    int          `json:"percent,omitempty"`
	ReceivedAt time.Time    `json:"received_at"`
}

func (e ProgressEvent) IsTerminal() bool {
	return e.Kind == ProgressComplete
}

// MarkerSet decides which feed lines are the global start/finish markers.
type MarkerSet struct {
	Start    []string
	Complete []string
}

func DefaultMarkers() MarkerSet {
	return MarkerSet{
		Start:    []string{DefaultStartMarker, "analysis started"},
		Complete: []string{DefaultCompleteMarker, "analysis complete"},
	}
}

// Classify matches a marker against the whole line, ignoring case and any
// surrounding punctuation, so a layer line that mentions a marker phrase
// stays a status line.
func (m MarkerSet) Classify(text string) ProgressKind {
	normalized := trimDecoration(text)
	if normalized == "" {
		return ProgressStatus
	}
	for _, marker := range m.Complete {
		if matchesMarker(normalized, marker) {
			return ProgressComplete
		}
	}
	for _, marker := range m.Start {
		if matchesMarker(normalized, marker) {
			return ProgressStarted
		}
	}
	return ProgressStatus
}

func matchesMarker(normalized, marker string) bool {
	marker = trimDecoration(marker)
	return marker != "" && strings.EqualFold(normalized, marker)
}

func trimDecoration(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var (
	layerPattern   = regexp.MustCompile(`(?i)\blayer\s*(\d+)`)
	percentPattern = regexp.MustCompile(`(\d{1,3})\s*%`)
	layerDoneWords = []string{"hoàn thành", "complete", "done"}
)

// NewProgressEvent builds an event and derives its kind, layer and percent.
func NewProgressEvent(seq int, text string, markers MarkerSet, at time.Time) ProgressEvent {
	event := ProgressEvent{
		Seq:        seq,
		Text:       text,
		Kind:       markers.Classify(text),
		ReceivedAt: at,
	}
	if event.Kind != ProgressStatus {
		return event
	}

	if m := layerPattern.FindStringSubmatch(text); len(m) == 2 {
		event.Layer, _ = strconv.Atoi(m[1])
	}
	if m := percentPattern.FindStringSubmatch(text); len(m) == 2 {
		pct, _ := strconv.Atoi(m[1])
		event.Percent = min(pct, 100)
	} else if event.Layer > 0 && hasAnyFold(text, layerDoneWords) {
		event.Percent = 100
	}
	return event
}

func hasAnyFold(text string, words []string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// OverallProgress estimates completion in [0,1] from an ordered event log.
func OverallProgress(events []ProgressEvent) float64 {
	progress := 0.0
	for _, e := range events {
		switch {
		case e.Kind == ProgressComplete:
			return 1
		case e.Layer > 0 && e.Layer <= DetectionLayers:
			p := (float64(e.Layer-1) + float64(e.Percent)/100) / DetectionLayers
			if p > progress {
				progress = p
			}
		}
	}
	return progress
}

type FeedEventKind string

const (
	FeedMessage FeedEventKind = "message"
	FeedClosed  FeedEventKind = "closed"
	FeedError   FeedEventKind = "error"
)

// FeedEvent is what a progress feed pushes to subscribers. Closed and Error
// are transport terminals, distinct from a ProgressComplete message.
type FeedEvent struct {
	Kind     FeedEventKind
	Progress ProgressEvent
	Err      error
}

func (e FeedEvent) IsTransportTerminal() bool {
	return e.Kind == FeedClosed || e.Kind == FeedError
}
