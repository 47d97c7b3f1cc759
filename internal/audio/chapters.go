package audio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"digestcast/internal/newsletter"
)

// BuildChapters places one chapter at the start of each track. Repeated
// titles are numbered from the second occurrence on.
func BuildChapters(tracks []newsletter.MessageTrack) []newsletter.Chapter {
	chapters := make([]newsletter.Chapter, 0, len(tracks))
	used := make(map[string]bool, len(tracks))
	var offset time.Duration
	for _, track := range tracks {
		title := track.DisplayName
		for n := 2; used[title]; n++ {
			title = fmt.Sprintf("%s (%d)", track.DisplayName, n)
		}
		used[title] = true
		chapters = append(chapters, newsletter.Chapter{Title: title, Start: offset})
		offset += track.Duration
	}
	return chapters
}

// TotalDuration sums the track durations.
func TotalDuration(tracks []newsletter.MessageTrack) time.Duration {
	var total time.Duration
	for _, track := range tracks {
		total += track.Duration
	}
	return total
}

// Title names the audiobook after the window it covers.
func Title(window newsletter.Window) string {
	start := window.Start
	last := window.End.Add(-time.Nanosecond).In(start.Location())
	if last.Before(start) {
		last = start
	}
	first := start.Format(time.DateOnly)
	end := last.Format(time.DateOnly)
	if first == end {
		return "Daily Digest for " + end
	}
	return "Daily Digest for " + first + " to " + end
}

// TrackMeta carries the ordering keys of a track.
type TrackMeta struct {
	Track      newsletter.MessageTrack
	Sender     string
	ReceivedAt time.Time
}

// OrderTracks sorts by the sender's registry position, then receipt time,
// then message id. Senders with a negative position sort last.
func OrderTracks(items []TrackMeta, position func(sender string) int) []newsletter.MessageTrack {
	rank := func(sender string) int {
		if position == nil {
			return 0
		}
		if pos := position(sender); pos >= 0 {
			return pos
		}
		return math.MaxInt
	}
	sorted := append([]TrackMeta(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ri, rj := rank(sorted[i].Sender), rank(sorted[j].Sender)
		if ri != rj {
			return ri < rj
		}
		if !sorted[i].ReceivedAt.Equal(sorted[j].ReceivedAt) {
			return sorted[i].ReceivedAt.Before(sorted[j].ReceivedAt)
		}
		return sorted[i].Track.MessageID < sorted[j].Track.MessageID
	})
	tracks := make([]newsletter.MessageTrack, len(sorted))
	for i, item := range sorted {
		tracks[i] = item.Track
	}
	return tracks
}
