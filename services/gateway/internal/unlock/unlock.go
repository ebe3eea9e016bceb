// Package unlock decides which videos of a course a learner may open.
//
// The rule is positional: the first video is always open, and every video up
// to one past the furthest completed video is open. Completing a video out of
// order still pushes the frontier forward from that video's position.
package unlock

// Map returns unlock flags keyed by video ID. orderedIDs must be the course's
// videos in catalog order (chapter position, then video position). completed
// reports whether the learner has finished the given video.
func Map(orderedIDs []string, completed func(id string) bool) map[string]bool {
	lastCompleted := -1
	for i, id := range orderedIDs {
		if completed(id) {
			lastCompleted = i
		}
	}

	out := make(map[string]bool, len(orderedIDs))
	for i, id := range orderedIDs {
		out[id] = i == 0 || i <= lastCompleted+1
	}
	return out
}

// NextUnwatched returns the first video in catalog order that is unlocked but
// not completed, or "" when the learner has finished everything.
func NextUnwatched(orderedIDs []string, completed func(id string) bool) string {
	m := Map(orderedIDs, completed)
	for _, id := range orderedIDs {
		if m[id] && !completed(id) {
			return id
		}
	}
	return ""
}
