package schedule

import (
	"math"
	"sort"

	"adscribe/internal/scene"
	"adscribe/internal/silence"
)

// Match is a scene paired with the silence window that will carry its description.
type Match struct {
	SceneIndex int
	Scene      scene.Interval
	Window     silence.Interval
}

type candidate struct {
	scene, window int
	distance      float64
}

// MatchWindows assigns each window to at most one scene, closest start first.
// Ties go to the earlier window, then the earlier scene. tolerance > 0 rejects
// pairs whose starts are further apart than tolerance seconds. The result is
// sorted by window start.
func MatchWindows(scenes []scene.Interval, windows []silence.Interval, tolerance float64) []Match {
	candidates := make([]candidate, 0, len(scenes)*len(windows))
	for si, sc := range scenes {
		for wi, w := range windows {
			d := math.Abs(w.Start - sc.Start)
			if tolerance > 0 && d > tolerance {
				continue
			}
			candidates = append(candidates, candidate{scene: si, window: wi, distance: d})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		if windows[a.window].Start != windows[b.window].Start {
			return windows[a.window].Start < windows[b.window].Start
		}
		return a.scene < b.scene
	})

	sceneTaken := make([]bool, len(scenes))
	windowTaken := make([]bool, len(windows))
	var matches []Match
	for _, c := range candidates {
		if sceneTaken[c.scene] || windowTaken[c.window] {
			continue
		}
		sceneTaken[c.scene] = true
		windowTaken[c.window] = true
		matches = append(matches, Match{SceneIndex: c.scene, Scene: scenes[c.scene], Window: windows[c.window]})
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Window.Start < matches[j].Window.Start
	})
	return matches
}
