package textutil

import "testing"

func TestVideoStem(t *testing.T) {
	tests := map[string]string{
		"/media/in/Mi Película.mkv":  "Mi Película",
		"  /tmp/clip.final.mp4  ":    "clip.final",
		"/in/a:b*c.mp4":              "a-b-c",
		`/in/what? "quoted" <x>.mov`: "what quoted x",
		"/in/bell\a.mp4":             "bell",
		"/in/.mp4":                   "video",
		"":                           "video",
		"/in/...":                    "video",
	}
	for in, want := range tests {
		if got := VideoStem(in); got != want {
			t.Errorf("VideoStem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWorkToken(t *testing.T) {
	tests := map[string]string{
		"Mi Película 01": "mi_pelicula_01",
		"Ñandú":          "nandu",
		"--__--":         "job",
		"":               "job",
		"job-42_a":       "job-42_a",
		"日本":             "job",
	}
	for in, want := range tests {
		if got := WorkToken(in); got != want {
			t.Errorf("WorkToken(%q) = %q, want %q", in, got, want)
		}
	}
}
