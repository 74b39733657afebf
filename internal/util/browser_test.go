package util

import "testing"

func TestBrowserCommand(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"windows": "rundll32",
		"darwin":  "open",
		"linux":   "xdg-open",
		"freebsd": "xdg-open",
	}
	for goos, want := range cases {
		cmd := browserCommand(goos, "http://localhost:20262")
		if len(cmd.Args) == 0 || cmd.Args[0] != want {
			t.Fatalf("%s: want %s, got %v", goos, want, cmd.Args)
		}
		if cmd.Args[len(cmd.Args)-1] != "http://localhost:20262" {
			t.Fatalf("%s: url not passed: %v", goos, cmd.Args)
		}
	}
}

func TestBrowseURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		store, file string
		want        string
	}{
		{"", "", "http://localhost:8080/api/stores"},
		{"40316", "", "http://localhost:8080/api/stores/40316/files"},
		{"40316", "23-1.csv", "http://localhost:8080/api/stores/40316/files/23-1.csv"},
		{"40316", "門市 首購.csv", "http://localhost:8080/api/stores/40316/files/%E9%96%80%E5%B8%82%20%E9%A6%96%E8%B3%BC.csv"},
	}
	for _, tc := range cases {
		got, err := BrowseURL(8080, tc.store, tc.file)
		if err != nil || got != tc.want {
			t.Fatalf("BrowseURL(%q, %q) want=%s got=%s err=%v", tc.store, tc.file, tc.want, got, err)
		}
	}

	for _, bad := range [][2]string{{"..", ""}, {"a/b", ""}, {"1", "../x.csv"}, {"1", "notes.txt"}, {"", "a.csv"}} {
		if _, err := BrowseURL(8080, bad[0], bad[1]); err == nil {
			t.Fatalf("BrowseURL(%q, %q) should fail", bad[0], bad[1])
		}
	}
}
