package semver

import "testing"

func TestMatchTagSelectsHighestSatisfying(t *testing.T) {
	tags := []string{"v1.0.0", "v1.1.0", "v2.0.0"}

	tag, ok, err := MatchTag(tags, "^1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || tag != "v1.1.0" {
		t.Fatalf("^1.0.0: got %q, %v", tag, ok)
	}

	tag, ok, err = MatchTag(tags, "^2.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || tag != "v2.0.0" {
		t.Fatalf("^2.0.0: got %q, %v", tag, ok)
	}
}

func TestMatchTagNoneSatisfies(t *testing.T) {
	tags := []string{"v1.0.0"}
	_, ok, err := MatchTag(tags, "^3.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no match")
	}
}

func TestSortTagsInvalidSortLower(t *testing.T) {
	tags := []string{"v1.0.0", "not-a-version", "v2.0.0"}
	got := SortTags(tags, true)
	want := []string{"v2.0.0", "v1.0.0", "not-a-version"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSortTagsTieBreaksOnName(t *testing.T) {
	// Parse strips the leading "v", so both tags have equal precedence and
	// the lexicographically higher name ("v1.0.0") must sort first.
	tags := []string{"1.0.0", "v1.0.0"}
	got := SortTags(tags, true)
	if got[0] != "v1.0.0" || got[1] != "1.0.0" {
		t.Fatalf("got %v", got)
	}
}

func TestHighestNonPrerelease(t *testing.T) {
	tags := []string{"v1.0.0", "v2.0.0-rc1", "v1.5.0"}
	tag, ok := HighestNonPrerelease(tags)
	if !ok || tag != "v1.5.0" {
		t.Fatalf("got %q, %v", tag, ok)
	}
}
