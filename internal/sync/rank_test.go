package sync

import (
	"fmt"
	"testing"

	"github.com/sakif/intra-rank/internal/model"
)

// cursusUser builds a minimal upstream record for ranking tests.
func cursusUser(login string, level float64, beginAt string) model.CursusUser {
	var u model.CursusUser
	u.User.Login = login
	u.User.DisplayName = "User " + login
	u.Level = level
	u.BeginAt = beginAt
	u.Grade = "Cadet"
	return u
}

func TestPromoOf(t *testing.T) {
	tests := []struct {
		beginAt string
		want    int
	}{
		{"2022-08-29T07:42:00.000Z", 2022},
		{"2016-01-04T09:00:00.000Z", 2016},
		{"2025-09-01T08:00:00.000Z", 2025},
		{"2015-10-05T08:00:00.000Z", 0}, // before the known range
		{"", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		if got := promoOf(tt.beginAt); got != tt.want {
			t.Errorf("promoOf(%q) = %d, want %d", tt.beginAt, got, tt.want)
		}
	}
}

// Ranks within one cohort must be exactly {1..N} — no gaps, no duplicates.
func TestRank_Density(t *testing.T) {
	var users []model.CursusUser
	for i := 0; i < 25; i++ {
		users = append(users, cursusUser(fmt.Sprintf("u%02d", i), float64(i%7), "2023-08-29T07:42:00.000Z"))
	}

	ranked := Rank(55, users)
	if len(ranked) != 25 {
		t.Fatalf("Rank() returned %d records, want 25", len(ranked))
	}

	seen := make(map[int]bool)
	for _, u := range ranked {
		if u.Promo != 2023 {
			t.Errorf("user %s promo = %d, want 2023", u.Login, u.Promo)
		}
		if seen[u.Rank] {
			t.Errorf("duplicate rank %d", u.Rank)
		}
		seen[u.Rank] = true
	}
	for r := 1; r <= 25; r++ {
		if !seen[r] {
			t.Errorf("missing rank %d", r)
		}
	}
}

// Higher level must always mean a lower rank number, and equal levels must
// keep their input order (stable sort).
func TestRank_MonotonicAndStable(t *testing.T) {
	users := []model.CursusUser{
		cursusUser("alice", 12.5, "2022-08-29T07:42:00.000Z"),
		cursusUser("bob", 9.1, "2022-08-29T07:42:00.000Z"),
		cursusUser("carol", 9.1, "2022-08-29T07:42:00.000Z"), // tie with bob, listed after
		cursusUser("dave", 15.0, "2022-08-29T07:42:00.000Z"),
	}

	ranked := Rank(55, users)

	byLogin := make(map[string]model.RankedUser)
	for _, u := range ranked {
		byLogin[u.Login] = u
	}

	if byLogin["dave"].Rank != 1 {
		t.Errorf("dave rank = %d, want 1", byLogin["dave"].Rank)
	}
	if byLogin["alice"].Rank != 2 {
		t.Errorf("alice rank = %d, want 2", byLogin["alice"].Rank)
	}
	// Tie broken by input order: bob before carol.
	if byLogin["bob"].Rank != 3 {
		t.Errorf("bob rank = %d, want 3", byLogin["bob"].Rank)
	}
	if byLogin["carol"].Rank != 4 {
		t.Errorf("carol rank = %d, want 4", byLogin["carol"].Rank)
	}
}

// Cohorts are ranked independently — each partition starts again at 1.
func TestRank_PartitionsIndependent(t *testing.T) {
	users := []model.CursusUser{
		cursusUser("a", 10, "2021-08-29T07:42:00.000Z"),
		cursusUser("b", 5, "2021-08-29T07:42:00.000Z"),
		cursusUser("c", 8, "2024-08-29T07:42:00.000Z"),
	}

	ranked := Rank(55, users)

	byLogin := make(map[string]model.RankedUser)
	for _, u := range ranked {
		byLogin[u.Login] = u
	}

	if byLogin["a"].Rank != 1 || byLogin["b"].Rank != 2 {
		t.Errorf("2021 cohort ranks = %d,%d, want 1,2", byLogin["a"].Rank, byLogin["b"].Rank)
	}
	if byLogin["c"].Rank != 1 {
		t.Errorf("2024 cohort rank = %d, want 1", byLogin["c"].Rank)
	}
}

// Records with an unrecognised begin date land in the promo-0 bucket and
// are still ranked, never dropped.
func TestRank_UnknownPromoCarriedThrough(t *testing.T) {
	users := []model.CursusUser{
		cursusUser("old1", 21.0, "2014-11-03T09:00:00.000Z"),
		cursusUser("old2", 18.0, "2013-11-03T09:00:00.000Z"),
		cursusUser("now", 3.0, "2024-08-29T07:42:00.000Z"),
	}

	ranked := Rank(55, users)
	if len(ranked) != 3 {
		t.Fatalf("Rank() returned %d records, want 3 (unknown promo must not be dropped)", len(ranked))
	}

	byLogin := make(map[string]model.RankedUser)
	for _, u := range ranked {
		byLogin[u.Login] = u
	}

	if byLogin["old1"].Promo != 0 || byLogin["old2"].Promo != 0 {
		t.Errorf("unknown begin dates should map to promo 0, got %d and %d",
			byLogin["old1"].Promo, byLogin["old2"].Promo)
	}
	if byLogin["old1"].Rank != 1 || byLogin["old2"].Rank != 2 {
		t.Errorf("promo-0 bucket ranks = %d,%d, want 1,2", byLogin["old1"].Rank, byLogin["old2"].Rank)
	}
}

func TestRank_Empty(t *testing.T) {
	ranked := Rank(55, nil)
	if len(ranked) != 0 {
		t.Errorf("Rank(nil) returned %d records, want 0", len(ranked))
	}
}
