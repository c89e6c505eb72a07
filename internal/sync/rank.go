package sync

import (
	"sort"
	"strconv"
	"strings"

	"github.com/sakif/intra-rank/internal/model"
)

// Known enrollment years, newest first. The upstream begin_at is a date
// string; membership is decided by plain substring containment, which is
// how the promo has always been derived — a begin date outside this range
// lands in the unknown bucket (0) and is still ranked there rather than
// dropped.
var promoYears = []int{2025, 2024, 2023, 2022, 2021, 2020, 2019, 2018, 2017, 2016}

// promoOf derives the enrollment year from a begin_at date string.
// Returns 0 when no known year appears in the string.
func promoOf(beginAt string) int {
	for _, year := range promoYears {
		if strings.Contains(beginAt, strconv.Itoa(year)) {
			return year
		}
	}
	return 0
}

// Rank partitions the fetched records by promo, orders each partition by
// level descending, and assigns dense 1-based ranks.
//
// INVARIANTS:
//   - within one partition the assigned ranks are exactly {1..N}
//   - higher level always means lower (better) rank number
//   - equal levels keep their input order (sort.SliceStable), which is the
//     upstream's -level sort order
//
// The concatenation order of partitions in the result is promo order
// (newest first); callers must not rely on it — only the per-record rank
// is meaningful.
func Rank(campusID int, users []model.CursusUser) []model.RankedUser {
	byPromo := make(map[int][]model.RankedUser)

	for _, u := range users {
		promo := promoOf(u.BeginAt)
		byPromo[promo] = append(byPromo[promo], model.RankedUser{
			Login:    u.User.Login,
			Name:     u.User.DisplayName,
			Avatar:   u.User.Image.Versions.Medium,
			Level:    u.Level,
			CampusID: campusID,
			Promo:    promo,
		})
	}

	ranked := make([]model.RankedUser, 0, len(users))
	for _, promo := range promoYears {
		ranked = append(ranked, rankPartition(byPromo[promo])...)
	}
	// Unknown-promo bucket last.
	ranked = append(ranked, rankPartition(byPromo[0])...)

	return ranked
}

// rankPartition stable-sorts one cohort by level descending and stamps
// 1-based ranks.
func rankPartition(users []model.RankedUser) []model.RankedUser {
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Level > users[j].Level
	})
	for i := range users {
		users[i].Rank = i + 1
	}
	return users
}
