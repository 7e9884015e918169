package audit

import (
	"sort"
	"time"

	"github.com/fastygo/jira-auditor/domain"
)

const day = 24 * time.Hour

// Cutoff returns now minus the threshold in whole 24h days.
func Cutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * day)
}

// DaysInactive counts whole days between lastLogin and now.
func DaysInactive(lastLogin, now time.Time) int {
	elapsed := now.Sub(lastLogin)
	if elapsed < 0 {
		return 0
	}
	return int(elapsed / day)
}

// Classify splits users into inactive records (known login strictly before
// cutoff) and users whose last login is unknown. Input order is kept.
func Classify(users []domain.UserAccount, cutoff, now time.Time) ([]domain.InactivityRecord, []domain.UserAccount) {
	inactive := make([]domain.InactivityRecord, 0)
	undetermined := make([]domain.UserAccount, 0)
	for _, u := range users {
		if !u.HasKnownLogin() {
			undetermined = append(undetermined, u)
			continue
		}
		if !u.LastLoginTime.Before(cutoff) {
			continue
		}
		last := *u.LastLoginTime
		inactive = append(inactive, domain.InactivityRecord{
			Username:      u.Username,
			LastLoginTime: &last,
			DaysInactive:  DaysInactive(last, now),
		})
	}
	return inactive, undetermined
}

// SortByInactivity orders records by DaysInactive descending; ties keep their order.
func SortByInactivity(records []domain.InactivityRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].DaysInactive > records[j].DaysInactive
	})
}
