package solvedac

import (
	"fmt"
	"strings"
)

// Tier groups on solved.ac. Tiers 1-30 split into six groups of five
// divisions each; 31 is Master, 0 is unrated.
var tierGroups = []string{"Bronze", "Silver", "Gold", "Platinum", "Diamond", "Ruby"}

// Divisions within a group, highest tier number first within the
// group maps to I.
var tierDivisions = []string{"V", "IV", "III", "II", "I"}

// TierName renders a numeric tier as its display name.
func TierName(tier int) string {
	switch {
	case tier <= 0:
		return "Unrated"
	case tier >= 31:
		return "Master"
	}
	group := tierGroups[(tier-1)/5]
	division := tierDivisions[(tier-1)%5]
	return group + " " + division
}

// Section renders the problem-solving block appended to the daily
// report body.
func Section(u *User) string {
	var b strings.Builder
	b.WriteString("## 🧩 Problem Solving\n\n")
	fmt.Fprintf(&b, "- **Tier**: %s (rating %d)\n", TierName(u.Tier), u.Rating)
	fmt.Fprintf(&b, "- **Solved**: %d problems\n", u.SolvedCount)
	if u.MaxStreak > 0 {
		fmt.Fprintf(&b, "- **Longest streak**: %d days\n", u.MaxStreak)
	}
	if u.Rank > 0 {
		fmt.Fprintf(&b, "- **Rank**: #%d\n", u.Rank)
	}
	return strings.TrimRight(b.String(), "\n")
}
