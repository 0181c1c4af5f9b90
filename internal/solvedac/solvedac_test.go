package solvedac

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestUserShow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/user/show" {
			t.Errorf("path = %s, want /user/show", r.URL.Path)
		}
		if got := r.URL.Query().Get("handle"); got != "octocat" {
			t.Errorf("handle = %s, want octocat", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"handle":"octocat","tier":14,"rating":1650,"class":4,"solvedCount":412,"maxStreak":37,"rank":1234}`)
	}))
	defer server.Close()

	client := NewClient().WithBaseURL(server.URL).WithRetry(0, time.Millisecond)
	user, err := client.UserShow(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("UserShow() error = %v", err)
	}

	if user.Tier != 14 {
		t.Errorf("Tier = %d, want 14", user.Tier)
	}
	if user.SolvedCount != 412 {
		t.Errorf("SolvedCount = %d, want 412", user.SolvedCount)
	}
	if user.MaxStreak != 37 {
		t.Errorf("MaxStreak = %d, want 37", user.MaxStreak)
	}
}

func TestUserShowNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient().WithBaseURL(server.URL).WithRetry(0, time.Millisecond)
	_, err := client.UserShow(context.Background(), "ghost")
	if err == nil {
		t.Fatal("UserShow() error = nil, want not found")
	}
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Errorf("error = %v, want *NotFoundError", err)
	}
}

func TestUserShowRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"handle":"octocat","tier":3}`)
	}))
	defer server.Close()

	client := NewClient().WithBaseURL(server.URL).WithRetry(3, time.Millisecond)
	user, err := client.UserShow(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("UserShow() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if user.Tier != 3 {
		t.Errorf("Tier = %d, want 3", user.Tier)
	}
}

func TestUserShowEmptyHandle(t *testing.T) {
	if _, err := NewClient().UserShow(context.Background(), ""); err == nil {
		t.Fatal("UserShow(\"\") should error")
	}
}

func TestTierName(t *testing.T) {
	tests := []struct {
		tier int
		want string
	}{
		{0, "Unrated"},
		{1, "Bronze V"},
		{5, "Bronze I"},
		{6, "Silver V"},
		{11, "Gold V"},
		{14, "Gold II"},
		{16, "Platinum V"},
		{21, "Diamond V"},
		{26, "Ruby V"},
		{30, "Ruby I"},
		{31, "Master"},
	}
	for _, tt := range tests {
		if got := TierName(tt.tier); got != tt.want {
			t.Errorf("TierName(%d) = %s, want %s", tt.tier, got, tt.want)
		}
	}
}

func TestSection(t *testing.T) {
	u := &User{Handle: "octocat", Tier: 14, Rating: 1650, SolvedCount: 412, MaxStreak: 37, Rank: 1234}
	section := Section(u)

	for _, want := range []string{
		"## 🧩 Problem Solving",
		"Gold II",
		"412 problems",
		"37 days",
		"#1234",
	} {
		if !strings.Contains(section, want) {
			t.Errorf("section lacks %q:\n%s", want, section)
		}
	}
}

func TestSectionOmitsZeroFields(t *testing.T) {
	section := Section(&User{Handle: "new", Tier: 1, SolvedCount: 2})
	if strings.Contains(section, "streak") {
		t.Errorf("section should omit a zero streak:\n%s", section)
	}
	if strings.Contains(section, "Rank") {
		t.Errorf("section should omit a zero rank:\n%s", section)
	}
}
