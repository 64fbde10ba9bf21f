package model

import (
	"testing"
	"time"
)

func TestDiscountText(t *testing.T) {
	pct := 25.0
	flat := 350
	cases := []struct {
		name string
		p    Promotion
		want string
	}{
		{"percent", Promotion{PercentOff: &pct}, "25% off"},
		{"flat", Promotion{FlatOffCents: &flat}, "$3.50 off"},
		{"percent wins", Promotion{PercentOff: &pct, FlatOffCents: &flat}, "25% off"},
		{"none", Promotion{}, "a special discount"},
	}
	for _, tc := range cases {
		if got := tc.p.DiscountText(); got != tc.want {
			t.Errorf("%s: DiscountText() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestVerificationCodeState(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	vc := VerificationCode{ExpiresAt: now.Add(time.Minute)}
	if vc.Used() || vc.Expired(now) {
		t.Fatalf("fresh code reported used=%v expired=%v", vc.Used(), vc.Expired(now))
	}
	used := now
	vc.UsedAt = &used
	if !vc.Used() {
		t.Fatal("expected code to be used")
	}
	if !vc.Expired(now.Add(2 * time.Minute)) {
		t.Fatal("expected code to be expired")
	}
}

func TestRoleName(t *testing.T) {
	if RoleName(RoleAdmin) != "admin" || RoleName(RoleRegistered) != "registered" || RoleName(9) != "" {
		t.Fatal("unexpected role names")
	}
	if (User{RoleID: RoleAdmin}).Role() != "admin" {
		t.Fatal("User.Role should map role id")
	}
}
