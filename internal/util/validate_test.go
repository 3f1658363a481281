package util

import "testing"

func TestIsValidMobile(t *testing.T) {
	tests := []struct {
		name   string
		mobile string
		want   bool
	}{
		{"valid 138", "13800138000", true},
		{"valid 199", "19912345678", true},
		{"too short", "1380013800", false},
		{"too long", "138001380001", false},
		{"bad second digit", "12800138000", false},
		{"not starting with 1", "23800138000", false},
		{"letters", "13800abc000", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidMobile(tt.mobile); got != tt.want {
				t.Errorf("IsValidMobile(%q) = %v, want %v", tt.mobile, got, tt.want)
			}
		})
	}
}

func TestIsValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     bool
	}{
		{"min length", "abcd1234", true},
		{"max length", "a1234567890123456789", true},
		{"mixed case", "PassWord99", true},
		{"too short", "abc1234", false},
		{"too long", "a12345678901234567890", false},
		{"symbols", "abcd1234!", false},
		{"spaces", "abcd 1234", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidPassword(tt.password); got != tt.want {
				t.Errorf("IsValidPassword(%q) = %v, want %v", tt.password, got, tt.want)
			}
		})
	}
}
