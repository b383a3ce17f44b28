package core

import (
	"strings"
	"testing"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Description: "ok",
		Amount:      Money{Cents: -100},
		Category:    "Cat",
		Month:       1,
		Year:        2025,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Description: "a", Amount: Money{Cents: 1}, Category: "c", Month: 0, Year: 2025},
		{Description: "a", Amount: Money{Cents: 1}, Category: "c", Month: 13, Year: 2025},
		{Description: "a", Amount: Money{Cents: 1}, Category: "c", Month: 1, Year: 0},
		{Description: " ", Amount: Money{Cents: 1}, Category: "c", Month: 1, Year: 2025},
		{Description: strings.Repeat("x", 201), Amount: Money{Cents: 1}, Category: "c", Month: 1, Year: 2025},
		{Description: "a", Amount: Money{Cents: 0}, Category: "c", Month: 1, Year: 2025},
		{Description: "a", Amount: Money{Cents: 1}, Category: "", Month: 1, Year: 2025},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestPeriodValidate(t *testing.T) {
	cases := []struct {
		p  Period
		ok bool
	}{
		{Period{Year: 2025, Month: 1}, true},
		{Period{Year: 2025, Month: 12}, true},
		{Period{Year: 2025, Month: 0}, false},
		{Period{Year: 0, Month: 5}, false},
	}
	for i, tc := range cases {
		err := tc.p.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionHasInstallment(t *testing.T) {
	if (Transaction{}).HasInstallment() {
		t.Fatalf("empty label should be absent")
	}
	if !(Transaction{Installment: "1/2"}).HasInstallment() {
		t.Fatalf("label should be present")
	}
	if got := (Transaction{Month: 3, Year: 2024}).Period(); got != (Period{Year: 2024, Month: 3}) {
		t.Fatalf("unexpected period %+v", got)
	}
}
