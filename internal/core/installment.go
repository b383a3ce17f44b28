package core

import (
	"regexp"
	"strconv"
	"strings"
)

// Installment is the parsed form of a label such as "parcela 3/12".
// The zero value means the label was absent or unparseable.
type Installment struct {
	Current int
	Total   int
}

// Tier orders open installments for display: final installments first,
// then penultimate ones, then everything else.
type Tier int

const (
	TierFinal Tier = iota + 1
	TierPenultimate
	TierOther
)

func (t Tier) String() string {
	switch t {
	case TierFinal:
		return "final"
	case TierPenultimate:
		return "penultimate"
	case TierOther:
		return "other"
	default:
		return "unknown"
	}
}

var (
	installmentPrefix = regexp.MustCompile(`^parcela\s*`)
	installmentSep    = regexp.MustCompile(`[/\s\v\p{Z}]+`)
)

// ParseInstallment extracts the current and total installment numbers from a
// free-text label. It never fails: anything it cannot read becomes 0.
//
//	ParseInstallment("parcela 3/12") -> {3, 12}
//	ParseInstallment("3 12")         -> {3, 12}
//	ParseInstallment("5/")           -> {5, 0}
//	ParseInstallment("abc/def")      -> {0, 0}
func ParseInstallment(label string) Installment {
	if label == "" {
		return Installment{}
	}
	cleaned := strings.ToLower(strings.TrimSpace(label))
	cleaned = installmentPrefix.ReplaceAllString(cleaned, "")

	// A leading separator yields an empty first token, so "/12" has no
	// current installment.
	parts := installmentSep.Split(cleaned, -1)

	var in Installment
	if len(parts) > 0 {
		in.Current = leadingInt(parts[0])
	}
	if len(parts) > 1 {
		in.Total = leadingInt(parts[1])
	}
	return in
}

// leadingInt reads an optional sign followed by the leading decimal digits
// of s ("03" -> 3, "3x" -> 3, "x3" -> 0). No digits or overflow gives 0.
func leadingInt(s string) int {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	j := i
	for j < len(s) && s[j] >= '0' && s[j] <= '9' {
		j++
	}
	if j == i {
		return 0
	}
	n, err := strconv.Atoi(s[:j])
	if err != nil {
		return 0
	}
	return n
}

// IsOpen reports whether the plan is still being paid: both numbers are
// positive and the current installment does not exceed the total.
func (in Installment) IsOpen() bool {
	return in.Current > 0 && in.Total > 0 && in.Current <= in.Total
}

// IsFinal reports whether this is the last installment of the plan.
func (in Installment) IsFinal() bool {
	return in.Current == in.Total
}

// IsPenultimate reports whether exactly one installment remains after this one.
func (in Installment) IsPenultimate() bool {
	return in.Current == in.Total-1
}

func (in Installment) Tier() Tier {
	switch {
	case in.IsFinal():
		return TierFinal
	case in.IsPenultimate():
		return TierPenultimate
	default:
		return TierOther
	}
}

// Remaining is the number of installments still due after the current one.
func (in Installment) Remaining() int {
	if !in.IsOpen() {
		return 0
	}
	return in.Total - in.Current
}
