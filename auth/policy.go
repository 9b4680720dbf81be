package auth

import (
	"unicode"
	"unicode/utf8"

	"github.com/nbutton23/zxcvbn-go"
)

const (
	// MinAcceptedScore is the lowest score a master password may have.
	MinAcceptedScore = 3
	// MaxScore is the best possible score.
	MaxScore = 5

	minLength    = 8
	strongLength = 12
)

// Criterion names one unmet requirement of the strength policy.
type Criterion string

const (
	CriterionMinLength Criterion = "min_length"
	CriterionUppercase Criterion = "uppercase"
	CriterionLowercase Criterion = "lowercase"
	CriterionDigit     Criterion = "digit"
	CriterionSymbol    Criterion = "symbol"
)

// Label is the coarse strength grade for a score.
type Label string

const (
	LabelVeryWeak   Label = "very_weak"
	LabelWeak       Label = "weak"
	LabelFair       Label = "fair"
	LabelGood       Label = "good"
	LabelStrong     Label = "strong"
	LabelVeryStrong Label = "very_strong"
)

var labels = [...]Label{LabelVeryWeak, LabelWeak, LabelFair, LabelGood, LabelStrong, LabelVeryStrong}

// Estimate is zxcvbn's opinion of the password. It is shown to the user
// but never decides acceptance.
type Estimate struct {
	Score     int
	Entropy   float64
	CrackTime string
}

// Strength is the result of CheckStrength.
type Strength struct {
	Score    int
	Label    Label
	Feedback []Criterion
	Estimate Estimate
}

// Acceptable reports whether the password may be used as a master password.
func (s Strength) Acceptable() bool {
	return s.Score >= MinAcceptedScore
}

// CheckStrength scores pw: two points for 12+ characters (one for 8 to 11),
// plus one each for an uppercase letter, a lowercase letter, a digit and a
// symbol, capped at MaxScore. Length is counted in characters, not bytes.
func CheckStrength(pw string) Strength {
	var s Strength

	switch n := utf8.RuneCountInString(pw); {
	case n >= strongLength:
		s.Score += 2
	case n >= minLength:
		s.Score++
	default:
		s.Feedback = append(s.Feedback, CriterionMinLength)
	}

	var upper, lower, digit, symbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsNumber(r):
			symbol = true
		}
	}

	for _, c := range []struct {
		ok   bool
		crit Criterion
	}{
		{upper, CriterionUppercase},
		{lower, CriterionLowercase},
		{digit, CriterionDigit},
		{symbol, CriterionSymbol},
	} {
		if c.ok {
			s.Score++
		} else {
			s.Feedback = append(s.Feedback, c.crit)
		}
	}

	// A long password with every class would reach 6; the scale tops out at 5.
	if s.Score > MaxScore {
		s.Score = MaxScore
	}
	s.Label = labels[s.Score]

	if pw != "" {
		m := zxcvbn.PasswordStrength(pw, nil)
		s.Estimate = Estimate{Score: m.Score, Entropy: m.Entropy, CrackTime: m.CrackTimeDisplay}
	}
	return s
}

// ValidateMasterPassword returns a *WeakPasswordError when pw scores below
// MinAcceptedScore.
func ValidateMasterPassword(pw string) error {
	s := CheckStrength(pw)
	if !s.Acceptable() {
		return &WeakPasswordError{Strength: s}
	}
	return nil
}
