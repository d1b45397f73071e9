package vault

import (
	"unicode"
	"unicode/utf8"
)

var strengthLabels = [...]string{"Very Weak", "Weak", "Fair", "Good", "Strong", "Unbreakable"}

// Strength is a 0..5 password score.
type Strength struct {
	Score int
	Label string
}

// PasswordStrength scores length and character diversity.
func PasswordStrength(password string) Strength {
	if password == "" {
		return Strength{Score: 0, Label: "Empty"}
	}
	score := 0
	n := utf8.RuneCountInString(password)
	if n > 8 {
		score++
	}
	if n > 12 {
		score++
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case unicode.IsDigit(r) && r < utf8.RuneSelf:
			digit = true
		default:
			symbol = true
		}
	}
	if lower && upper {
		score++
	}
	if digit {
		score++
	}
	if symbol {
		score++
	}
	return Strength{Score: score, Label: strengthLabels[score]}
}
