package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/nbutton23/zxcvbn-go"
)

const specialChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_{|}~`"

var (
	ErrTooShort       = errors.New("password is too short")
	ErrMissingLetter  = errors.New("password must include a letter")
	ErrMissingUpper   = errors.New("password must include an uppercase letter")
	ErrMissingDigit   = errors.New("password must include a digit")
	ErrMissingSpecial = errors.New("password must include a special character")
	ErrTooGuessable   = errors.New("password is too easy to guess")
)

// Rule is a single password requirement. It returns nil when pw satisfies it.
type Rule func(pw string) error

// Policy is a pluggable password predicate. Rules are evaluated in order and the
// first failure is reported. A Policy has no state, so Validate is deterministic.
type Policy struct {
	Rules []Rule
}

// NewPolicy builds a policy from rules.
func NewPolicy(rules ...Rule) Policy {
	return Policy{Rules: rules}
}

// Validate returns the first rule violation, or nil.
func (p Policy) Validate(pw string) error {
	for _, rule := range p.Rules {
		if err := rule(pw); err != nil {
			return err
		}
	}
	return nil
}

// Check reports whether pw satisfies every rule.
func (p Policy) Check(pw string) bool {
	return p.Validate(pw) == nil
}

// PolicyOptions describes the declarative form of a Policy, as read from config.
type PolicyOptions struct {
	MinLength        int
	RequireLetter    bool
	RequireUpper     bool
	RequireDigit     bool
	RequireSpecial   bool
	MinStrengthScore int // zxcvbn score 0-4, 0 disables the check
}

// DefaultPolicyOptions returns the backup password policy: six characters with
// at least one letter and one digit.
func DefaultPolicyOptions() PolicyOptions {
	return PolicyOptions{
		MinLength:     6,
		RequireLetter: true,
		RequireDigit:  true,
	}
}

// Policy compiles the options into rules.
func (o PolicyOptions) Policy() Policy {
	var rules []Rule
	if o.MinLength > 0 {
		rules = append(rules, MinLength(o.MinLength))
	}
	if o.RequireLetter {
		rules = append(rules, requireClass(ErrMissingLetter, unicode.IsLetter))
	}
	if o.RequireUpper {
		rules = append(rules, requireClass(ErrMissingUpper, unicode.IsUpper))
	}
	if o.RequireDigit {
		rules = append(rules, requireClass(ErrMissingDigit, unicode.IsDigit))
	}
	if o.RequireSpecial {
		rules = append(rules, requireClass(ErrMissingSpecial, isSpecial))
	}
	if o.MinStrengthScore > 0 {
		rules = append(rules, MinStrength(o.MinStrengthScore))
	}
	return NewPolicy(rules...)
}

// DefaultPolicy is DefaultPolicyOptions().Policy().
func DefaultPolicy() Policy {
	return DefaultPolicyOptions().Policy()
}

// MinLength requires at least n characters (runes, not bytes).
func MinLength(n int) Rule {
	return func(pw string) error {
		if len([]rune(pw)) < n {
			return fmt.Errorf("%w: need at least %d characters", ErrTooShort, n)
		}
		return nil
	}
}

// MinStrength requires a zxcvbn score of at least score.
func MinStrength(score int) Rule {
	return func(pw string) error {
		if pw == "" {
			return ErrTooGuessable
		}
		if res := zxcvbn.PasswordStrength(pw, nil); res.Score < score {
			return fmt.Errorf("%w: score %d, need %d", ErrTooGuessable, res.Score, score)
		}
		return nil
	}
}

func requireClass(failure error, match func(rune) bool) Rule {
	return func(pw string) error {
		if strings.IndexFunc(pw, match) < 0 {
			return failure
		}
		return nil
	}
}

func isSpecial(r rune) bool {
	return strings.ContainsRune(specialChars, r)
}
