package signup

import "regexp"

var (
	// Three names separated by single spaces, Latin or Cyrillic incl. Uzbek letters.
	// A no-break space separates names like an ordinary one.
	fullNamePattern = regexp.MustCompile(`^(?:[A-Za-zА-Яа-яЁёҚқҲҳЎўҒғ]+[\s\p{Zs}]){2}[A-Za-zА-Яа-яЁёҚқҲҳЎўҒғ]+$`)
	latinPattern    = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// ValidFullName accepts exactly three whitespace separated name tokens.
func ValidFullName(s string) bool {
	return fullNamePattern.MatchString(s)
}

// ValidLogin accepts one or more Latin letters.
func ValidLogin(s string) bool {
	return latinPattern.MatchString(s)
}

// ValidPassword accepts one or more Latin letters.
func ValidPassword(s string) bool {
	return latinPattern.MatchString(s)
}
