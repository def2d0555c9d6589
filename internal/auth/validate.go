package auth

// Username and password rules carried over from the account model: names
// reject a fixed character set, passwords reject whitespace and CJK, and
// strength requires at least 8 alphanumeric characters with at least one
// letter and one digit.

const illegalNameChars = " !@#$%^/&*|:<>,;.?`[~！，]。？()-=：；、￥"

func isIllegalUserName(name string) bool {
	for _, c := range name {
		for _, banned := range illegalNameChars {
			if c == banned {
				return true
			}
		}
	}
	return false
}

func isIllegalPassword(password string) bool {
	for _, c := range password {
		if c == ' ' {
			return true
		}
		if c >= '一' && c <= '鿿' {
			return true
		}
	}
	return false
}

func isWeakPassword(password string) bool {
	if len(password) < 8 {
		return true
	}
	var hasLetter, hasDigit bool
	for _, c := range password {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
			hasLetter = true
		case c >= '0' && c <= '9':
			hasDigit = true
		default:
			return true
		}
	}
	return !hasLetter || !hasDigit
}
