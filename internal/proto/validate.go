package proto

// ValidUsername reports whether name is 1..16 alphanumeric characters.
func ValidUsername(name string) bool {
	return validAlnum(name, MaxUsernameLen)
}

// ValidRoomName reports whether name is 1..32 alphanumeric characters.
func ValidRoomName(name string) bool {
	return validAlnum(name, MaxRoomNameLen)
}

func validAlnum(s string, max int) bool {
	if len(s) == 0 || len(s) > max {
		return false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
