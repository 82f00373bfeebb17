package profile

import (
	"fmt"
	"os"
	"strings"
)

type ProfileType string

var Current = DEV // dev profile as default

const (
	DEV  ProfileType = "DEV"
	TEST ProfileType = "TEST"
	PROD ProfileType = "PROD"
)

// Parse maps a PROFILE value onto a profile, case insensitive. Unknown values report false.
func Parse(value string) (ProfileType, bool) {
	switch ProfileType(strings.ToUpper(strings.TrimSpace(value))) {
	case DEV:
		return DEV, true
	case TEST:
		return TEST, true
	case PROD:
		return PROD, true
	}
	return "", false
}

func InitProfile() {
	if p, ok := Parse(os.Getenv("PROFILE")); ok {
		Current = p
	}
	fmt.Printf("Current profile: %s\n", Current)
}

func IsProd() bool {
	return Current == PROD
}
