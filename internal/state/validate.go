package state

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/docker/go-units"
)

const (
	// MinMemoryMB is the smallest heap the launcher will hand to the JVM.
	MinMemoryMB = 512

	// MaxNameLength bounds instance and group names.
	MaxNameLength = 64
)

var (
	// uuidRegex validates UUID format
	uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	// versionIDRegex accepts Mojang ids such as 1.20.4, 23w13a, b1.7.3, rd-132211
	versionIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)

	// playerNameRegex validates offline player names
	playerNameRegex = regexp.MustCompile(`^[A-Za-z0-9_]{1,16}$`)
)

// ValidateInstanceName validates an instance name.
// Names are map keys, not paths, so anything printable up to 64 characters is allowed.
func ValidateInstanceName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("instance name cannot be empty")
	}
	return validateLabel("instance name", name)
}

// ValidateGroupName validates a group name. The empty string is allowed and
// maps to the ungrouped bucket.
func ValidateGroupName(group string) error {
	if group == "" {
		return nil
	}
	return validateLabel("group name", group)
}

func validateLabel(what, s string) error {
	if len(s) > MaxNameLength {
		return fmt.Errorf("%s must be %d characters or less, got %d", what, MaxNameLength, len(s))
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s cannot contain control characters: %q", what, s)
		}
	}
	return nil
}

// ValidateUUID validates a UUID string.
func ValidateUUID(uuid string) error {
	if uuid == "" {
		return fmt.Errorf("UUID cannot be empty")
	}

	if !uuidRegex.MatchString(strings.ToLower(uuid)) {
		return fmt.Errorf("invalid UUID format: %q", uuid)
	}

	return nil
}

// ValidateVersion validates a game version id. It must be usable as a file name.
func ValidateVersion(version string) error {
	if version == "" {
		return fmt.Errorf("version cannot be empty")
	}

	if !versionIDRegex.MatchString(version) {
		return fmt.Errorf("version is not a filesystem-safe id: %q", version)
	}

	return nil
}

// ValidatePlayerName validates an offline account name.
func ValidatePlayerName(name string) error {
	if !playerNameRegex.MatchString(name) {
		return fmt.Errorf("player name must be 1-16 letters, digits or underscores: %q", name)
	}
	return nil
}

// ParseMemoryMB converts a RAM size such as "4G", "2048M" or "4gb" to megabytes.
func ParseMemoryMB(memory string) (int, error) {
	if memory == "" {
		return 0, fmt.Errorf("memory cannot be empty")
	}

	bytes, err := units.RAMInBytes(memory)
	if err != nil {
		return 0, fmt.Errorf("invalid memory format: %q (expected format: 512M, 4G, etc.)", memory)
	}

	mb := int(bytes / units.MiB)
	if mb < MinMemoryMB {
		return 0, fmt.Errorf("memory must be at least %dM, got %q", MinMemoryMB, memory)
	}

	return mb, nil
}

// ValidateMemory validates a RAM size string.
func ValidateMemory(memory string) error {
	_, err := ParseMemoryMB(memory)
	return err
}
