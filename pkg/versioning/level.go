package versioning

import "fmt"

// Level is the severity of a change expressed as the version component it bumps.
// Levels are ordered: LevelNone < LevelPatch < LevelMinor < LevelMajor.
type Level int

const (
	LevelNone Level = iota
	LevelPatch
	LevelMinor
	LevelMajor
)

var levelNames = map[Level]string{
	LevelNone:  "NONE",
	LevelPatch: "PATCH",
	LevelMinor: "MINOR",
	LevelMajor: "MAJOR",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return fmt.Sprintf("Level(%d)", int(l))
}

// Max returns the more severe of two levels.
func Max(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// ParseLevel parses a level name such as "MINOR".
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if name == s {
			return l, nil
		}
	}
	return LevelNone, fmt.Errorf("unknown version level %q", s)
}

// MarshalText encodes the level by name.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name.
func (l *Level) UnmarshalText(b []byte) error {
	parsed, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
