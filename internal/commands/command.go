// Package commands recognizes the special inputs the registration surface
// accepts before attempting time parsing: short keywords that ask for the
// reminder list instead of creating a reminder.
package commands

import "strings"

type Type string

const (
	TypeList Type = "list"
)

// specials maps the dedicated-channel keywords (and their slash forms) to
// command types.
var specials = map[string]Type{
	"一覧":   TypeList,
	"リスト":  TypeList,
	"確認":   TypeList,
	"list": TypeList,
}

// Recognize reports whether the input is a special command rather than
// reminder text. A leading slash is accepted and ignored.
func Recognize(input string) (Type, bool) {
	raw := strings.TrimSpace(input)
	raw = strings.TrimPrefix(raw, "/")
	t, ok := specials[strings.ToLower(raw)]
	return t, ok
}
