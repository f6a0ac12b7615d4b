package ole

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const MAX_NAME_LEN int = 31

type Ordering int

const (
	OrderLess Ordering = iota
	OrderEqual
	OrderGreater
)

func ValidateName(name string) error {
	if strings.ContainsAny(name, "/\\:!") {
		return fmt.Errorf("name contains one of /\\:! characters: %v", name)
	}

	if len(utf16.Encode([]rune(name))) > MAX_NAME_LEN {
		return fmt.Errorf("name is longer than %v UTF-16 code units: %v", MAX_NAME_LEN, name)
	}

	return nil
}

// CompareNames orders names the way sibling trees are sorted: shorter names
// first, then by their upper-cased UTF-16 code units.
func CompareNames(nameLeft, nameRight string) Ordering {
	left := utf16.Encode([]rune(nameLeft))
	right := utf16.Encode([]rune(nameRight))

	if len(left) != len(right) {
		if len(left) < len(right) {
			return OrderLess
		}
		return OrderGreater
	}

	upper := cases.Upper(language.Und)
	left = utf16.Encode([]rune(upper.String(nameLeft)))
	right = utf16.Encode([]rune(upper.String(nameRight)))

	for i := 0; i < len(left) && i < len(right); i++ {
		if left[i] < right[i] {
			return OrderLess
		}
		if left[i] > right[i] {
			return OrderGreater
		}
	}

	switch {
	case len(left) < len(right):
		return OrderLess
	case len(left) > len(right):
		return OrderGreater
	default:
		return OrderEqual
	}
}

func NameChainFromPath(s string) []string {
	s = path.Clean(s)
	if s == "" {
		return []string{}
	}

	if s[0] == '/' {
		s = s[1:]
	}

	if s == "" || s == "." {
		return []string{}
	}

	if strings.HasPrefix(s, "..") {
		return []string{}
	}

	return strings.Split(s, "/")
}

func PathFromNameChain(names []string) string {
	return "/" + strings.Join(names, "/")
}
