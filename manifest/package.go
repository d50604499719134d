package manifest

import "strings"

// ToPackageName converts a project or dependency name to a package name.
// "my-app" -> "my_app", "MyLib" -> "mylib"
func ToPackageName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == ' ':
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "p" + name
	}
	return name
}

// ValidPackageName reports whether name can name a package: a lowercase
// identifier.
func ValidPackageName(name string) bool {
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		return false
	}
	for _, r := range name {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_') {
			return false
		}
	}
	return true
}

// reservedPackages lists names taken by the prelude and built-in types.
var reservedPackages = map[string]bool{
	"lotus":  true,
	"int":    true,
	"float":  true,
	"bool":   true,
	"string": true,
	"array":  true,
	"self":   true,
}

// IsReservedPackage reports whether name must not be used as the package
// of a dependency.
func IsReservedPackage(name string) bool {
	return reservedPackages[name]
}
