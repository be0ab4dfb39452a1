// Package cli provides shared formatting helpers for the newtcli command.
package cli

import "os"

// colorEnabled is false when NO_COLOR is set (no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

func paint(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Green and the other color helpers return s unchanged under NO_COLOR.
func Green(s string) string  { return paint("32", s) }
func Yellow(s string) string { return paint("33", s) }
func Red(s string) string    { return paint("31", s) }
func Bold(s string) string   { return paint("1", s) }
func Dim(s string) string    { return paint("2", s) }

// DecisionLabel colors a reconcile decision kind by how disruptive it is:
// removals red, in-place changes yellow, recreation bold yellow.
func DecisionLabel(kind string) string {
	switch kind {
	case "create":
		return Green(kind)
	case "delete":
		return Red(kind)
	case "update-in-place":
		return Yellow(kind)
	case "delete-then-recreate":
		return Bold(Yellow(kind))
	}
	return Dim(kind)
}

// Status renders a success flag as OK or FAIL.
func Status(ok bool) string {
	if ok {
		return Green("OK")
	}
	return Red("FAIL")
}
