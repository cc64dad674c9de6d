package pathguard

import "runtime"

// builtinDenyPrefixes is the minimal safety set of write targets that no
// configuration may re-enable. Callers extend the list through Guard
// construction; they never shrink it.
var builtinDenyPrefixes = defaultDenyPrefixes()

func defaultDenyPrefixes() []string {
	if runtime.GOOS == "windows" {
		return []string{
			`C:\Windows`,
			`C:\Program Files`,
			`C:\Program Files (x86)`,
			`C:\ProgramData`,
		}
	}
	return []string{
		"/etc",
		"/boot",
		"/bin",
		"/sbin",
		"/dev",
		"/proc",
		"/sys",
		"/usr",
		"/lib",
		"/lib64",
		"/var",
		"/root",
	}
}
