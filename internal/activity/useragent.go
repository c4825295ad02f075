package activity

import "regexp"

type uaRule struct {
	re    *regexp.Regexp
	label string
}

func rules(pairs ...string) []uaRule {
	out := make([]uaRule, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, uaRule{re: regexp.MustCompile(`(?i)` + pairs[i]), label: pairs[i+1]})
	}
	return out
}

// Order matters: every rule is tried and the last match wins, so more specific
// platforms (Android over Linux, iPhone over Mac OS X) sit further down.
var osRules = rules(
	`windows nt 10`, "Windows 10",
	`windows nt 6\.3`, "Windows 8.1",
	`windows nt 6\.2`, "Windows 8",
	`windows nt 6\.1`, "Windows 7",
	`windows nt 6\.0`, "Windows Vista",
	`windows nt 5\.2`, "Windows Server 2003/XP x64",
	`windows nt 5\.1`, "Windows XP",
	`windows xp`, "Windows XP",
	`windows nt 5\.0`, "Windows 2000",
	`windows me`, "Windows ME",
	`win98`, "Windows 98",
	`win95`, "Windows 95",
	`win16`, "Windows 3.11",
	`macintosh|mac os x`, "Mac OS X",
	`mac_powerpc`, "Mac OS 9",
	`linux`, "Linux",
	`ubuntu`, "Ubuntu",
	`iphone`, "iPhone",
	`ipod`, "iPod",
	`ipad`, "iPad",
	`android`, "Android",
	`blackberry`, "BlackBerry",
	`webos`, "Mobile",
)

var browserRules = rules(
	`msie`, "Internet Explorer",
	`trident`, "Internet Explorer",
	`firefox`, "Firefox",
	`safari`, "Safari",
	`chrome`, "Chrome",
	`edge`, "Edge",
	`opera`, "Opera",
	`netscape`, "Netscape",
	`maxthon`, "Maxthon",
	`konqueror`, "Konqueror",
	`ubrowser`, "UC Browser",
	`mobile`, "Handheld",
)

func classify(ua string, rs []uaRule, fallback string) string {
	out := fallback
	for _, r := range rs {
		if r.re.MatchString(ua) {
			out = r.label
		}
	}
	return out
}

// OS names the operating system of a User-Agent string.
func OS(ua string) string { return classify(ua, osRules, "Unknown OS Platform") }

// Browser names the browser of a User-Agent string.
func Browser(ua string) string { return classify(ua, browserRules, "Unknown Browser") }
