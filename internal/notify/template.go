package notify

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DefaultBodyTemplate is the HTML body used when no template is configured.
const DefaultBodyTemplate = `<div style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<h2 style="color: #0056b3;">Hello [userName]!</h2>
<p>Thank you for registering.</p>
<p>Your license key is: <strong>[licenseKey]</strong></p>
<p>Keep this key somewhere safe. You will need it to activate your ebook.</p>
<p>Regards,<br>The Ebook Licenses team</p>
<p style="font-size: 0.8em; color: #777;">This is an automated message, please do not reply.</p>
</div>`

// Vars are the values substituted into a body template.
type Vars struct {
	LicenseKey string
	UserName   string
}

// Render substitutes vars into tmpl. Both [name] and {{name}} placeholder
// forms are accepted. An empty user name renders as "there".
func Render(tmpl string, vars Vars) string {
	name := vars.UserName
	if name == "" {
		name = "there"
	}

	return strings.NewReplacer(
		"[licenseKey]", vars.LicenseKey,
		"{{licenseKey}}", vars.LicenseKey,
		"[userName]", name,
		"{{userName}}", name,
	).Replace(tmpl)
}

// HasLicensePlaceholder reports whether tmpl mentions the license key.
func HasLicensePlaceholder(tmpl string) bool {
	return strings.Contains(tmpl, "[licenseKey]") || strings.Contains(tmpl, "{{licenseKey}}")
}

// StripTags converts an HTML body to readable plain text. Block level
// elements end a line and script or style content is dropped.
func StripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))

	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return tidyText(b.String())
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Br:
				b.WriteByte('\n')
			case atom.Script, atom.Style:
				if tt == html.StartTagToken {
					skip++
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Li, atom.Tr:
				b.WriteByte('\n')
			case atom.Script, atom.Style:
				if skip > 0 {
					skip--
				}
			}
		}
	}
}

var (
	spaceRuns  = regexp.MustCompile(`[ \t]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

func tidyText(s string) string {
	s = spaceRuns.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
