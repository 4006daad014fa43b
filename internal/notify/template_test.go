package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars Vars
		want string
	}{
		{
			name: "bracket placeholders",
			tmpl: "Hi [userName], your key is [licenseKey].",
			vars: Vars{LicenseKey: "K-1", UserName: "Ana"},
			want: "Hi Ana, your key is K-1.",
		},
		{
			name: "brace placeholders",
			tmpl: "Key: {{licenseKey}} for {{userName}}",
			vars: Vars{LicenseKey: "K-2", UserName: "Bo"},
			want: "Key: K-2 for Bo",
		},
		{
			name: "every occurrence",
			tmpl: "[licenseKey] / {{licenseKey}} / [licenseKey]",
			vars: Vars{LicenseKey: "K-3"},
			want: "K-3 / K-3 / K-3",
		},
		{
			name: "missing name",
			tmpl: "Hello [userName]!",
			want: "Hello there!",
		},
		{
			name: "no placeholders",
			tmpl: "Plain text",
			vars: Vars{LicenseKey: "K-4"},
			want: "Plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.tmpl, tt.vars))
		})
	}
}

func TestHasLicensePlaceholder(t *testing.T) {
	assert.True(t, HasLicensePlaceholder("key [licenseKey]"))
	assert.True(t, HasLicensePlaceholder("key {{licenseKey}}"))
	assert.False(t, HasLicensePlaceholder("key [userName]"))
	assert.True(t, HasLicensePlaceholder(DefaultBodyTemplate))
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "paragraphs", in: "<p>Hello</p><p>World</p>", want: "Hello\nWorld"},
		{name: "line breaks", in: "one<br>two<br/>three", want: "one\ntwo\nthree"},
		{name: "entities", in: "<strong>A &amp; B</strong>", want: "A & B"},
		{name: "nested", in: `<div style="x"><h2>Title</h2><p>Body <b>bold</b></p></div>`, want: "Title\nBody bold"},
		{name: "plain", in: "already plain", want: "already plain"},
		{name: "angle brackets in text", in: "<p>1 &lt; 2 and 3 > 2</p>", want: "1 < 2 and 3 > 2"},
		{name: "style and script dropped", in: "<style>p{color:red}</style><p>Hi</p><script>alert(1)</script>", want: "Hi"},
		{name: "attribute with angle bracket", in: `<a title="a>b" href="#">link</a>`, want: "link"},
		{name: "default template", in: Render(DefaultBodyTemplate, Vars{LicenseKey: "K-9", UserName: "Ana"}), want: "Hello Ana!\n\nThank you for registering.\n\nYour license key is: K-9\n\nKeep this key somewhere safe. You will need it to activate your ebook.\n\nRegards,\nThe Ebook Licenses team\n\nThis is an automated message, please do not reply."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripTags(tt.in))
		})
	}
}
