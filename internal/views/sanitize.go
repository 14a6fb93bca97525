package views

import (
	"html/template"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// markedPolicy allows only the colour highlighting the backend puts around
// detected mistakes.
var markedPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("span", "br", "b", "strong", "em", "i")
	p.AllowStyles("color").Matching(regexp.MustCompile(`^(?i)(red|blue|green|orange|#[0-9a-f]{3,6})$`)).OnElements("span")
	return p
}()

// SanitizeMarked makes backend-produced marked text safe to embed.
func SanitizeMarked(s string) template.HTML {
	return template.HTML(markedPolicy.Sanitize(s))
}
