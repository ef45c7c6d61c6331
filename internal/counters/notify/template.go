package notify

import (
	"strings"

	"github.com/valyala/fasttemplate"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	DefaultMessage        = "§7[{rule}] §f{objectiveName} {delta} §7({score})"
	DefaultFailureMessage = "§c[{rule}] not counted: {reason}"
	DefaultActionBar      = "{objectiveName}: {score}"
	DefaultLogLine        = "{actor} {objective} {old} -> {score} ({kind}:{rule})"
)

// Vars are the placeholder values of one notification.
type Vars map[string]string

// Render substitutes {name} placeholders. Unknown placeholders are kept.
func Render(tmpl string, vars Vars) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	m := make(map[string]interface{}, len(vars))
	for k, v := range vars {
		m[k] = v
	}
	return fasttemplate.ExecuteStringStd(tmpl, "{", "}", m)
}

// Numbers formats scores with locale digit grouping.
type Numbers struct {
	p *message.Printer
}

// NewNumbers falls back to English when lang does not parse.
func NewNumbers(lang string) *Numbers {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	return &Numbers{p: message.NewPrinter(tag)}
}

func (n *Numbers) Int(v int64) string {
	return n.p.Sprintf("%d", v)
}

// Signed always carries a sign: "+1,000", "-3", "+0".
func (n *Numbers) Signed(v int64) string {
	if v < 0 {
		return n.p.Sprintf("%d", v)
	}
	return "+" + n.p.Sprintf("%d", v)
}
