package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"lyrahub/internal/domain"
)

// DigestEntry is one picked item as a reader of a given language sees it.
type DigestEntry struct {
	Title   string
	URL     string
	Summary string
}

type digestCopy struct {
	Subject     string
	Intro       string
	Unsubscribe string
	Empty       string
}

var digestCopies = map[domain.Language]digestCopy{
	domain.LanguageZH: {
		Subject:     "每日精选 · 智能驾驶与车载大模型",
		Intro:       "今天的精选",
		Unsubscribe: "退订邮件",
		Empty:       "今天没有新的精选内容。",
	},
	domain.LanguageEN: {
		Subject:     "Daily Digest · Autodrive & In-Car AI",
		Intro:       "Today's top picks",
		Unsubscribe: "Unsubscribe",
		Empty:       "No new picks today.",
	},
}

type digestData struct {
	Copy           digestCopy
	Entries        []DigestEntry
	UnsubscribeURL string
	Year           int
}

var htmlDigest = htmltemplate.Must(htmltemplate.New("digest").Parse(`<div style="background:#f8fafc;padding:24px 0;">
<table width="600" align="center" cellpadding="0" cellspacing="0" style="background:#ffffff;border:1px solid #e2e8f0;border-radius:12px;padding:0 24px 12px;font-family:ui-sans-serif,system-ui,-apple-system">
<tr><td style="padding:20px 0 8px;">
<h1 style="margin:0;color:#0f172a;font-size:20px;">{{.Copy.Subject}}</h1>
<p style="margin:6px 0 0;color:#64748b;font-size:14px;">{{.Copy.Intro}}</p>
</td></tr>
{{- range .Entries}}
<tr><td style="padding:12px 0;border-bottom:1px solid #eee;">
<a href="{{.URL}}" style="font-size:16px;color:#0f172a;text-decoration:none;font-weight:600;">{{.Title}}</a>
{{- if .Summary}}
<p style="margin:6px 0 0;color:#334155;font-size:14px;line-height:1.7">{{.Summary}}</p>
{{- end}}
</td></tr>
{{- else}}
<tr><td style="padding:12px 0;color:#334155;">{{.Copy.Empty}}</td></tr>
{{- end}}
<tr><td style="padding:18px 0 12px;color:#94a3b8;font-size:12px;border-top:1px solid #e2e8f0;">
<p style="margin:0 0 6px;">&copy; {{.Year}} lyrahub</p>
{{- if .UnsubscribeURL}}
<a href="{{.UnsubscribeURL}}" style="color:#64748b;">{{.Copy.Unsubscribe}}</a>
{{- end}}
</td></tr>
</table>
</div>
`))

var textDigest = texttemplate.Must(texttemplate.New("digest").
	Funcs(texttemplate.FuncMap{"inc": func(i int) int { return i + 1 }}).
	Parse(`{{.Copy.Subject}}
{{.Copy.Intro}}
{{range $i, $e := .Entries}}
{{inc $i}}. {{$e.Title}}
{{$e.URL}}
{{- if $e.Summary}}
{{$e.Summary}}
{{- end}}
{{else}}
{{.Copy.Empty}}
{{end}}
{{- if .UnsubscribeURL}}
{{.Copy.Unsubscribe}}: {{.UnsubscribeURL}}
{{- end}}
`))

// RenderDigest builds the digest mail for one recipient in lang.
func RenderDigest(
	lang domain.Language,
	to string,
	entries []DigestEntry,
	unsubscribeURL string,
) (Message, error) {
	c, ok := digestCopies[lang]
	if !ok {
		c = digestCopies[domain.LanguageEN]
	}

	data := digestData{
		Copy:           c,
		Entries:        entries,
		UnsubscribeURL: unsubscribeURL,
		Year:           time.Now().Year(),
	}

	var html, text bytes.Buffer

	if err := htmlDigest.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}

	if err := textDigest.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}

	return Message{
		To:             to,
		Subject:        c.Subject,
		HTML:           html.String(),
		Text:           strings.TrimSpace(text.String()) + "\n",
		UnsubscribeURL: unsubscribeURL,
	}, nil
}
