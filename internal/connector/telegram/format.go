package telegram

import (
	"regexp"
	"strings"
)

// MarkdownToTelegramHTML converts standard Markdown to Telegram's HTML
// subset. Telegram has no heading tags, so headings become bold lines;
// list markers become bullets for readability in the chat column.
func MarkdownToTelegramHTML(md string) string {
	lines := strings.Split(md, "\n")
	var out strings.Builder
	inCodeBlock := false

	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			if !inCodeBlock {
				lang := strings.TrimSpace(strings.TrimPrefix(line, "```"))
				if lang != "" {
					out.WriteString(`<pre><code class="language-` + escapeHTML(lang) + `">`)
				} else {
					out.WriteString("<pre><code>")
				}
				inCodeBlock = true
			} else {
				out.WriteString("</code></pre>")
				inCodeBlock = false
			}
			if i < len(lines)-1 {
				out.WriteString("\n")
			}
			continue
		}

		if inCodeBlock {
			// Inside code block, escape HTML but don't process markdown
			out.WriteString(escapeHTML(line))
			if i < len(lines)-1 {
				out.WriteString("\n")
			}
			continue
		}

		out.WriteString(processInline(convertBlock(line)))
		if i < len(lines)-1 {
			out.WriteString("\n")
		}
	}

	if inCodeBlock {
		out.WriteString("</code></pre>")
	}

	return out.String()
}

var (
	// Order matters: code spans are protected before other inline rules
	reInlineCode = regexp.MustCompile("`([^`]+)`")
	reBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	reItalic     = regexp.MustCompile(`\*(.+?)\*`)
	reLink       = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	reHeading    = regexp.MustCompile(`^#{1,6}\s+(.*)$`)
	reBullet     = regexp.MustCompile(`^(\s*)[-*]\s+`)
)

// convertBlock rewrites block-level markers that Telegram HTML cannot
// express: headings become bold text, -/* list items become bullets.
func convertBlock(line string) string {
	if m := reHeading.FindStringSubmatch(line); m != nil {
		return "**" + m[1] + "**"
	}
	return reBullet.ReplaceAllString(line, "$1• ")
}

func processInline(line string) string {
	// Protect inline code spans first
	type codeSpan struct {
		placeholder string
		html        string
	}
	var spans []codeSpan
	counter := 0

	line = reInlineCode.ReplaceAllStringFunc(line, func(match string) string {
		inner := reInlineCode.FindStringSubmatch(match)[1]
		placeholder := "\x00CODE" + string(rune('A'+counter)) + "\x00"
		counter++
		spans = append(spans, codeSpan{
			placeholder: placeholder,
			html:        "<code>" + escapeHTML(inner) + "</code>",
		})
		return placeholder
	})

	// Escape HTML in non-code content
	line = escapeHTML(line)

	// Bold before italic (** before *)
	line = reBold.ReplaceAllString(line, "<b>$1</b>")
	line = reItalic.ReplaceAllString(line, "<i>$1</i>")

	line = reLink.ReplaceAllString(line, `<a href="$2">$1</a>`)

	// Restore code spans
	for _, s := range spans {
		line = strings.Replace(line, escapeHTML(s.placeholder), s.html, 1)
	}

	return line
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

var reCodeBlock = regexp.MustCompile("```[\\s\\S]*?```")

// StripMarkdown removes all Markdown formatting, returning plain text.
// Used as the fallback when Telegram rejects the HTML rendering.
func StripMarkdown(md string) string {
	result := reCodeBlock.ReplaceAllStringFunc(md, func(match string) string {
		inner := strings.TrimPrefix(match, "```")
		inner = strings.TrimSuffix(inner, "```")
		// Drop the language identifier line
		if idx := strings.Index(inner, "\n"); idx >= 0 {
			inner = inner[idx+1:]
		}
		return inner
	})

	lines := strings.Split(result, "\n")
	for i, line := range lines {
		if m := reHeading.FindStringSubmatch(line); m != nil {
			lines[i] = m[1]
		}
	}
	result = strings.Join(lines, "\n")

	result = reInlineCode.ReplaceAllString(result, "$1")
	result = reBold.ReplaceAllString(result, "$1")
	result = reItalic.ReplaceAllString(result, "$1")
	// Links become "text (url)"
	result = reLink.ReplaceAllString(result, "$1 ($2)")

	return result
}
