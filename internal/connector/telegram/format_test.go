package telegram

import (
	"strings"
	"testing"
)

func TestMarkdownToTelegramHTML_Inline(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "Abra as **Configurações** do sistema", "Abra as <b>Configurações</b> do sistema"},
		{"italic", "O status deve ser *online*", "O status deve ser <i>online</i>"},
		{"inline code", "Execute `ipconfig /all` no terminal", "Execute <code>ipconfig /all</code> no terminal"},
		{"link", "Veja o [manual](https://kb.example.com/printers)", `Veja o <a href="https://kb.example.com/printers">manual</a>`},
		{"html escaped", "Use a tag <b> com cuidado & teste", "Use a tag &lt;b&gt; com cuidado &amp; teste"},
		{"code span not escaped twice", "Rode `a < b && c`", "Rode <code>a &lt; b &amp;&amp; c</code>"},
		{"plain text untouched", "Seu chamado foi registrado.", "Seu chamado foi registrado."},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := MarkdownToTelegramHTML(c.in); got != c.want {
				t.Errorf("got %q, want %q", got, c.want)
			}
		})
	}
}

func TestMarkdownToTelegramHTML_HeadingsAndBullets(t *testing.T) {
	in := "## Próximos passos\n- Reinicie o roteador\n- Aguarde 30 segundos\n* Teste a conexão"
	want := "<b>Próximos passos</b>\n• Reinicie o roteador\n• Aguarde 30 segundos\n• Teste a conexão"
	if got := MarkdownToTelegramHTML(in); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMarkdownToTelegramHTML_CodeBlock(t *testing.T) {
	in := "Rode:\n```sh\nping -c 4 10.0.0.1\n```\nE me envie a saída."
	got := MarkdownToTelegramHTML(in)

	if !strings.Contains(got, `<pre><code class="language-sh">`) {
		t.Errorf("expected language-tagged code block, got %q", got)
	}
	if !strings.Contains(got, "ping -c 4 10.0.0.1") {
		t.Errorf("expected code content preserved, got %q", got)
	}
	if !strings.Contains(got, "</code></pre>") {
		t.Errorf("expected closing code block, got %q", got)
	}
}

func TestMarkdownToTelegramHTML_UnclosedCodeBlock(t *testing.T) {
	in := "```\nsudo systemctl restart cups"
	got := MarkdownToTelegramHTML(in)
	if !strings.HasSuffix(got, "</code></pre>") {
		t.Errorf("expected unclosed block to be closed, got %q", got)
	}
}

func TestStripMarkdown(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"**Ticket criado:** TKT-1A2B3C4D", "Ticket criado: TKT-1A2B3C4D"},
		{"Use `lpstat -p` para listar", "Use lpstat -p para listar"},
		{"# Resumo\nTudo resolvido", "Resumo\nTudo resolvido"},
		{"[base de conhecimento](https://kb.example.com)", "base de conhecimento (https://kb.example.com)"},
	}
	for _, c := range cases {
		if got := StripMarkdown(c.in); got != c.want {
			t.Errorf("StripMarkdown(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStripMarkdown_CodeBlock(t *testing.T) {
	in := "Saída:\n```sh\nerro 0x80070057\n```"
	got := StripMarkdown(in)
	if strings.Contains(got, "```") {
		t.Errorf("expected fences removed, got %q", got)
	}
	if !strings.Contains(got, "erro 0x80070057") {
		t.Errorf("expected content preserved, got %q", got)
	}
	if strings.Contains(got, "sh\n") {
		t.Errorf("expected language line dropped, got %q", got)
	}
}
