package normalize

import (
	"strings"
	"testing"
)

func frenchRules() Rules {
	return Rules{
		RemovePhrases:   []string{"lire aussi", "publicité", "newsletter"},
		RemoveSelectors: []string{"related", "share", "ad-"},
		PhraseTextLimit: 50,
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	nm := New(frenchRules())
	for _, in := range []string{"", "   ", "\n\t"} {
		if got := nm.Normalize(in); got != "" {
			t.Errorf("Normalize(%q) = %q, want empty", in, got)
		}
	}
}

func TestNormalize_StripsScriptAndFriends(t *testing.T) {
	nm := New(frenchRules())
	input := `<p>keep</p><script>alert(1)</script><noscript>no js</noscript><iframe src="x"></iframe><style>p{}</style>`
	got := nm.Normalize(input)

	for _, bad := range []string{"script", "iframe", "style", "alert", "no js"} {
		if strings.Contains(got, bad) {
			t.Errorf("output contains %q: %s", bad, got)
		}
	}
	if !strings.Contains(got, "<p>keep</p>") {
		t.Errorf("paragraph lost: %s", got)
	}
}

func TestNormalize_StripsEventHandlers(t *testing.T) {
	nm := New(frenchRules())
	got := nm.Normalize(`<p onclick="alert(1)" onmouseover="x()" class="intro">Hello</p>`)

	if strings.Contains(got, "onclick") || strings.Contains(got, "onmouseover") {
		t.Errorf("handler attribute survived: %s", got)
	}
	if !strings.Contains(got, `class="intro"`) {
		t.Errorf("class lost: %s", got)
	}
}

func TestNormalize_RemovesBoilerplateBySelector(t *testing.T) {
	nm := New(frenchRules())
	input := `<div class="article-share">Partager</div><div id="ad-banner">pub</div><p>contenu</p>`
	got := nm.Normalize(input)

	if strings.Contains(got, "Partager") || strings.Contains(got, "pub") {
		t.Errorf("boilerplate survived: %s", got)
	}
	if !strings.Contains(got, "contenu") {
		t.Errorf("content lost: %s", got)
	}
}

func TestNormalize_RemovesBoilerplateByPhrase(t *testing.T) {
	nm := New(frenchRules())

	tests := []struct {
		name    string
		input   string
		removed bool
	}{
		{"exact match", `<p>Lire aussi</p>`, true},
		{"exact with colon under limit", `<p>Lire aussi : notre dossier</p>`, true},
		{"phrase inside long paragraph survives", `<p>Ce paragraphe mentionne lire aussi mais il est bien trop long pour être une simple accroche éditoriale de bas de page.</p>`, false},
		{"hyphenated class", `<div class="bloc-lire-aussi"><a href="/x">Dossier</a></div>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nm.Normalize(tt.input)
			gone := !strings.Contains(strings.ToLower(got), "lire aussi") && !strings.Contains(got, "Dossier")
			if gone != tt.removed {
				t.Errorf("removed = %v, want %v (output %q)", gone, tt.removed, got)
			}
		})
	}
}

func TestNormalize_FlattenLinks(t *testing.T) {
	rules := frenchRules()
	rules.FlattenLinks = true
	nm := New(rules)

	got := nm.Normalize(`<p>Voir <a href="https://example.com/suite">la suite</a> ici</p>`)
	if strings.Contains(got, "<a") || strings.Contains(got, "href") {
		t.Errorf("anchor survived: %s", got)
	}
	if !strings.Contains(got, "la suite") {
		t.Errorf("anchor text lost: %s", got)
	}

	// Without the flag, anchors stay.
	got = New(frenchRules()).Normalize(`<p><a href="https://example.com/">lien</a></p>`)
	if !strings.Contains(got, `<a href="https://example.com/">lien</a>`) {
		t.Errorf("anchor should be kept: %s", got)
	}
}

func TestNormalize_DropsComments(t *testing.T) {
	nm := New(frenchRules())
	got := nm.Normalize(`<p>avant</p><!-- tracking marker --><p>après</p>`)
	if strings.Contains(got, "<!--") || strings.Contains(got, "tracking") {
		t.Errorf("comment survived: %s", got)
	}
}

func TestNormalize_EntityCanonicalization(t *testing.T) {
	nm := New(frenchRules())

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"nbsp", `<p>10&nbsp;km</p>`, "&#160;"},
		{"mdash", `<p>Oui&mdash;non</p>`, "&#8212;"},
		{"raquo", `<p>&laquo;&nbsp;citation&nbsp;&raquo;</p>`, "&#187;"},
		{"eacute passthrough", `<p>&eacute;t&eacute;</p>`, "été"},
		{"numeric input preserved", `<p>a&#160;b</p>`, "&#160;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nm.Normalize(tt.input)
			if !strings.Contains(got, tt.want) {
				t.Errorf("Normalize(%q) = %q, want substring %q", tt.input, got, tt.want)
			}
			if strings.Contains(got, "&nbsp;") || strings.Contains(got, "&mdash;") {
				t.Errorf("named entity survived: %q", got)
			}
		})
	}
}

func TestNormalize_EscapesXMLSpecials(t *testing.T) {
	nm := New(frenchRules())
	got := nm.Normalize(`<p>AT&T a dit "2 &lt; 3" chez O'Brien</p>`)

	for _, want := range []string{"&amp;", "&lt;", "&quot;", "&apos;"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %s in %q", want, got)
		}
	}
}

func TestNormalize_DropsInvalidXMLChars(t *testing.T) {
	nm := New(frenchRules())

	got := nm.Normalize("<p>avant\x01après\vfin</p>")
	if got != "<p>avantaprèsfin</p>" {
		t.Errorf("control characters survived: %q", got)
	}

	// Tab, newline and carriage return are valid XML and stay.
	got = nm.Normalize("<p>a\tb\nc</p>")
	if !strings.Contains(got, "a\tb\nc") {
		t.Errorf("whitespace mangled: %q", got)
	}

	// Attribute values are filtered too.
	got = nm.Normalize("<p title=\"x\x08y\">t</p>")
	if strings.Contains(got, "\x08") {
		t.Errorf("control character survived in attribute: %q", got)
	}
}

func TestStripInvalidXMLChars(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"a\x00b\x01c\x1fd", "abcd"},
		{"tab\tnl\ncr\r", "tab\tnl\ncr\r"},
		{"é€…", "é€…"},
		{"x�y", "x�y"},
	}
	for _, tt := range tests {
		if got := StripInvalidXMLChars(tt.in); got != tt.want {
			t.Errorf("StripInvalidXMLChars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnforceVoidElements(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"br", "<p>a<br>b</p>", "<p>a<br />b</p>"},
		{"hr with attrs", `<hr class="sep">`, `<hr class="sep" />`},
		{"img", `<img src="x.jpg" alt="t">`, `<img src="x.jpg" alt="t" />`},
		{"already closed", "<br />", "<br />"},
		{"uppercase", "<BR>", "<BR />"},
		{"non-void untouched", "<p>text</p>", "<p>text</p>"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnforceVoidElements(tt.input); got != tt.want {
				t.Errorf("EnforceVoidElements(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestEnforceVoidElements_AllVoids(t *testing.T) {
	voids := []string{"area", "base", "br", "col", "embed", "hr", "img", "input", "link", "meta", "param", "source", "track", "wbr"}
	for _, tag := range voids {
		in := "<" + tag + ">"
		got := EnforceVoidElements(in)
		if !strings.HasSuffix(got, " />") {
			t.Errorf("%s not self-closed: %q", tag, got)
		}
	}
}

func TestNormalize_SelfClosesVoidsInTree(t *testing.T) {
	nm := New(frenchRules())
	got := nm.Normalize(`<p>ligne 1<br>ligne 2</p><hr><img src="photo.jpg" alt="photo">`)

	for _, want := range []string{"<br />", "<hr />", `<img src="photo.jpg" alt="photo" />`} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}
