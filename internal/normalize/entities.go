package normalize

import (
	"fmt"
	"strings"
)

// namedEntities maps the named HTML entities we canonicalize to their
// code points. Anything not listed is left for the HTML parser to
// resolve naturally.
var namedEntities = map[string]rune{
	"&nbsp;":   160,
	"&iexcl;":  161,
	"&cent;":   162,
	"&pound;":  163,
	"&curren;": 164,
	"&yen;":    165,
	"&brvbar;": 166,
	"&sect;":   167,
	"&uml;":    168,
	"&copy;":   169,
	"&ordf;":   170,
	"&laquo;":  171,
	"&not;":    172,
	"&shy;":    173,
	"&reg;":    174,
	"&macr;":   175,
	"&deg;":    176,
	"&plusmn;": 177,
	"&sup2;":   178,
	"&sup3;":   179,
	"&acute;":  180,
	"&micro;":  181,
	"&para;":   182,
	"&middot;": 183,
	"&cedil;":  184,
	"&sup1;":   185,
	"&ordm;":   186,
	"&raquo;":  187,
	"&frac14;": 188,
	"&frac12;": 189,
	"&frac34;": 190,
	"&iquest;": 191,
	"&ndash;":  8211,
	"&mdash;":  8212,
	"&lsquo;":  8216,
	"&rsquo;":  8217,
	"&sbquo;":  8218,
	"&ldquo;":  8220,
	"&rdquo;":  8221,
	"&bdquo;":  8222,
	"&dagger;": 8224,
	"&Dagger;": 8225,
	"&bull;":   8226,
	"&hellip;": 8230,
	"&permil;": 8240,
	"&prime;":  8242,
	"&Prime;":  8243,
	"&lsaquo;": 8249,
	"&rsaquo;": 8250,
	"&oline;":  8254,
	"&frasl;":  8260,
	"&euro;":   8364,
	"&trade;":  8482,
	"&larr;":   8592,
	"&uarr;":   8593,
	"&rarr;":   8594,
	"&darr;":   8595,
	"&harr;":   8596,
	"&lArr;":   8656,
	"&uArr;":   8657,
	"&rArr;":   8658,
	"&dArr;":   8659,
	"&hArr;":   8660,
}

var (
	entityReplacer *strings.Replacer

	// numericRefs maps each canonicalized code point back to its numeric
	// reference, so the XHTML renderer re-emits these characters as
	// &#n; instead of raw bytes.
	numericRefs = map[rune]string{}
)

func init() {
	pairs := make([]string, 0, len(namedEntities)*2)
	for name, code := range namedEntities {
		ref := fmt.Sprintf("&#%d;", code)
		pairs = append(pairs, name, ref)
		numericRefs[code] = ref
	}
	entityReplacer = strings.NewReplacer(pairs...)
}

// canonicalizeEntities rewrites every named entity in the lookup table to
// its numeric character reference.
func canonicalizeEntities(s string) string {
	return entityReplacer.Replace(s)
}
