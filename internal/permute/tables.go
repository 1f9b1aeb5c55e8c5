package permute

// substitutionTable maps a character to keyboard-adjacent (QWERTY) and
// visually similar ASCII replacements.
var substitutionTable = map[rune]string{
	'a': "qwsz4",
	'b': "vghn8",
	'c': "xdfv",
	'd': "serfcx",
	'e': "wsdr3",
	'f': "drtgvc",
	'g': "ftyhbv9q",
	'h': "gyujnb",
	'i': "ujko1l",
	'j': "huikmn",
	'k': "jiolm",
	'l': "kop1i",
	'm': "njk",
	'n': "bhjm",
	'o': "iklp0",
	'p': "ol0",
	'q': "wa9g",
	'r': "edft",
	's': "awedxz5",
	't': "rfgy7",
	'u': "yhji",
	'v': "cfgb",
	'w': "qasevv",
	'x': "zsdc",
	'y': "tghu",
	'z': "asx2",
	'0': "o9",
	'1': "li2",
	'2': "1z3",
	'3': "e24",
	'4': "a35",
	'5': "s46",
	'6': "b57",
	'7': "t68",
	'8': "b79",
	'9': "g80",
}

// homoglyphTable maps Latin characters to visually identical Cyrillic and
// Greek code points.
var homoglyphTable = map[rune]string{
	'a': "а",
	'c': "с",
	'd': "ԁ",
	'e': "е",
	'h': "һ",
	'i': "і",
	'j': "ј",
	'k': "κ",
	'o': "оο",
	'p': "р",
	'q': "ԛ",
	's': "ѕ",
	'v': "ν",
	'w': "ԝ",
	'x': "х",
	'y': "у",
}

type glyphPair struct {
	from, to string
}

// multiCharGlyphs are character sequences that render like another sequence.
var multiCharGlyphs = []glyphPair{
	{"rn", "m"},
	{"m", "rn"},
	{"vv", "w"},
	{"w", "vv"},
	{"cl", "d"},
	{"d", "cl"},
}

// variantTLDs is the fixed TLD set for TLD variation, generic first.
var variantTLDs = []string{
	"com", "net", "org", "co", "io", "info", "biz", "app", "online", "site", "xyz",
	"us", "uk", "de", "fr", "nl", "ru", "cn", "in", "ca", "au",
}

// comboWords is the high-signal combosquat vocabulary.
var comboWords = []string{"login", "secure", "support", "billing", "portal"}
