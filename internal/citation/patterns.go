package citation

import "regexp"

// Short-form citations that stand on their own line: "Id.", "Ibid.",
// "See id. at 55.", optionally with a page span.
var idCiteRegex = regexp.MustCompile(`(?i)^(?:see\s+)?(?:id|ibid)\.(?:,?\s+at\s+\d+(?:\s*[-–—]\s*\d+)?)?\.?$`)

// "Tribe, supra note 12, at 1065." including an optional author name and
// optional pin cite.
var supraCiteRegex = regexp.MustCompile(`(?i)^(?:see\s+(?:also\s+|generally\s+)?)?(?:[A-Za-z.'’& \-]{0,40},\s*)?(?:supra|infra)\s+notes?\s+\d+(?:\s*[-–—]\s*\d+)?(?:,?\s+at\s+\d+(?:\s*[-–—]\s*\d+)?)?\.?$`)

// Reporter and statute citations: "410 U.S. 113", "123 F.3d 456",
// "987 F. Supp. 2d 13", "42 U.S.C. § 1983", "104 Harv. L. Rev. 1409",
// "71 Yale L.J. 694". Order matters: U.S.C. must be tried before U.S.
var reporterCiteRegex = regexp.MustCompile(`\b\d{1,4}\s+(?:U\.S\.C\.|U\.S\.|S\.\s?Ct\.|L\.\s?Ed\.\s?(?:2d\s?)?|F\.\s?Supp\.\s?(?:2d|3d)?|F\.(?:2d|3d|4th)?|C\.F\.R\.|[A-Z][a-z]+\.?\s(?:[A-Z][a-z]*\.?\s)*L\.\s?(?:Rev\.|J\.))\s*(?:§{1,2}\s*)?\d+`)

// Supra/infra cross references anywhere in a line.
var supraInfraRegex = regexp.MustCompile(`(?i)\b(?:supra|infra)\s+(?:notes?|part|section)\b`)

// Section and paragraph symbols followed by a number.
var sectionRegex = regexp.MustCompile(`[§¶]{1,2}\s*\d+`)

// Parenthetical containing a four-digit year, e.g. "(1973)" or
// "(9th Cir. 1997)".
var yearParenRegex = regexp.MustCompile(`\([^()]*\b\d{4}\)`)

// Any balanced single-level parenthetical, for fragment stripping.
var parenRegex = regexp.MustCompile(`\([^()]*\)`)

// Case names of the form "Roe v. Wade". The full second party is captured
// so stripping a cite removes the whole name.
var caseNameRegex = regexp.MustCompile(`\b[A-Z][A-Za-z'’.\-]+\s+v\.\s+[A-Z][A-Za-z'’.\-]*`)

// Pin cites like "at 152" or "at 152-60".
var pinCiteRegex = regexp.MustCompile(`\bat\s+\d+(?:\s*[-–—]\s*\d+)?`)

// Leading footnote number on a paragraph: "12 ", "12. ", "12) ".
var leadingNoteRegex = regexp.MustCompile(`^\d{1,4}[.)]?\s+\S`)

var hereinafterRegex = regexp.MustCompile(`(?i)\[hereinafter\b`)

// Runs of all-caps words, the way Bluebook renders treatise authors and
// titles ("LAURENCE TRIBE, AMERICAN CONSTITUTIONAL LAW"). Only used when
// stripping cite fragments, never as a positive signal, so headings are
// unaffected.
var allCapsRunRegex = regexp.MustCompile(`\b[A-Z]{2,}(?:[\s,.'’&\-]+[A-Z]{2,})*\b`)

// Introductory signals in Bluebook order. Checked as lowercase prefixes so
// "seemingly" does not count as "see".
var citationSignals = []string{
	"see, e.g.,",
	"see also ",
	"see generally ",
	"see ",
	"cf. ",
	"e.g., ",
	"accord ",
	"contra ",
	"but see ",
	"but cf. ",
	"compare ",
}
