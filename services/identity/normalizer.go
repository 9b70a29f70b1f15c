package identity

import (
	"context"
	"regexp"
	"strings"
)

// noisePatterns are applied in order. Bracketed forms come before the bare
// tokens so "(Karaoke Version)" goes as one unit instead of leaving "()" behind.
// Bracket patterns never cross a closing bracket, which keeps unrelated
// annotations like "(Live)" intact.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\([^)]*?karaoke[^)]*?\)`),
	regexp.MustCompile(`(?i)\[[^\]]*?karaoke[^\]]*?\]`),
	regexp.MustCompile(`(?i)\([^)]*?instrumental[^)]*?\)`),
	regexp.MustCompile(`(?i)\[[^\]]*?instrumental[^\]]*?\]`),
	regexp.MustCompile(`(?i)\([^)]*?with\s+lyrics?[^)]*?\)`),
	regexp.MustCompile(`(?i)\[[^\]]*?with\s+lyrics?[^\]]*?\]`),
	regexp.MustCompile(`(?i)\([^)]*?no\s+guide[^)]*?\)`),
	regexp.MustCompile(`(?i)\bkaraoke\s*(version|track|edition)?\b`),
	regexp.MustCompile(`(?i)\blyrics?\b`),
	regexp.MustCompile(`(?i)\(official[^)]*?\)`),
	regexp.MustCompile(`(?i)\[official[^\]]*?\]`),
	regexp.MustCompile(`(?i)\([^)]*?hd[^)]*?\)`),
	regexp.MustCompile(`(?i)\[[^\]]*?hd[^\]]*?\]`),
	regexp.MustCompile(`(?i)\([^)]*?audio[^)]*?\)`),
}

// artistSeparator is a dash, en dash or em dash with whitespace on both sides.
var artistSeparator = regexp.MustCompile(`\s[-–—]\s`)

const edgeTrimChars = " -–—|_"

// Normalizer is the deterministic title parser. It is always available and
// never fails, which makes it the last stage of every extraction chain.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Name() string {
	return "normalizer"
}

// Extract satisfies MetadataExtractor; the error is always nil.
func (n *Normalizer) Extract(_ context.Context, rawTitle string) (SongIdentity, error) {
	return n.Normalize(rawTitle), nil
}

// Normalize strips noise from rawTitle and splits it on the first
// " - " style separator. An all-noise title yields an empty Song.
func (n *Normalizer) Normalize(rawTitle string) SongIdentity {
	title := rawTitle
	for _, re := range noisePatterns {
		title = re.ReplaceAllString(title, "")
	}

	title = strings.TrimSpace(strings.Trim(title, edgeTrimChars))

	parts := artistSeparator.Split(title, 2)
	if len(parts) == 2 {
		artist := strings.TrimSpace(parts[0])
		song := strings.TrimSpace(parts[1])
		if artist != "" && song != "" {
			return SongIdentity{Artist: artist, Song: song}
		}
	}

	return SongIdentity{Song: title}
}

// Normalize runs the default Normalizer.
func Normalize(rawTitle string) SongIdentity {
	return NewNormalizer().Normalize(rawTitle)
}
