package similarity

// KeepReason is one scoring factor of the retention rubric (§4.6): when two
// archives are found to be equal-content duplicates, Satellite sums the
// reasons that favor keeping each side and keeps the higher-scoring one,
// breaking ties lexicographically by arcid. Grounded on nhdd.py's
// KeepReasonAndScoreEnum.
type KeepReason int

const (
	ReasonStaticCategory      KeepReason = 16 // in a static (non-search) category
	ReasonHigherFavoriteCount KeepReason = 8  // strictly more favorites than its counterpart
	ReasonUncensoredTag       KeepReason = 4  // has the "uncensored" tag
	ReasonHigherTagCount      KeepReason = 4  // strictly more tags than its counterpart
	ReasonNoRoughTranslation  KeepReason = 4  // does not have the "rough translation" tag
	ReasonNoPoorGrammar       KeepReason = 4  // does not have both "poor grammar" and "rough grammar" tags
	ReasonMoreRecentSource    KeepReason = 2  // strictly higher nhentai source id than its counterpart
	ReasonReadingProgress     KeepReason = 1  // reading progress > 0
)

// Candidate is the subset of archive state get_keep_reasons needs to score
// one side of a duplicate pair. SourceID is the trailing numeric id parsed
// out of the "source:nhentai.net/..." tag, or -1 if the archive has none
// (matching _get_source).
type Candidate struct {
	ArcID                  string
	InStaticCategory       bool
	FavoriteCount          int
	HasUncensoredTag       bool
	NumTags                int
	HasRoughTranslationTag bool
	HasPoorGrammarTag      bool
	HasRoughGrammarTag     bool
	SourceID               int64
	ReadingProgress        int
}

// Score sums every KeepReason that applies to c relative to other.
func Score(c, other Candidate) int {
	score := 0
	if c.InStaticCategory {
		score += int(ReasonStaticCategory)
	}
	if c.FavoriteCount > other.FavoriteCount {
		score += int(ReasonHigherFavoriteCount)
	}
	if c.HasUncensoredTag {
		score += int(ReasonUncensoredTag)
	}
	if c.NumTags > other.NumTags {
		score += int(ReasonHigherTagCount)
	}
	if !c.HasRoughTranslationTag {
		score += int(ReasonNoRoughTranslation)
	}
	if !(c.HasPoorGrammarTag && c.HasRoughGrammarTag) {
		score += int(ReasonNoPoorGrammar)
	}
	if c.SourceID > other.SourceID {
		score += int(ReasonMoreRecentSource)
	}
	if c.ReadingProgress > 0 {
		score += int(ReasonReadingProgress)
	}
	return score
}

// Keep decides which of a or b should be retained, breaking ties by
// keeping the lexicographically smaller arcid so the result is
// deterministic across runs.
func Keep(a, b Candidate) (keep, remove Candidate) {
	scoreA := Score(a, b)
	scoreB := Score(b, a)
	switch {
	case scoreA > scoreB:
		return a, b
	case scoreB > scoreA:
		return b, a
	case a.ArcID <= b.ArcID:
		return a, b
	default:
		return b, a
	}
}
