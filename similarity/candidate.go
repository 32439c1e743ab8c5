package similarity

import (
	"context"

	"arcsat.dev/satellite/lrrclient"
	"arcsat.dev/satellite/vectorstore"
)

// BuildCandidate assembles the retention-rubric Candidate for arcid from
// its stored nhentai_archive row and its live LRR metadata, matching
// get_keep_reasons's inputs (categorized_arcids membership, tags, source
// id, reading progress).
func BuildCandidate(ctx context.Context, store *vectorstore.Store, lrr *lrrclient.Client, arcid string) (Candidate, error) {
	cand := Candidate{ArcID: arcid, SourceID: -1}

	archive, err := store.GetNhentaiArchive(arcid)
	if err != nil {
		return Candidate{}, Error.Wrap(err)
	}
	if archive != nil {
		cand.InStaticCategory = archive.Category != ""
		cand.FavoriteCount = archive.FavoriteCount
	}

	meta, err := lrr.GetArchiveMetadata(ctx, arcid)
	if err != nil {
		return Candidate{}, Error.Wrap(err)
	}
	cand.ReadingProgress = meta.Progress
	if meta.Tags != "" {
		tags := lrrclient.SplitTags(meta.Tags)
		cand.NumTags = len(tags)
		cand.HasUncensoredTag = lrrclient.HasTag(tags, "uncensored")
		cand.HasRoughTranslationTag = lrrclient.HasTag(tags, "rough translation")
		cand.HasPoorGrammarTag = lrrclient.HasTag(tags, "poor grammar")
		cand.HasRoughGrammarTag = lrrclient.HasTag(tags, "rough grammar")
		if id := lrrclient.NhentaiSourceID(tags); id >= 0 {
			cand.SourceID = id
		}
	}

	return cand, nil
}
