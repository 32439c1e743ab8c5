package similarity

import (
	"context"

	"go.uber.org/zap"

	"arcsat.dev/satellite/lrrclient"
	"arcsat.dev/satellite/vectorstore"
)

// allLanguages lists every language compute_subarchives iterates, in the
// fixed order the original processes them: sequentially, one language at a
// time rather than concurrently (confirmed by original_source, resolving
// spec.md's open question in favor of sequential execution — running
// languages concurrently would let two goroutines race to claim the same
// root arcid in subarchive_map).
var allLanguages = []vectorstore.NhArchiveLanguage{
	vectorstore.LanguageEnglish,
	vectorstore.LanguageChinese,
	vectorstore.LanguageJapanese,
	vectorstore.LanguageOther,
	vectorstore.LanguageNoTranslate,
}

// candidatePeerLimit bounds CandidatesBySimilarFirstPage the way the
// original's get_arcids_by_page_similar_to_first_page_2 narrows its O(n^2)
// comparison down to plausible peers.
const candidatePeerLimit = 32

// ComputeSubarchives materializes the subarchive_map for every language in
// turn, porting __compute_subarchives's partial-order algorithm: each
// pending arcid is compared, in both directions, against same-language
// peers whose first page is similar to its own. A peer that is a proper
// subsequence of the running maximum is discarded; a peer the running
// maximum is a proper subsequence of becomes the new maximum; an
// equal-content tie is broken by the §4.6 retention rubric
// (BuildCandidate/Score), falling back to the lexicographically smaller
// arcid. Whichever side loses has its subtree re-pointed to the winner.
func ComputeSubarchives(ctx context.Context, store *vectorstore.Store, lrr *lrrclient.Client, threshold float64, log *zap.Logger) error {
	log = log.Named("similarity")
	for _, lang := range allLanguages {
		if err := computeSubarchivesForLanguage(ctx, store, lrr, lang, threshold, log); err != nil {
			return err
		}
	}
	return nil
}

func computeSubarchivesForLanguage(ctx context.Context, store *vectorstore.Store, lrr *lrrclient.Client, lang vectorstore.NhArchiveLanguage, threshold float64, log *zap.Logger) error {
	log = log.With(zap.String("language", string(lang)))

	// get_archives_not_in_subarchive_map is re-queried every pass: pages
	// for a pending archive may not have finished embedding yet, so a loop
	// rather than a single snapshot lets later passes pick up stragglers.
	for {
		pending, err := store.GetArchivesNotInSubarchiveMap(string(lang))
		if err != nil {
			return Error.Wrap(err)
		}
		if len(pending) == 0 {
			return nil
		}

		progressed := false
		for _, archiveID := range pending {
			ok, err := processArchive(ctx, store, lrr, archiveID, threshold, log)
			if err != nil {
				return err
			}
			progressed = progressed || ok
		}
		if !progressed {
			// every remaining pending archive is still missing embeddings;
			// stop so the caller's cycle can retry on its next interval.
			return nil
		}
	}
}

// processArchive runs __compute_subarchives's inner _process_archive_id for
// one arcid. It reports false (no-op) when archiveID's pages aren't
// embedded yet, leaving it pending for a later pass.
func processArchive(ctx context.Context, store *vectorstore.Store, lrr *lrrclient.Client, archiveID string, threshold float64, log *zap.Logger) (bool, error) {
	firstPage, err := store.GetFirstPage(archiveID)
	if err != nil {
		return false, Error.Wrap(err)
	}
	if firstPage == nil {
		return false, nil
	}

	peers, err := store.CandidatesBySimilarFirstPage(archiveID, firstPage.Embedding, 1-threshold, candidatePeerLimit)
	if err != nil {
		return false, Error.Wrap(err)
	}

	currMax := archiveID
	currMaxPages, err := store.GetPages(archiveID)
	if err != nil {
		return false, Error.Wrap(err)
	}

	for _, peer := range peers {
		// set peer = max(peer) the way the original resolves through
		// get_proper_subarchive before comparing.
		if resolved, err := store.GetRootSubarchive(peer); err == nil {
			peer = resolved
		} else {
			return false, Error.Wrap(err)
		}
		if peer == currMax {
			continue
		}

		peerPages, err := store.GetPages(peer)
		if err != nil {
			return false, Error.Wrap(err)
		}
		if len(peerPages) == 0 {
			continue // peer not embedded yet
		}

		currVectors := toVectors(currMaxPages)
		peerVectors := toVectors(peerPages)

		isSub := IsSubarchiveOf(currVectors, peerVectors, threshold)          // currMax < peer
		isProperSub := isSub && len(currMaxPages) != len(peerPages)
		isSup := IsSubarchiveOf(peerVectors, currVectors, threshold)          // peer < currMax
		isProperSup := isSup && len(peerPages) != len(currMaxPages)

		var keepCurrent bool
		switch {
		case isProperSub:
			// currMax is a proper subarchive of peer; peer wins outright.
			keepCurrent = false
		case isProperSup:
			// peer is a proper subarchive of currMax; currMax wins outright.
			keepCurrent = true
		case isSub && isSup:
			// equal-content tie: break with the retention rubric.
			currCandidate, err := BuildCandidate(ctx, store, lrr, currMax)
			if err != nil {
				return false, err
			}
			peerCandidate, err := BuildCandidate(ctx, store, lrr, peer)
			if err != nil {
				return false, err
			}
			winner, _ := Keep(currCandidate, peerCandidate)
			keepCurrent = winner.ArcID == currMax
		default:
			// not comparable; leave both sides alone.
			continue
		}

		if keepCurrent {
			log.Debug("peer subsumed", zap.String("archive", archiveID), zap.String("kept", currMax), zap.String("peer", peer))
			if err := repointSubtree(store, peer, currMax); err != nil {
				return false, err
			}
		} else {
			log.Debug("new maximum found", zap.String("archive", archiveID), zap.String("old_max", currMax), zap.String("new_max", peer))
			// Strengthening beyond the original: re-point currMax's own
			// existing children too, not just peer's, so every arcid under
			// the old root collapses onto the new one in the same pass
			// instead of needing a second compute run to flatten (see
			// DESIGN.md).
			if err := repointSubtree(store, currMax, peer); err != nil {
				return false, err
			}
			currMax = peer
			currMaxPages = peerPages
		}
	}

	if currMax == archiveID {
		log.Info("recorded root", zap.String("arcid", archiveID))
		return true, store.SetParent(archiveID, nil)
	}
	log.Info("recorded subarchive", zap.String("arcid", archiveID), zap.String("parent", currMax))
	return true, nil
}

// repointSubtree points loser, and every one of loser's existing depth-1
// children, at winner — insert_subarchive_map(loser, winner) plus
// get_subarchive_map_children_by_archive_id's child re-pointing loop.
func repointSubtree(store *vectorstore.Store, loser, winner string) error {
	if err := store.SetParent(loser, &winner); err != nil {
		return Error.Wrap(err)
	}
	children, err := store.Children(loser)
	if err != nil {
		return Error.Wrap(err)
	}
	for _, child := range children {
		if err := store.SetParent(child, &winner); err != nil {
			return Error.Wrap(err)
		}
	}
	return nil
}

func toVectors(pages []vectorstore.Page) [][]float32 {
	out := make([][]float32, len(pages))
	for i, p := range pages {
		out[i] = p.Embedding
	}
	return out
}
