package vectorstore

import "database/sql"

// NhArchiveLanguage mirrors NhArchiveLanguage, ordered by get_language's
// priority: ENGLISH > CHINESE > JAPANESE > OTHER > NO_TRANSLATE default.
type NhArchiveLanguage string

const (
	LanguageEnglish     NhArchiveLanguage = "english"
	LanguageChinese     NhArchiveLanguage = "chinese"
	LanguageJapanese    NhArchiveLanguage = "japanese"
	LanguageOther       NhArchiveLanguage = "other"
	LanguageNoTranslate NhArchiveLanguage = "no_translate"
)

// GetLanguage inspects a tag list the way get_language does: the first
// matching language tag wins by priority order, falling back to
// LanguageNoTranslate when none match.
func GetLanguage(tags []string) NhArchiveLanguage {
	has := func(tag string) bool {
		for _, t := range tags {
			if t == tag {
				return true
			}
		}
		return false
	}
	switch {
	case has("language:english"):
		return LanguageEnglish
	case has("language:chinese"):
		return LanguageChinese
	case has("language:japanese"):
		return LanguageJapanese
	case has("language:other"):
		return LanguageOther
	default:
		return LanguageNoTranslate
	}
}

// NhentaiArchive is one row of nhentai_archive: the nHentai-specific
// metadata Satellite tracks per arcid for dedup bookkeeping. FavoriteCount
// is -1 when unknown (favorites haven't been fetched for this archive
// yet), matching §3's Data Model.
type NhentaiArchive struct {
	ArcID         string
	NhentaiID     *int64
	Language      NhArchiveLanguage
	FavoriteCount int
	Category      string
}

// UpsertNhentaiArchive inserts or updates a row.
func (s *Store) UpsertNhentaiArchive(a NhentaiArchive) error {
	_, err := s.db.Exec(`
		INSERT INTO nhentai_archive (arcid, nhentai_id, language, favorite_count, category)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (arcid) DO UPDATE SET
			nhentai_id = excluded.nhentai_id, language = excluded.language,
			favorite_count = excluded.favorite_count, category = excluded.category
	`, a.ArcID, a.NhentaiID, string(a.Language), a.FavoriteCount, a.Category)
	return Error.Wrap(err)
}

// GetNhentaiArchive returns the row for arcid, or nil if absent.
func (s *Store) GetNhentaiArchive(arcid string) (*NhentaiArchive, error) {
	row := s.db.QueryRow(`
		SELECT arcid, nhentai_id, language, favorite_count, category FROM nhentai_archive WHERE arcid = $1
	`, arcid)
	var a NhentaiArchive
	var lang string
	if err := row.Scan(&a.ArcID, &a.NhentaiID, &lang, &a.FavoriteCount, &a.Category); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, Error.Wrap(err)
	}
	a.Language = NhArchiveLanguage(lang)
	return &a, nil
}

// SetFavoriteCount updates the favorite_count column, used by
// update_nhentai_favorites.
func (s *Store) SetFavoriteCount(arcid string, count int) error {
	_, err := s.db.Exec(`UPDATE nhentai_archive SET favorite_count = $2 WHERE arcid = $1`, arcid, count)
	return Error.Wrap(err)
}
