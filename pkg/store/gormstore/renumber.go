package gormstore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/plugboard/plugboard/pkg/models"
	"github.com/plugboard/plugboard/pkg/store"
)

// rankUpdater reassigns dense 1..N positions to every plugin in one
// (placeholder, language) scope, ranked by current position. Mutations
// leave gaps, duplicates and negative positions behind on purpose; the
// rank pass is what restores the invariant before commit.
//
// Two strategies exist because not every backend can run a correlated
// subquery against the table it is updating. The strategy is picked once
// per Store from the backend capabilities.
type rankUpdater interface {
	recalculate(tx *gorm.DB, placeholderID models.PlaceholderID, language string) error
}

// directRankUpdater renumbers with a single correlated UPDATE. The inner
// SELECT reads from a derived copy of the table, which keeps MySQL happy
// (it refuses to read the update target directly) and guarantees every
// rank is computed against the pre-update snapshot.
type directRankUpdater struct{}

func (directRankUpdater) recalculate(tx *gorm.DB, placeholderID models.PlaceholderID, language string) error {
	const query = `
UPDATE plugins
SET position = (
	SELECT COUNT(*) + 1
	FROM (SELECT placeholder_id, language, position FROM plugins) AS others
	WHERE others.placeholder_id = plugins.placeholder_id
	  AND others.language = plugins.language
	  AND others.position < plugins.position
)
WHERE placeholder_id = ? AND language = ?`

	return tx.Exec(query, placeholderID, language).Error
}

// stagedRankUpdater renumbers in three statements: compute every (id,
// rank) pair into a temp table, apply it, drop it. SQLite re-evaluates a
// correlated UPDATE subquery against rows it has already rewritten, so
// the direct strategy would rank against a half-updated table; staging
// pins all ranks to the pre-update snapshot.
//
// Temp tables are per-connection state, so this strategy is only safe
// inside a transaction, which gorm runs on a single pinned connection.
type stagedRankUpdater struct{}

func (stagedRankUpdater) recalculate(tx *gorm.DB, placeholderID models.PlaceholderID, language string) error {
	const create = `
CREATE TEMPORARY TABLE plugin_ranks AS
SELECT id, (
	SELECT COUNT(*) + 1
	FROM plugins AS others
	WHERE others.placeholder_id = plugins.placeholder_id
	  AND others.language = plugins.language
	  AND others.position < plugins.position
) AS new_position
FROM plugins
WHERE placeholder_id = ? AND language = ?`

	const apply = `
UPDATE plugins
SET position = (SELECT new_position FROM plugin_ranks WHERE plugin_ranks.id = plugins.id)
WHERE id IN (SELECT id FROM plugin_ranks)`

	// A move across placeholders renumbers two scopes in one
	// transaction, so the table from the previous pass must be gone
	// before this one starts.
	if err := tx.Exec(`DROP TABLE IF EXISTS plugin_ranks`).Error; err != nil {
		return err
	}
	if err := tx.Exec(create, placeholderID, language).Error; err != nil {
		return err
	}
	if err := tx.Exec(apply).Error; err != nil {
		return err
	}
	return tx.Exec(`DROP TABLE plugin_ranks`).Error
}

// recalculatePositions runs the backend's rank strategy and then checks
// its work: after renumbering, the scope must hold exactly the positions
// 1..N with no duplicates. A failed check aborts the transaction with
// ErrCorruptSequence rather than committing a broken tree.
func (s *Store) recalculatePositions(tx *gorm.DB, placeholderID models.PlaceholderID, language string) error {
	if err := s.ranks.recalculate(tx, placeholderID, language); err != nil {
		return fmt.Errorf("recalculating positions: %w", err)
	}
	return verifyDense(tx, placeholderID, language)
}

func verifyDense(tx *gorm.DB, placeholderID models.PlaceholderID, language string) error {
	var stats struct {
		Total             int
		DistinctPositions int
		MinPosition       int
		MaxPosition       int
	}
	const query = `
SELECT COUNT(*) AS total,
	COUNT(DISTINCT position) AS distinct_positions,
	COALESCE(MIN(position), 0) AS min_position,
	COALESCE(MAX(position), 0) AS max_position
FROM plugins
WHERE placeholder_id = ? AND language = ?`

	if err := tx.Raw(query, placeholderID, language).Scan(&stats).Error; err != nil {
		return err
	}
	if stats.Total == 0 {
		return nil
	}
	if stats.DistinctPositions != stats.Total || stats.MinPosition != 1 || stats.MaxPosition != stats.Total {
		return fmt.Errorf(
			"placeholder %s language %q holds %d plugins with %d distinct positions spanning %d..%d: %w",
			placeholderID, language, stats.Total, stats.DistinctPositions, stats.MinPosition, stats.MaxPosition,
			store.ErrCorruptSequence,
		)
	}
	return nil
}
