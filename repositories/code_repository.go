package repositories

import (
	"database/sql"
	"fmt"

	"github.com/naviport/portaccess/models"
)

// maxCodeProbes bounds the defensive search for a free code. Hitting the
// bound means the code space for a kind/year is corrupted, not merely busy.
const maxCodeProbes = 1000

// CodeRepository allocates unique human-readable codes per kind and year
type CodeRepository interface {
	Allocate(kind models.CodeKind, year int) (string, error)
}

type codeRepository struct {
	db *sql.DB
}

// NewCodeRepository creates a new code repository
func NewCodeRepository(db *sql.DB) CodeRepository {
	return &codeRepository{db: db}
}

// codeTable maps a code kind to the table whose code column it must not
// collide with.
func codeTable(kind models.CodeKind) (string, error) {
	switch kind {
	case models.CodeRequest:
		return "access_requests", nil
	case models.CodeAuthorization:
		return "authorizations", nil
	case models.CodeEscalation:
		return "escalations", nil
	case models.CodeExtension:
		return "extension_requests", nil
	case models.CodeDiscrepancy:
		return "discrepancies", nil
	}
	return "", fmt.Errorf("unknown code kind %q", kind)
}

// Allocate returns the next free code for the kind/year. The sequence row
// is advanced inside a single transaction whose first statement takes a
// write lock, so two concurrent allocations cannot observe the same
// last-used number. The probe loop then skips past any codes inserted out
// of band (imports, manual fixes).
func (r *codeRepository) Allocate(kind models.CodeKind, year int) (string, error) {
	table, err := codeTable(kind)
	if err != nil {
		return "", err
	}

	tx, err := r.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin allocation: %w", err)
	}
	defer tx.Rollback()

	// The upsert is a write, which serializes this transaction against
	// other allocators before the sequence is read.
	_, err = tx.Exec(`
		INSERT INTO code_sequences (kind, year, last_seq) VALUES (?, ?, 0)
		ON CONFLICT(kind, year) DO UPDATE SET last_seq = last_seq
	`, string(kind), year)
	if err != nil {
		return "", fmt.Errorf("failed to lock code sequence: %w", err)
	}

	var lastSeq int
	err = tx.QueryRow(
		`SELECT last_seq FROM code_sequences WHERE kind = ? AND year = ?`,
		string(kind), year,
	).Scan(&lastSeq)
	if err != nil {
		return "", fmt.Errorf("failed to read code sequence: %w", err)
	}

	seq := lastSeq + 1
	var code string
	found := false
	for probes := 0; probes < maxCodeProbes; probes++ {
		code = models.FormatCode(kind, year, seq)
		var exists int
		err = tx.QueryRow(
			fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE code = ?`, table), code,
		).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("failed to probe code %s: %w", code, err)
		}
		if exists == 0 {
			found = true
			break
		}
		seq++
	}
	if !found {
		return "", fmt.Errorf("code space exhausted for %s/%d after %d probes", kind, year, maxCodeProbes)
	}

	_, err = tx.Exec(
		`UPDATE code_sequences SET last_seq = ? WHERE kind = ? AND year = ?`,
		seq, string(kind), year,
	)
	if err != nil {
		return "", fmt.Errorf("failed to advance code sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit allocation: %w", err)
	}

	return code, nil
}
