package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/htsget-drs-server/internal/domain"
)

const drsObjectColumns = `id, name, self_uri, size, created_time, updated_time,
	version, mime_type, description, aliases, checksums, cohort_id`

// GetDrsObject retrieves a DRS object with its access methods and contents.
// Transient store errors are retried up to 3 times with randomized backoff.
func (r *Repository) GetDrsObject(ctx context.Context, id string) (*domain.DrsObject, error) {
	return withRetry(r, "get_drs_object", func() (*domain.DrsObject, error) {
		return r.getDrsObject(ctx, id)
	})
}

func (r *Repository) getDrsObject(ctx context.Context, id string) (*domain.DrsObject, error) {
	// bundle contents link to children by name, so both spellings resolve
	row := r.db.QueryRowContext(ctx,
		`SELECT `+drsObjectColumns+` FROM drs_objects WHERE id = ? OR name = ? LIMIT 1`, id, id)

	obj, err := scanDrsObject(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("drs object %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting drs object: %w", err)
	}

	if err := r.loadChildren(ctx, obj); err != nil {
		return nil, err
	}
	return obj, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDrsObject(s scanner) (*domain.DrsObject, error) {
	var obj domain.DrsObject
	var aliases, checksums string
	var cohort sql.NullString
	var created, updated sql.NullTime

	err := s.Scan(
		&obj.ID, &obj.Name, &obj.SelfURI, &obj.Size, &created, &updated,
		&obj.Version, &obj.MimeType, &obj.Description, &aliases, &checksums, &cohort,
	)
	if err != nil {
		return nil, err
	}
	if created.Valid {
		obj.CreatedTime = created.Time
	}
	if updated.Valid {
		obj.UpdatedTime = updated.Time
	}
	obj.Cohort = cohort.String
	if err := json.Unmarshal([]byte(aliases), &obj.Aliases); err != nil {
		return nil, fmt.Errorf("decoding aliases: %w", err)
	}
	if err := json.Unmarshal([]byte(checksums), &obj.Checksums); err != nil {
		return nil, fmt.Errorf("decoding checksums: %w", err)
	}
	if obj.Checksums == nil {
		obj.Checksums = []domain.Checksum{}
	}
	return &obj, nil
}

func (r *Repository) loadChildren(ctx context.Context, obj *domain.DrsObject) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, access_id, region, url FROM access_methods
		 WHERE drs_object_id = ? ORDER BY id`, obj.ID)
	if err != nil {
		return fmt.Errorf("getting access methods: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m domain.AccessMethod
		if err := rows.Scan(&m.Type, &m.AccessID, &m.Region, &m.URL); err != nil {
			return fmt.Errorf("scanning access method: %w", err)
		}
		obj.AccessMethods = append(obj.AccessMethods, m)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating access methods: %w", err)
	}

	crows, err := r.db.QueryContext(ctx,
		`SELECT name, contents_id, drs_uri, contents FROM contents_objects
		 WHERE drs_object_id = ? ORDER BY id`, obj.ID)
	if err != nil {
		return fmt.Errorf("getting contents objects: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var c domain.ContentsObject
		var drsURI, contents string
		if err := crows.Scan(&c.Name, &c.ID, &drsURI, &contents); err != nil {
			return fmt.Errorf("scanning contents object: %w", err)
		}
		if err := json.Unmarshal([]byte(drsURI), &c.DrsURI); err != nil {
			return fmt.Errorf("decoding drs_uri: %w", err)
		}
		if err := json.Unmarshal([]byte(contents), &c.Contents); err != nil {
			return fmt.Errorf("decoding contents: %w", err)
		}
		obj.Contents = append(obj.Contents, c)
	}
	return crows.Err()
}

// ListDrsObjects lists objects, filtered to one cohort when cohortID is
// non-empty. Children are not expanded.
func (r *Repository) ListDrsObjects(ctx context.Context, cohortID string) ([]*domain.DrsObject, error) {
	query := `SELECT ` + drsObjectColumns + ` FROM drs_objects`
	args := []interface{}{}
	if cohortID != "" {
		query += ` WHERE cohort_id = ?`
		args = append(args, cohortID)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing drs objects: %w", err)
	}
	defer rows.Close()

	var objs []*domain.DrsObject
	for rows.Next() {
		obj, err := scanDrsObject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning drs object: %w", err)
		}
		objs = append(objs, obj)
	}
	return objs, rows.Err()
}

// CreateDrsObject upserts an object: the row is replaced, all child access
// methods and contents objects are swapped atomically, the cohort is
// auto-created when missing, and self_uri is minted from the service host.
// When ReferenceGenome is set on input the VariantFile row is created or
// updated too.
func (r *Repository) CreateDrsObject(ctx context.Context, obj *domain.DrsObject) (*domain.DrsObject, error) {
	return withRetry(r, "create_drs_object", func() (*domain.DrsObject, error) {
		return r.createDrsObject(ctx, obj)
	})
}

func (r *Repository) createDrsObject(ctx context.Context, obj *domain.DrsObject) (*domain.DrsObject, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if obj.Cohort != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO cohorts (id) VALUES (?)`, obj.Cohort); err != nil {
			return nil, fmt.Errorf("ensuring cohort: %w", err)
		}
	}

	now := time.Now().UTC()
	created := obj.CreatedTime
	if created.IsZero() {
		created = now
	}
	selfURI := fmt.Sprintf("drs://%s/%s", r.serviceHost, obj.Name)

	aliases, err := json.Marshal(emptyIfNil(obj.Aliases))
	if err != nil {
		return nil, fmt.Errorf("encoding aliases: %w", err)
	}
	checksums, err := json.Marshal(obj.Checksums)
	if err != nil {
		return nil, fmt.Errorf("encoding checksums: %w", err)
	}
	if obj.Checksums == nil {
		checksums = []byte("[]")
	}

	var cohort interface{}
	if obj.Cohort != "" {
		cohort = obj.Cohort
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO drs_objects
			(id, name, self_uri, size, created_time, updated_time,
			 version, mime_type, description, aliases, checksums, cohort_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			self_uri = excluded.self_uri,
			size = excluded.size,
			updated_time = excluded.updated_time,
			version = excluded.version,
			mime_type = excluded.mime_type,
			description = excluded.description,
			aliases = excluded.aliases,
			checksums = excluded.checksums`,
		obj.ID, obj.Name, selfURI, obj.Size, created, now,
		obj.Version, obj.MimeType, obj.Description, string(aliases), string(checksums), cohort,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting drs object: %w", err)
	}

	// child rows are replaced wholesale on every upsert
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM access_methods WHERE drs_object_id = ?`, obj.ID); err != nil {
		return nil, fmt.Errorf("clearing access methods: %w", err)
	}
	for _, m := range obj.AccessMethods {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO access_methods (drs_object_id, type, access_id, region, url)
			VALUES (?, ?, ?, ?, ?)`,
			obj.ID, m.Type, m.AccessID, m.Region, m.URL); err != nil {
			return nil, fmt.Errorf("inserting access method: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM contents_objects WHERE drs_object_id = ?`, obj.ID); err != nil {
		return nil, fmt.Errorf("clearing contents objects: %w", err)
	}
	for _, c := range obj.Contents {
		drsURI, err := json.Marshal(emptyIfNil(c.DrsURI))
		if err != nil {
			return nil, fmt.Errorf("encoding drs_uri: %w", err)
		}
		contents, err := json.Marshal(emptyIfNil(c.Contents))
		if err != nil {
			return nil, fmt.Errorf("encoding contents: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO contents_objects (drs_object_id, name, contents_id, role, drs_uri, contents)
			VALUES (?, ?, ?, ?, ?, ?)`,
			obj.ID, c.Name, c.ID, string(domain.ClassifyContent(c.Name)),
			string(drsURI), string(contents)); err != nil {
			return nil, fmt.Errorf("inserting contents object: %w", err)
		}
	}

	if obj.ReferenceGenome != "" {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO variantfiles (id, reference_genome)
			VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET reference_genome = excluded.reference_genome`,
			obj.ID, obj.ReferenceGenome); err != nil {
			return nil, fmt.Errorf("upserting variantfile: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing drs object: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"object_id": obj.ID,
		"cohort":    obj.Cohort,
	}).Info("DRS object stored")

	return r.getDrsObject(ctx, obj.ID)
}

// DeleteDrsObject removes an object. Access methods, contents objects, the
// variantfile and its sample, header and bucket memberships cascade at
// schema level.
func (r *Repository) DeleteDrsObject(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM drs_objects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting drs object: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("drs object %s: %w", id, domain.ErrNotFound)
	}
	r.log.WithField("object_id", id).Info("DRS object deleted")
	return nil
}

// UpdateObjectStats persists the indexer-computed size and checksums.
func (r *Repository) UpdateObjectStats(ctx context.Context, id string, size int64, checksums []domain.Checksum) error {
	encoded, err := json.Marshal(checksums)
	if err != nil {
		return fmt.Errorf("encoding checksums: %w", err)
	}
	if checksums == nil {
		encoded = []byte("[]")
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE drs_objects SET size = ?, checksums = ?, updated_time = ? WHERE id = ?`,
		size, string(encoded), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating object stats: %w", err)
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
