package content

import (
	"database/sql"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avenlon/sitepulse/errors"
)

// Store handles access to posts, attachments, and post metadata
type Store struct {
	db *sql.DB
}

// NewStore creates a new content store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// PublicTypes returns the names of all registered public post types.
func (s *Store) PublicTypes() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM post_types WHERE public = 1 ORDER BY name`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list public post types")
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "failed to scan post type")
		}
		types = append(types, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating post types")
	}
	return types, nil
}

// PublishedIDs returns the IDs of published posts of the given types,
// ordered by ascending ID.
func (s *Store) PublishedIDs(types []string) ([]int64, error) {
	return s.idsByTypes(types, true)
}

// AllIDs returns the IDs of posts of any status of the given types,
// ordered by ascending ID.
func (s *Store) AllIDs(types []string) ([]int64, error) {
	return s.idsByTypes(types, false)
}

func (s *Store) idsByTypes(types []string, publishedOnly bool) ([]int64, error) {
	if len(types) == 0 {
		return nil, nil
	}

	query := `SELECT id FROM posts WHERE post_type IN (` + placeholders(len(types)) + `)`
	args := make([]interface{}, 0, len(types)+1)
	for _, t := range types {
		args = append(args, t)
	}
	if publishedOnly {
		query += ` AND status = ?`
		args = append(args, StatusPublish)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list post IDs")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan post ID")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating post IDs")
	}
	return ids, nil
}

// SetMeta writes meta_value under meta_key for the given post, replacing any
// previous value. Rewriting the same value is harmless.
func (s *Store) SetMeta(postID int64, metaKey, metaValue string) error {
	query := `
		INSERT INTO post_meta (post_id, meta_key, meta_value) VALUES (?, ?, ?)
		ON CONFLICT(post_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value
	`
	if _, err := s.db.Exec(query, postID, metaKey, metaValue); err != nil {
		return errors.Wrapf(err, "failed to set meta %s on post %d", metaKey, postID)
	}
	return nil
}

// GetMeta returns the meta value stored under metaKey for the given post,
// or false if none exists.
func (s *Store) GetMeta(postID int64, metaKey string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT meta_value FROM post_meta WHERE post_id = ? AND meta_key = ?`, postID, metaKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to get meta %s for post %d", metaKey, postID)
	}
	return value, true, nil
}

// Inspect returns the maintenance projection of a post, or nil if the post
// no longer exists.
func (s *Store) Inspect(id int64) (*Info, error) {
	var info Info
	var featuredImageID sql.NullInt64
	err := s.db.QueryRow(`SELECT id, status, content, featured_image_id FROM posts WHERE id = ?`, id).
		Scan(&info.ID, &info.Status, &info.Content, &featuredImageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to inspect post %d", id)
	}

	if featuredImageID.Valid {
		valid, err := s.attachmentIsImage(featuredImageID.Int64)
		if err != nil {
			return nil, err
		}
		info.FeaturedImageValid = valid
	}

	return &info, nil
}

// attachmentIsImage reports whether the attachment exists and carries an
// image mime type.
func (s *Store) attachmentIsImage(id int64) (bool, error) {
	var mimeType string
	err := s.db.QueryRow(`SELECT mime_type FROM attachments WHERE id = ?`, id).Scan(&mimeType)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to look up attachment %d", id)
	}
	return strings.HasPrefix(mimeType, "image/"), nil
}

// ResolveLink resolves a local href to a post and returns that post's
// status. Two forms are understood: the numeric query form "?p=<id>" and the
// path form "/<slug>". Returns "" when nothing resolves.
func (s *Store) ResolveLink(href string) (string, error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", nil // Unparseable href resolves to nothing
	}

	// Numeric form: /?p=123
	if p := u.Query().Get("p"); p != "" {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return "", nil
		}
		return s.statusByID(id)
	}

	// Path form: /my-post-slug (possibly with trailing slash)
	slug := strings.Trim(u.Path, "/")
	if slug == "" {
		return "", nil
	}
	// Nested paths resolve by their final segment
	if idx := strings.LastIndex(slug, "/"); idx >= 0 {
		slug = slug[idx+1:]
	}

	var status string
	err = s.db.QueryRow(`SELECT status FROM posts WHERE slug = ? ORDER BY id ASC LIMIT 1`, slug).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve link %s", href)
	}
	return status, nil
}

func (s *Store) statusByID(id int64) (string, error) {
	var status string
	err := s.db.QueryRow(`SELECT status FROM posts WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve post %d", id)
	}
	return status, nil
}

// CreatePost inserts a post and returns its assigned ID.
func (s *Store) CreatePost(post *Post) (int64, error) {
	now := time.Now()
	query := `
		INSERT INTO posts (post_type, status, title, slug, content, featured_image_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	var featuredImageID sql.NullInt64
	if post.FeaturedImageID != nil {
		featuredImageID = sql.NullInt64{Int64: *post.FeaturedImageID, Valid: true}
	}

	result, err := s.db.Exec(query, post.PostType, post.Status, post.Title, post.Slug, post.Content, featuredImageID, now, now)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create post")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get post ID")
	}
	post.ID = id
	return id, nil
}

// CreateAttachment inserts an attachment and returns its assigned ID.
func (s *Store) CreateAttachment(mimeType, path string) (int64, error) {
	result, err := s.db.Exec(`INSERT INTO attachments (mime_type, path) VALUES (?, ?)`, mimeType, path)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create attachment")
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get attachment ID")
	}
	return id, nil
}

// DeletePost removes a post. Used when content is retired between
// enumeration and collection; the scan engine treats the gap as a skip.
func (s *Store) DeletePost(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM posts WHERE id = ?`, id); err != nil {
		return errors.Wrapf(err, "failed to delete post %d", id)
	}
	return nil
}

// RegisterType adds a post type to the registry (or updates its visibility).
func (s *Store) RegisterType(name string, public bool) error {
	query := `
		INSERT INTO post_types (name, public) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET public = excluded.public
	`
	if _, err := s.db.Exec(query, name, public); err != nil {
		return errors.Wrapf(err, "failed to register post type %s", name)
	}
	return nil
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
