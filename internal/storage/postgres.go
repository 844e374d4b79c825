package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"photovault/internal/models"
)

const pgUniqueViolation = "23505"

// PostgresConfig describes how the repository initialises its connection
// pool. Zero values defer to pgxpool defaults.
type PostgresConfig struct {
	DSN                 string
	MaxConnections      int32
	MinConnections      int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	HealthCheckInterval time.Duration
	ConnectTimeout      time.Duration
	ApplicationName     string
}

// Postgres is the pgxpool-backed Repository. Every owner-scoped statement
// carries the owner id in its WHERE clause so a mismatched row behaves
// exactly like a missing one.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a pooled Postgres repository. The caller must ensure
// database migrations have been applied prior to invoking this constructor.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (p *Postgres) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	username := strings.TrimSpace(params.Username)
	if username == "" {
		return models.User{}, errors.New("username is required")
	}
	hashed, err := hashPassword(params.Password)
	if err != nil {
		return models.User{}, err
	}
	roles := params.Roles
	if roles == nil {
		roles = []string{}
	}

	user := models.User{Username: username, PasswordHash: hashed, Roles: roles}
	err = p.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, roles)
         VALUES ($1, $2, $3)
         RETURNING id, created_at`,
		username, hashed, roles,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (p *Postgres) AuthenticateUser(ctx context.Context, username, password string) (models.User, error) {
	if password == "" {
		return models.User{}, ErrInvalidCredentials
	}
	var user models.User
	err := p.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, roles, created_at
         FROM users WHERE lower(username) = lower($1)`,
		username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Roles, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	err := p.pool.QueryRow(ctx,
		`SELECT id, username, password_hash, roles, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Roles, &user.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, username, roles, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (p *Postgres) SearchUsers(ctx context.Context, term string) ([]models.User, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, username, roles, created_at FROM users
         WHERE username ILIKE '%' || $1 || '%' ORDER BY id`,
		term)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanUsers(rows pgx.Rows) ([]models.User, error) {
	users := make([]models.User, 0)
	for rows.Next() {
		var user models.User
		if err := rows.Scan(&user.ID, &user.Username, &user.Roles, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (p *Postgres) UpdateUser(ctx context.Context, id int64, update UserUpdate) error {
	assignments := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if update.Username != nil {
		username := strings.TrimSpace(*update.Username)
		if username == "" {
			return errors.New("username is required")
		}
		args = append(args, username)
		assignments = append(assignments, fmt.Sprintf("username = $%d", len(args)))
	}
	if update.Password != nil {
		hashed, err := hashPassword(*update.Password)
		if err != nil {
			return err
		}
		args = append(args, hashed)
		assignments = append(assignments, fmt.Sprintf("password_hash = $%d", len(args)))
	}
	if update.Roles != nil {
		args = append(args, update.Roles)
		assignments = append(assignments, fmt.Sprintf("roles = $%d", len(args)))
	}
	if len(assignments) == 0 {
		return errors.New("no fields to update")
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d`, strings.Join(assignments, ", "), len(args))

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteUser(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreatePhoto(ctx context.Context, params CreatePhotoParams) (models.Photo, error) {
	if strings.TrimSpace(params.Title) == "" {
		return models.Photo{}, errors.New("title is required")
	}
	photo := models.Photo{
		OwnerID:     params.OwnerID,
		Title:       params.Title,
		CaptureDate: params.CaptureDate,
		Tags:        params.Tags,
		ContentType: params.ContentType,
		MediaToken:  params.MediaToken,
		SizeBytes:   int64(len(params.Content)),
	}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO photos (owner_id, title, capture_date, tags, content_type, media_token, content)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         RETURNING id, created_at`,
		params.OwnerID, params.Title, params.CaptureDate, params.Tags,
		params.ContentType, params.MediaToken, params.Content,
	).Scan(&photo.ID, &photo.CreatedAt)
	if err != nil {
		return models.Photo{}, fmt.Errorf("create photo: %w", err)
	}
	return photo, nil
}

func (p *Postgres) GetPhotoContent(ctx context.Context, id int64) (models.PhotoContent, error) {
	var photo models.PhotoContent
	err := p.pool.QueryRow(ctx,
		`SELECT id, owner_id, title, capture_date, tags, content_type, media_token,
                octet_length(content), created_at, content
         FROM photos WHERE id = $1`,
		id,
	).Scan(&photo.ID, &photo.OwnerID, &photo.Title, &photo.CaptureDate, &photo.Tags,
		&photo.ContentType, &photo.MediaToken, &photo.SizeBytes, &photo.CreatedAt, &photo.Content)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PhotoContent{}, ErrNotFound
	}
	if err != nil {
		return models.PhotoContent{}, fmt.Errorf("get photo: %w", err)
	}
	return photo, nil
}

func (p *Postgres) ListPhotos(ctx context.Context, ownerID int64) ([]models.Photo, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, owner_id, title, capture_date, tags, content_type, media_token,
                octet_length(content), created_at
         FROM photos WHERE owner_id = $1 ORDER BY id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list photos: %w", err)
	}
	defer rows.Close()
	return scanPhotos(rows)
}

func (p *Postgres) SearchPhotos(ctx context.Context, ownerID int64, term string) ([]models.Photo, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, owner_id, title, capture_date, tags, content_type, media_token,
                octet_length(content), created_at
         FROM photos
         WHERE owner_id = $1 AND (title ILIKE '%' || $2 || '%' OR tags ILIKE '%' || $2 || '%')
         ORDER BY id`,
		ownerID, term)
	if err != nil {
		return nil, fmt.Errorf("search photos: %w", err)
	}
	defer rows.Close()
	return scanPhotos(rows)
}

func scanPhotos(rows pgx.Rows) ([]models.Photo, error) {
	photos := make([]models.Photo, 0)
	for rows.Next() {
		var photo models.Photo
		if err := rows.Scan(&photo.ID, &photo.OwnerID, &photo.Title, &photo.CaptureDate,
			&photo.Tags, &photo.ContentType, &photo.MediaToken, &photo.SizeBytes, &photo.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

func (p *Postgres) UpdatePhoto(ctx context.Context, ownerID, photoID int64, update PhotoUpdate) error {
	assignments := make([]string, 0, 3)
	args := make([]any, 0, 5)
	if update.Title != nil {
		args = append(args, *update.Title)
		assignments = append(assignments, fmt.Sprintf("title = $%d", len(args)))
	}
	if update.CaptureDate != nil {
		args = append(args, *update.CaptureDate)
		assignments = append(assignments, fmt.Sprintf("capture_date = $%d", len(args)))
	}
	if update.Tags != nil {
		args = append(args, *update.Tags)
		assignments = append(assignments, fmt.Sprintf("tags = $%d", len(args)))
	}
	if len(assignments) == 0 {
		return errors.New("no fields to update")
	}
	args = append(args, photoID, ownerID)
	query := fmt.Sprintf(`UPDATE photos SET %s WHERE id = $%d AND owner_id = $%d`,
		strings.Join(assignments, ", "), len(args)-1, len(args))

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeletePhoto(ctx context.Context, ownerID, photoID int64) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM photos WHERE id = $1 AND owner_id = $2`, photoID, ownerID)
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateAlbum(ctx context.Context, params CreateAlbumParams) (models.Album, error) {
	if strings.TrimSpace(params.Title) == "" {
		return models.Album{}, errors.New("title is required")
	}
	album := models.Album{OwnerID: params.OwnerID, Title: params.Title, Tags: params.Tags}
	err := p.pool.QueryRow(ctx,
		`INSERT INTO albums (owner_id, title, tags) VALUES ($1, $2, $3)
         RETURNING id, created_at`,
		params.OwnerID, params.Title, params.Tags,
	).Scan(&album.ID, &album.CreatedAt)
	if err != nil {
		return models.Album{}, fmt.Errorf("create album: %w", err)
	}
	return album, nil
}

func (p *Postgres) ListAlbums(ctx context.Context, ownerID int64) ([]models.Album, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, owner_id, title, tags, created_at FROM albums
         WHERE owner_id = $1 ORDER BY id`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("list albums: %w", err)
	}
	defer rows.Close()
	return scanAlbums(rows)
}

func (p *Postgres) SearchAlbums(ctx context.Context, ownerID int64, term string) ([]models.Album, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, owner_id, title, tags, created_at FROM albums
         WHERE owner_id = $1 AND (title ILIKE '%' || $2 || '%' OR tags ILIKE '%' || $2 || '%')
         ORDER BY id`,
		ownerID, term)
	if err != nil {
		return nil, fmt.Errorf("search albums: %w", err)
	}
	defer rows.Close()
	return scanAlbums(rows)
}

func scanAlbums(rows pgx.Rows) ([]models.Album, error) {
	albums := make([]models.Album, 0)
	for rows.Next() {
		var album models.Album
		if err := rows.Scan(&album.ID, &album.OwnerID, &album.Title, &album.Tags, &album.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}
		albums = append(albums, album)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate albums: %w", err)
	}
	return albums, nil
}

func (p *Postgres) UpdateAlbum(ctx context.Context, ownerID, albumID int64, update AlbumUpdate) error {
	assignments := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if update.Title != nil {
		args = append(args, *update.Title)
		assignments = append(assignments, fmt.Sprintf("title = $%d", len(args)))
	}
	if update.Tags != nil {
		args = append(args, *update.Tags)
		assignments = append(assignments, fmt.Sprintf("tags = $%d", len(args)))
	}
	if len(assignments) == 0 {
		return errors.New("no fields to update")
	}
	args = append(args, albumID, ownerID)
	query := fmt.Sprintf(`UPDATE albums SET %s WHERE id = $%d AND owner_id = $%d`,
		strings.Join(assignments, ", "), len(args)-1, len(args))

	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update album: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteAlbum(ctx context.Context, ownerID, albumID int64) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM albums WHERE id = $1 AND owner_id = $2`, albumID, ownerID)
	if err != nil {
		return fmt.Errorf("delete album: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AddAlbumPhoto links a photo into an album. Both rows must belong to the
// owner; the checks and the insert run in one transaction so a concurrent
// delete cannot slip between them.
func (p *Postgres) AddAlbumPhoto(ctx context.Context, ownerID, albumID, photoID int64) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var one int
		err := tx.QueryRow(ctx,
			`SELECT 1 FROM albums WHERE id = $1 AND owner_id = $2 FOR SHARE`,
			albumID, ownerID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check album: %w", err)
		}
		err = tx.QueryRow(ctx,
			`SELECT 1 FROM photos WHERE id = $1 AND owner_id = $2 FOR SHARE`,
			photoID, ownerID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check photo: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO album_photos (album_id, photo_id) VALUES ($1, $2)
             ON CONFLICT DO NOTHING`,
			albumID, photoID); err != nil {
			return fmt.Errorf("link photo: %w", err)
		}
		return nil
	})
}

func (p *Postgres) ListAlbumPhotos(ctx context.Context, ownerID, albumID int64) ([]models.PhotoContent, error) {
	var photos []models.PhotoContent
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var one int
		err := tx.QueryRow(ctx,
			`SELECT 1 FROM albums WHERE id = $1 AND owner_id = $2`,
			albumID, ownerID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check album: %w", err)
		}
		rows, err := tx.Query(ctx,
			`SELECT p.id, p.owner_id, p.title, p.capture_date, p.tags, p.content_type,
                    p.media_token, octet_length(p.content), p.created_at, p.content
             FROM photos p
             JOIN album_photos ap ON ap.photo_id = p.id
             WHERE ap.album_id = $1
             ORDER BY p.id`,
			albumID)
		if err != nil {
			return fmt.Errorf("list album photos: %w", err)
		}
		defer rows.Close()
		photos = make([]models.PhotoContent, 0)
		for rows.Next() {
			var photo models.PhotoContent
			if err := rows.Scan(&photo.ID, &photo.OwnerID, &photo.Title, &photo.CaptureDate,
				&photo.Tags, &photo.ContentType, &photo.MediaToken, &photo.SizeBytes,
				&photo.CreatedAt, &photo.Content); err != nil {
				return fmt.Errorf("scan album photo: %w", err)
			}
			photos = append(photos, photo)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate album photos: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photos, nil
}

func (p *Postgres) RemoveAlbumPhoto(ctx context.Context, ownerID, albumID, photoID int64) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM album_photos
         WHERE album_id = $1 AND photo_id = $2
           AND album_id IN (SELECT id FROM albums WHERE id = $1 AND owner_id = $3)`,
		albumID, photoID, ownerID)
	if err != nil {
		return fmt.Errorf("unlink photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
