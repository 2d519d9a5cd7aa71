package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// RenderInfo is the cached render of one annotated image. Fingerprint
// identifies the annotation list and canvas it was drawn from.
type RenderInfo struct {
	ImageID     string
	Fingerprint string
	RenderPath  *string
	Width       *int
	Height      *int
	Status      string
	Error       *string
	UpdatedAt   int64
}

// GetRenderInfo returns the cache row for an image, or sql.ErrNoRows.
func GetRenderInfo(db Querier, imageID string) (RenderInfo, error) {
	var info RenderInfo
	queryBuilder := psql.Select(
		"image_id", "fingerprint", "render_path", "width", "height",
		"status", "error", "updated_at",
	).From("renders").
		Where(sq.Eq{"image_id": imageID}).
		Limit(1)

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return RenderInfo{}, fmt.Errorf("failed to build SQL query for GetRenderInfo: %w", err)
	}

	err = db.QueryRow(sqlStr, args...).Scan(
		&info.ImageID, &info.Fingerprint, &info.RenderPath, &info.Width, &info.Height,
		&info.Status, &info.Error, &info.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RenderInfo{}, sql.ErrNoRows
		}
		return RenderInfo{}, fmt.Errorf("failed to query or scan render info for %s: %w", imageID, err)
	}
	return info, nil
}

// MarkRenderPending records that a render for fingerprint has been queued.
// Any previous result for the image is cleared.
func MarkRenderPending(db Querier, imageID, fingerprint string) error {
	return upsertRender(db, imageID, fingerprint, nil, nil, nil, StatusPending, nil)
}

func MarkRenderProcessing(db Querier, imageID, fingerprint string) error {
	return upsertRender(db, imageID, fingerprint, nil, nil, nil, StatusProcessing, nil)
}

// SetRenderResult stores the outcome of a render. A non-nil taskErr marks the
// row failed.
func SetRenderResult(db Querier, imageID, fingerprint string, renderPath *string, width, height *int, taskErr error) error {
	if taskErr != nil {
		msg := taskErr.Error()
		return upsertRender(db, imageID, fingerprint, nil, nil, nil, StatusFailed, &msg)
	}
	return upsertRender(db, imageID, fingerprint, renderPath, width, height, StatusDone, nil)
}

func upsertRender(db Querier, imageID, fingerprint string, renderPath *string, width, height *int, status string, errMsg *string) error {
	queryBuilder := psql.Insert("renders").
		Columns("image_id", "fingerprint", "render_path", "width", "height", "status", "error", "updated_at").
		Values(imageID, fingerprint, renderPath, width, height, status, errMsg, time.Now().Unix()).
		Suffix("ON CONFLICT(image_id) DO UPDATE SET").
		Suffix("fingerprint = excluded.fingerprint,").
		Suffix("render_path = excluded.render_path,").
		Suffix("width = excluded.width,").
		Suffix("height = excluded.height,").
		Suffix("status = excluded.status,").
		Suffix("error = excluded.error,").
		Suffix("updated_at = excluded.updated_at")

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for render upsert: %w", err)
	}
	if _, err := db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to upsert render info for %s: %w", imageID, err)
	}
	return nil
}

// DeleteRenders drops the cache rows of the given images.
func DeleteRenders(db Querier, imageIDs []string) error {
	if len(imageIDs) == 0 {
		return nil
	}
	sqlStr, args, err := psql.Delete("renders").Where(sq.Eq{"image_id": imageIDs}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build SQL query for DeleteRenders: %w", err)
	}
	if _, err := db.Exec(sqlStr, args...); err != nil {
		return fmt.Errorf("failed to delete renders: %w", err)
	}
	return nil
}
