package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"study-quest/apperr"
	"study-quest/logger"
	"study-quest/store"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// ObjectUploader stores an object and returns its public URL.
type ObjectUploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

var allowedIconTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

type BadgeIconService struct {
	Store    store.Store
	Uploader ObjectUploader
}

func NewBadgeIconService(st store.Store, up ObjectUploader) *BadgeIconService {
	return &BadgeIconService{Store: st, Uploader: up}
}

// UploadBadgeIcon stores new artwork for a badge and points the catalog entry at it.
func (s *BadgeIconService) UploadBadgeIcon(ctx context.Context, badgeID, filename, contentType string, body io.Reader) (string, error) {
	if s.Uploader == nil {
		return "", apperr.Validation("badge artwork storage is not configured")
	}
	ext, ok := allowedIconTypes[contentType]
	if !ok {
		return "", apperr.Validation("unsupported icon type %q", contentType)
	}
	if e := strings.ToLower(path.Ext(filename)); e != "" && e != ext && !(e == ".jpeg" && ext == ".jpg") {
		return "", apperr.Validation("file extension %s does not match %s", e, contentType)
	}

	def, err := s.Store.GetBadgeDefinition(ctx, badgeID)
	if err != nil {
		return "", err
	}

	// New key per upload so CDN caches never serve stale artwork.
	key := fmt.Sprintf("badges/%s-%s%s", slug.Make(def.Name), uuid.NewString()[:8], ext)
	url, err := s.Uploader.Upload(ctx, key, contentType, body)
	if err != nil {
		return "", apperr.Store(err, "upload icon for badge %s", badgeID)
	}
	if err := s.Store.SetBadgeIcon(ctx, badgeID, url); err != nil {
		return "", err
	}

	logger.L().Infof("🖼️ [BADGES] icon for %s → %s", badgeID, url)
	return url, nil
}
