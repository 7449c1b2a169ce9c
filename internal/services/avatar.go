package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
	"github.com/taskhub/apiserver/internal/storage"
	"github.com/taskhub/apiserver/internal/store"
)

const (
	avatarEdge        = 250
	avatarContentType = "image/png"
)

// AvatarService normalizes uploaded profile images to fixed-dimension
// PNGs and stores them under a deterministic per-user key. The avatar's
// lifecycle is independent of the profile fields.
type AvatarService struct {
	storage *storage.Storage
}

func NewAvatarService(st *storage.Storage) *AvatarService {
	return &AvatarService{storage: st}
}

func avatarKey(userID int) string {
	return fmt.Sprintf("avatars/%d.png", userID)
}

// Upload decodes the payload, resizes it to 250x250, re-encodes as PNG,
// and stores it, replacing any previous avatar.
func (s *AvatarService) Upload(ctx context.Context, userID int, data []byte) error {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return &ValidationError{Field: "avatar", Reason: "is not a valid image"}
	}

	normalized := imaging.Resize(img, avatarEdge, avatarEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, normalized, imaging.PNG); err != nil {
		return err
	}

	return s.storage.Put(ctx, avatarKey(userID), &buf, int64(buf.Len()), avatarContentType)
}

// Get returns the stored PNG bytes, or store.ErrNotFound when the user
// has no avatar.
func (s *AvatarService) Get(ctx context.Context, userID int) ([]byte, error) {
	reader, err := s.storage.Get(ctx, avatarKey(userID))
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// Delete removes the avatar. Deleting an absent avatar is a no-op.
func (s *AvatarService) Delete(ctx context.Context, userID int) error {
	return s.storage.Delete(ctx, avatarKey(userID))
}
